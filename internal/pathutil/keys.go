package pathutil

import (
	"net/url"
	"strings"
)

// Delimiter separates virtual folders inside an object key.
const Delimiter = "/"

// ToBackendKey resolves a virtual path against the source base directory.
// Only the root gets the base directory injected; any other path already
// carries its full key.
func ToBackendKey(virtualPath, baseDir string) string {
	if strings.Trim(virtualPath, Delimiter) == "" {
		return strings.Trim(baseDir, Delimiter) + Delimiter
	}
	return virtualPath
}

// CleanKey strips an externally attached URL prefix from a key.
func CleanKey(path, urlPrefix string) string {
	if urlPrefix == "" {
		return path
	}
	return strings.ReplaceAll(path, urlPrefix, "")
}

// ObjectURL builds the public URL of a key.
func ObjectURL(key, baseURL, baseDir string) string {
	prefix := strings.Trim(baseURL+baseDir, Delimiter)
	if prefix != "" {
		key = strings.ReplaceAll(key, prefix, "")
	}
	return prefix + Delimiter + strings.TrimLeft(key, Delimiter)
}

// FileURL is the url of a listed key relative to the bucket url.
func FileURL(key, baseURL string) string {
	return strings.TrimRight(baseURL, Delimiter) + Delimiter + key
}

// EncodeURL query-escapes every segment of a key before appending it to
// the bucket url.
func EncodeURL(key, baseURL string) string {
	segments := strings.Split(key, Delimiter)
	for i, s := range segments {
		segments[i] = url.QueryEscape(s)
	}
	return strings.TrimRight(baseURL, Delimiter) + Delimiter + strings.Join(segments, Delimiter)
}

// JoinKey joins key fragments, trimming redundant delimiters at every join
// point. Empty fragments are skipped; the result never has a leading or
// trailing delimiter.
func JoinKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, Delimiter); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, Delimiter)
}

// DirKey returns key with exactly one trailing delimiter. The empty key
// stays empty.
func DirKey(key string) string {
	key = strings.TrimRight(key, Delimiter)
	if key == "" {
		return ""
	}
	return key + Delimiter
}

// IsDirKey reports whether key denotes a folder.
func IsDirKey(key string) bool {
	return strings.HasSuffix(key, Delimiter)
}

// Base returns the last segment of key, ignoring trailing delimiters.
func Base(key string) string {
	key = strings.TrimRight(key, Delimiter)
	if i := strings.LastIndex(key, Delimiter); i >= 0 {
		return key[i+1:]
	}
	return key
}

// Parent returns the folder part of key without a trailing delimiter, or
// "" when key sits at the top level.
func Parent(key string) string {
	key = strings.TrimRight(key, Delimiter)
	if i := strings.LastIndex(key, Delimiter); i >= 0 {
		return strings.TrimRight(key[:i], Delimiter)
	}
	return ""
}

// Extension returns the lower-cased extension of the key's basename
// without the dot.
func Extension(key string) string {
	name := Base(key)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i+1:])
	}
	return ""
}

// IndexParent reports whether key names an index document and returns
// the container key the document should also be published under.
func IndexParent(key string) (string, bool) {
	name := Base(key)
	if name != "index.html" && name != "index.htm" {
		return "", false
	}
	return strings.TrimSuffix(key, name), true
}

// RemapPrefix replaces the leading oldPrefix of key with newPrefix.
func RemapPrefix(key, oldPrefix, newPrefix string) string {
	if !strings.HasPrefix(key, oldPrefix) {
		return key
	}
	return newPrefix + key[len(oldPrefix):]
}

// NormalizeContainer maps the "current folder" spellings to the empty
// container.
func NormalizeContainer(container string) string {
	if container == Delimiter || container == "." {
		return ""
	}
	return container
}
