package core

// probeSize is how many leading bytes of a file the listing samples
const probeSize = 512

// printableRatio is the share of printable bytes above which a sample is
// considered text
const printableRatio = 0.7

func printable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

// IsBinarySample classifies the first bytes of a file. A sample is text
// when more than 70% of its bytes are printable ASCII and none is NUL.
// Multi-byte UTF-8 text with few ASCII bytes is reported as binary, and an
// empty sample as text.
func IsBinarySample(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}

	count := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if printable(b) {
			count++
		}
	}

	return float64(count)/float64(len(sample)) <= printableRatio
}

// IsBinaryContent classifies a whole document. After line breaks and tabs
// are removed every remaining byte must be printable ASCII. Empty content
// counts as binary, so empty files open as read-only.
func IsBinaryContent(content []byte) bool {
	seen := false
	for _, b := range content {
		switch b {
		case '\n', '\r', '\t':
			continue
		}
		if !printable(b) {
			return true
		}
		seen = true
	}
	return !seen
}
