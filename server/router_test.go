package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/backends/memory"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/server/handlers"
)

const (
	adminKey  = "admin-key"
	viewerKey = "viewer-key"
)

type fixture struct {
	router  http.Handler
	media   *memory.Store
	archive *memory.Store
	log     *audit.LogStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		media:   memory.New(),
		archive: memory.New(),
		log:     audit.NewLogStore(zap.NewNop(), 100),
	}
	for key, body := range map[string]string{
		"a.txt":      "hello",
		"docs/b.txt": "bee",
	} {
		require.NoError(t, f.media.Put(context.Background(), key, strings.NewReader(body), int64(len(body)), backends.PutOptions{}))
	}

	registry := &core.Registry{}
	registry.Add(core.NewSource("media", config.SourceConfig{Type: config.SourceTypeMemory, URL: "http://media.example.com/"}, f.media, f.log, nil, zap.NewNop()))
	registry.Add(core.NewSource("archive", config.SourceConfig{Type: config.SourceTypeMemory, URL: "http://archive.example.com/"}, f.archive, f.log, nil, zap.NewNop()))

	authorizer := auth.NewActionAuthorizer()
	f.router = NewRouter(Dependencies{
		Registry:      registry,
		Engine:        core.NewTransferEngine(config.TransferConfig{Workers: 2}, nil, f.log, zap.NewNop()),
		Authenticator: auth.NewAPIKeyAuthenticator([]string{adminKey}, []string{viewerKey}),
		Authorizer:    authorizer,
		Server:        config.ServerConfig{TransferRateLimit: 100, TransferBurst: 10},
		ServeMetrics:  true,
	}, zap.NewNop())
	return f
}

func (f *fixture) do(t *testing.T, method, target, key string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func content(t *testing.T, store *memory.Store, key string) string {
	t.Helper()
	data, ok := store.Content(key)
	require.True(t, ok, "missing key %q", key)
	return string(data)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/sources", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/sources", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListSources(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/sources", viewerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[handlers.SourcesResponse](t, rec)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "archive", resp.Sources[0].Name)
	assert.Equal(t, "media", resp.Sources[1].Name)

	rec = f.do(t, http.MethodGet, "/v1/sources/media", viewerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[core.SourceInfo](t, rec)
	assert.Equal(t, "http://media.example.com/", info.URL)

	rec = f.do(t, http.MethodGet, "/v1/sources/nope", viewerKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContainerRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/sources/media/containers", viewerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody[handlers.ContainerListResponse](t, rec)
	require.Equal(t, 2, listing.Count)
	assert.Equal(t, core.KindDir, listing.Entries[0].Kind)
	assert.Equal(t, "docs/", listing.Entries[0].ID)
	assert.Equal(t, "a.txt", listing.Entries[1].ID)
	// Read only callers only see the actions they may perform
	assert.Equal(t, []string{"file_view"}, listing.Entries[1].Actions)

	rec = f.do(t, http.MethodPost, "/v1/sources/media/containers", viewerKey, map[string]string{"name": "new"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/sources/media/containers", adminKey, map[string]string{"name": "new", "parent": "docs"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[handlers.MutationResponse](t, rec)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Errors)
	assert.Equal(t, "", content(t, f.media, "docs/new/"))

	rec = f.do(t, http.MethodPatch, "/v1/sources/media/containers", adminKey, map[string]any{"path": "docs/", "new_name": "papers"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "bee", content(t, f.media, "papers/b.txt"))
	_, ok := f.media.Content("docs/b.txt")
	assert.False(t, ok)

	rec = f.do(t, http.MethodDelete, "/v1/sources/media/containers?path=papers/", adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, ok = f.media.Content("papers/b.txt")
	assert.False(t, ok)

	rec = f.do(t, http.MethodDelete, "/v1/sources/media/containers?path=../secret", adminKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObjectRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sources/media/objects", adminKey, map[string]string{"path": "docs", "name": "c.txt", "content": "sea"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "sea", content(t, f.media, "docs/c.txt"))

	rec = f.do(t, http.MethodPost, "/v1/sources/media/objects", adminKey, map[string]string{"path": "docs", "name": "c.txt", "content": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errResp := decodeBody[handlers.ErrorResponse](t, rec)
	assert.Equal(t, "ALREADY_EXISTS", errResp.Code)
	assert.NotEmpty(t, errResp.Errors)

	rec = f.do(t, http.MethodPut, "/v1/sources/media/objects", adminKey, map[string]string{"path": "docs/c.txt", "content": "see"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "see", content(t, f.media, "docs/c.txt"))

	rec = f.do(t, http.MethodGet, "/v1/sources/media/contents?path=docs/c.txt", viewerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	obj := decodeBody[core.ObjectContent](t, rec)
	assert.Equal(t, "see", obj.Content)

	rec = f.do(t, http.MethodGet, "/v1/sources/media/contents", viewerKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/v1/sources/media/objects", adminKey, map[string]string{"path": "docs/c.txt", "new_name": "d.txt"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "see", content(t, f.media, "docs/d.txt"))

	rec = f.do(t, http.MethodPost, "/v1/sources/media/objects/move", adminKey, map[string]string{"from": "docs/d.txt", "to": ""})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/v1/sources/media/objects?path=a.txt", adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, ok := f.media.Content("a.txt")
	assert.False(t, ok)

	rec = f.do(t, http.MethodDelete, "/v1/sources/media/objects?path=a.txt", viewerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/sources/media/objects", adminKey, map[string]any{"path": "docs", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRoute(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("uploaded"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/sources/media/uploads?container=docs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "uploaded", content(t, f.media, "docs/notes.txt"))

	rec = f.do(t, http.MethodPost, "/v1/sources/media/uploads", adminKey, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferRoutes(t *testing.T) {
	f := newFixture(t)
	req := handlers.TransferRequest{From: "media", FromPath: "docs/", To: "archive", ToPath: "backup", Method: core.MethodCopy}

	rec := f.do(t, http.MethodPost, "/v1/transfers", viewerKey, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/transfers/plan", viewerKey, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decodeBody[handlers.TransferPlanResponse](t, rec)
	assert.Equal(t, core.KindDir, plan.Kind)
	assert.Equal(t, "backup/docs/", plan.Container)

	rec = f.do(t, http.MethodPost, "/v1/transfers", adminKey, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[core.TransferReport](t, rec)
	assert.Equal(t, []string{"backup/docs/b.txt"}, report.Transferred)
	assert.Equal(t, "bee", content(t, f.archive, "backup/docs/b.txt"))
	assert.Equal(t, "bee", content(t, f.media, "docs/b.txt"))

	rec = f.do(t, http.MethodPost, "/v1/transfers", adminKey, handlers.TransferRequest{From: "media", FromPath: "missing.txt", To: "archive"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/transfers", adminKey, handlers.TransferRequest{From: "media", FromPath: "a.txt", To: "archive", Method: "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferRateLimit(t *testing.T) {
	f := newFixture(t)
	limited := NewRouter(Dependencies{
		Registry:      &core.Registry{},
		Engine:        core.NewTransferEngine(config.TransferConfig{}, nil, nil, zap.NewNop()),
		Authenticator: auth.NewAPIKeyAuthenticator([]string{adminKey}, nil),
		Authorizer:    auth.NewActionAuthorizer(),
		Server:        config.ServerConfig{TransferRateLimit: 0.001, TransferBurst: 1},
	}, zap.NewNop())
	f.router = limited

	body := handlers.TransferRequest{From: "x", To: "y"}
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/v1/transfers", adminKey, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/v1/transfers", adminKey, body).Code)
}

func TestTransferWebSocket(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/transfers/ws"
	header := http.Header{"Authorization": []string{"Bearer " + adminKey}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(handlers.TransferRequest{From: "media", FromPath: "docs/", To: "archive", Method: core.MethodMove}))

	var types []string
	var report *core.TransferReport
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg handlers.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		types = append(types, msg.Type)
		if msg.Type == handlers.WSMessageReport {
			report = msg.Report
		}
	}

	assert.Equal(t, []string{"plan", "event", "event", "report"}, types)
	require.NotNil(t, report)
	assert.Equal(t, []string{"docs/b.txt"}, report.Deleted)
	assert.Equal(t, "bee", content(t, f.archive, "docs/b.txt"))
	require.NotNil(t, report.Redirect)
}

func TestTransferWebSocketRequiresAuth(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/transfers/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
