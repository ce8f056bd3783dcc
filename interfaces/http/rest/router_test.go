package rest

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/application/ports/mocks"
	"canvas-backend/application/services/generation"
	"canvas-backend/application/services/media"
	"canvas-backend/application/services/outputs"
	"canvas-backend/application/services/session"
	"canvas-backend/infrastructure/observability"
	"canvas-backend/infrastructure/persistence/memory"
	"canvas-backend/infrastructure/storage"
	"canvas-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	srv       *httptest.Server
	canvases  *memory.CanvasStore
	collector *observability.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := utils.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	canvases := memory.NewCanvasStore(clock)
	library := memory.NewLibraryStore(ports.LibraryItem{
		ID: "item-1", ClientID: "client-a", Title: "Launch post", Content: "We launched.", ItemType: "post",
	})
	sessions := session.NewManager(session.Services{
		Canvases: canvases,
		Library:  library,
		Orchestrator: generation.NewOrchestrator(generation.Deps{
			Text:  new(mocks.MockTextGenerator),
			Clock: clock,
		}),
		Uploader: media.NewUploader(nil, storage.NewLocalMediaStore(), nil, nil),
		Outputs:  outputs.NewService(nil, clock, nil),
		Bus:      &mocks.RecordingEventBus{},
		Clock:    clock,
	})
	collector := observability.NewCollector("canvas")
	srv := httptest.NewServer(NewRouter(sessions, collector, []string{"http://localhost:3000"}, zap.NewNop()).Setup())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, canvases: canvases, collector: collector}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (ts *testServer) openSession(t *testing.T) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"clientId": "client-a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["sessionId"].(string)
}

func (ts *testServer) addNode(t *testing.T, base, kind string, data map[string]interface{}) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, base+"/nodes", map[string]interface{}{
		"type":     kind,
		"position": map[string]float64{"x": 10, "y": 20},
		"data":     data,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["id"].(string)
}

func TestRouter_CORS(t *testing.T) {
	ts := newTestServer(t)

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, ts.srv.URL+"/api/v1/sessions", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := preflight("http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = preflight("https://evil.example.com")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", body["type"])

	id := ts.openSession(t)
	base := "/api/v1/sessions/" + id

	resp, body = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["sessionId"])

	resp, _ = ts.do(t, http.MethodPut, base+"/name", map[string]string{"name": "Spring campaign"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	ts.addNode(t, base, "prompt", map[string]interface{}{"briefing": "be brief"})

	resp, body = ts.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "saved", body["status"])
	canvasID := body["canvasId"].(string)

	resp, body = ts.do(t, http.MethodGet, base+"/canvases", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["canvases"], 1)

	resp, _ = ts.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, base+"/graph", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["type"])

	// reopen the saved canvas in a fresh session
	other := "/api/v1/sessions/" + ts.openSession(t)
	resp, body = ts.do(t, http.MethodPost, other+"/load", map[string]string{"canvasId": canvasID})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	canvas := body["canvas"].(map[string]interface{})
	assert.Equal(t, "Spring campaign", canvas["name"])
	assert.Len(t, canvas["nodes"], 1)

	resp, body = ts.do(t, http.MethodPost, other+"/client", map[string]string{"clientId": "client-b"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	canvas = body["canvas"].(map[string]interface{})
	assert.Equal(t, "client-b", canvas["client_id"])
	assert.Empty(t, canvas["nodes"])
}

func TestRouter_NodesAndEdges(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/v1/sessions/" + ts.openSession(t)

	prompt := ts.addNode(t, base, "prompt", nil)
	gen := ts.addNode(t, base, "generator", nil)

	resp, body := ts.do(t, http.MethodPost, base+"/nodes", map[string]interface{}{"type": "unknown"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = ts.do(t, http.MethodPatch, base+"/nodes/"+prompt, map[string]interface{}{
		"position": map[string]float64{"x": 5, "y": 6},
		"data":     map[string]interface{}{"briefing": "shorter"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "shorter", body["data"].(map[string]interface{})["briefing"])
	assert.Equal(t, 5.0, body["position"].(map[string]interface{})["x"])

	resp, _ = ts.do(t, http.MethodPatch, base+"/nodes/missing", map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, base+"/edges", map[string]string{"source": prompt, "target": gen})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	edgeID := body["id"].(string)

	resp, _ = ts.do(t, http.MethodPost, base+"/edges", map[string]string{"source": prompt, "target": prompt})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, base+"/edges/"+edgeID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, base+"/edges/"+edgeID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, base+"/nodes/changes", map[string]interface{}{
		"changes": []map[string]interface{}{{"type": "remove", "id": gen}},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, base+"/nodes/library", map[string]interface{}{"itemId": "item-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "library", body["type"])

	resp, body = ts.do(t, http.MethodGet, base+"/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["nodes"], 2)
	assert.Empty(t, body["edges"])

	resp, _ = ts.do(t, http.MethodDelete, base+"/nodes/"+prompt, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_Generate(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/v1/sessions/" + ts.openSession(t)
	gen := ts.addNode(t, base, "generator", nil)

	resp, body := ts.do(t, http.MethodPost, base+"/nodes/"+gen+"/generate?wait=true", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(generation.OutcomeConnectionsRequired), body["kind"])

	resp, body = ts.do(t, http.MethodPost, base+"/nodes/"+gen+"/generate", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := body["id"].(string)

	require.Eventually(t, func() bool {
		_, job := ts.do(t, http.MethodGet, base+"/jobs/"+jobID, nil)
		return job["status"] == "failed"
	}, 5*time.Second, 10*time.Millisecond)

	resp, body = ts.do(t, http.MethodGet, base+"/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["jobs"], 1)

	resp, _ = ts.do(t, http.MethodPost, base+"/nodes/missing/generate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, base+"/analyze", map[string]interface{}{"kind": "ocr"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Outputs(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/v1/sessions/" + ts.openSession(t)
	out := ts.addNode(t, base, "output", map[string]interface{}{"content": "first draft"})
	outBase := base + "/outputs/" + out

	resp, body := ts.do(t, http.MethodPut, outBase+"/content", map[string]string{"content": "second draft"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "second draft", data["content"])
	versions := data["versions"].([]interface{})
	require.Len(t, versions, 1)
	versionID := versions[0].(map[string]interface{})["id"].(string)

	resp, body = ts.do(t, http.MethodPost, outBase+"/restore", map[string]string{"versionId": versionID})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "first draft", body["data"].(map[string]interface{})["content"])

	resp, _ = ts.do(t, http.MethodPut, outBase+"/approval", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPut, outBase+"/approval", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", body["data"].(map[string]interface{})["approvalStatus"])

	resp, body = ts.do(t, http.MethodPost, outBase+"/comments", map[string]string{"author": "sam", "text": "ship it"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ship it", body["text"])

	resp, body = ts.do(t, http.MethodPost, outBase+"/planning", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["data"].(map[string]interface{})["addedToPlanning"])
}

func TestRouter_Upload(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/v1/sessions/" + ts.openSession(t)
	src := ts.addNode(t, base, "source", nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello from a file"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.srv.URL+base+"/nodes/"+src+"/files", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var item map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	assert.Equal(t, "notes.txt", item["name"])
	assert.True(t, strings.HasPrefix(item["url"].(string), "local:"))

	resp2, err := http.Post(ts.srv.URL+base+"/nodes/"+src+"/files", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
