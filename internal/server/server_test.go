package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/morezero/mcp-servers/internal/config"
	"github.com/morezero/mcp-servers/pkg/commsutil"
	"github.com/morezero/mcp-servers/pkg/dispatcher"
	"github.com/morezero/mcp-servers/pkg/heartbeat"
)

const serverTestPrefix = "server:server_test"

func testConfig(kind string) *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               8001,
		ServiceKind:        kind,
		ServiceName:        kind + "-mcp",
		ServiceVersion:     "1.0.0",
		HeartbeatInterval:  50 * time.Millisecond,
		RequestTimeout:     2 * time.Second,
		ShutdownTimeout:    2 * time.Second,
		SSEWriteTimeout:    2 * time.Second,
		Provider:           config.ProviderMock,
		ProviderSubject:    commsutil.BuildBackendSubject(kind),
		ProviderTimeout:    2 * time.Second,
		RateLimitBurst:     20,
		CORSAllowedOrigins: []string{"*"},
	}
}

func testServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("%s - Build failed: %v", serverTestPrefix, err)
	}
	return s
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s - invalid JSON body %q: %v", serverTestPrefix, rec.Body.String(), err)
	}
	return out
}

func TestHandleStatus(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))

	rec := doRequest(t, s.Handler(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}

	var body StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s - invalid JSON: %v", serverTestPrefix, err)
	}
	if body.Service != "xiaohongshu-mcp" || body.Status != "running" || body.Version != "1.0.0" {
		t.Errorf("%s - unexpected status body: %+v", serverTestPrefix, body)
	}
	want := []string{"/search", "/analyze", "/comments", "/health", "/mcp/sse"}
	if strings.Join(body.Endpoints, ",") != strings.Join(want, ",") {
		t.Errorf("%s - Endpoints = %v, want %v", serverTestPrefix, body.Endpoints, want)
	}
}

func TestHandleStatus_HTML(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("%s - Content-Type = %q", serverTestPrefix, ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"xiaohongshu-mcp", "search_notes", "POST /search", "POST /comments", "suspending"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - home page missing %q", serverTestPrefix, want)
		}
	}
}

func TestHandleHealthAndReady(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))
	h := s.Handler()

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	var first HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("%s - invalid JSON: %v", serverTestPrefix, err)
	}
	if rec.Code != http.StatusOK || first.Status != "healthy" || first.Service != "xiaohongshu-mcp" {
		t.Errorf("%s - unexpected health: %d %+v", serverTestPrefix, rec.Code, first)
	}

	rec = doRequest(t, h, http.MethodGet, "/health", "")
	var second HealthResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &second)
	if second.Timestamp <= first.Timestamp {
		t.Errorf("%s - health timestamp %v not after %v", serverTestPrefix, second.Timestamp, first.Timestamp)
	}

	rec = doRequest(t, h, http.MethodGet, "/ready", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Errorf("%s - unexpected ready: %d %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
}

func TestActionRoutes_Xiaohongshu(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))
	h := s.Handler()

	tests := []struct {
		name       string
		path       string
		body       string
		wantCode   int
		wantDetail string
		wantStatus string
		wantCount  float64
	}{
		{name: "search", path: "/search", body: `{"keyword":"coffee","limit":3}`, wantCode: 200, wantStatus: "success", wantCount: 3},
		{name: "search capped", path: "/search", body: `{"keyword":"coffee","limit":100}`, wantCode: 200, wantStatus: "success", wantCount: 5},
		{name: "search empty keyword", path: "/search", body: `{"keyword":""}`, wantCode: 400, wantDetail: "keyword is required"},
		{name: "search no body", path: "/search", body: "", wantCode: 400, wantDetail: "keyword is required"},
		{name: "analyze missing url", path: "/analyze", body: `{}`, wantCode: 400, wantDetail: "url is required"},
		{name: "comments default limit", path: "/comments", body: `{"url":"https://example/x"}`, wantCode: 200, wantStatus: "success", wantCount: 10},
		{name: "bad limit type", path: "/comments", body: `{"url":"u","limit":"many"}`, wantCode: 200, wantStatus: "error"},
		{name: "malformed json", path: "/search", body: `{"keyword":`, wantCode: 400},
		{name: "non-object json", path: "/search", body: `["coffee"]`, wantCode: 400},
		{name: "generic action", path: "/actions/search_notes", body: `{"keyword":"tea","limit":2}`, wantCode: 200, wantStatus: "success", wantCount: 2},
		{name: "generic validation", path: "/actions/get_comments", body: `{"url":"  "}`, wantCode: 400, wantDetail: "url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("%s - status = %d, want %d (body %s)", serverTestPrefix, rec.Code, tt.wantCode, rec.Body.String())
			}
			body := decodeEnvelope(t, rec)
			if tt.wantCode != http.StatusOK {
				if _, ok := body["detail"].(string); !ok {
					t.Errorf("%s - 4xx body missing detail: %v", serverTestPrefix, body)
				}
				if tt.wantDetail != "" && body["detail"] != tt.wantDetail {
					t.Errorf("%s - detail = %v, want %q", serverTestPrefix, body["detail"], tt.wantDetail)
				}
				return
			}
			if body["status"] != tt.wantStatus || body["service"] != "xiaohongshu" {
				t.Errorf("%s - unexpected envelope: %v", serverTestPrefix, body)
			}
			if tt.wantCount > 0 && body["count"] != tt.wantCount {
				t.Errorf("%s - count = %v, want %v", serverTestPrefix, body["count"], tt.wantCount)
			}
		})
	}
}

func TestAnalyze_NestedAuthor(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))

	rec := doRequest(t, s.Handler(), http.MethodPost, "/analyze", `{"url":"https://example/x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, rec.Code)
	}
	body := decodeEnvelope(t, rec)
	data, _ := body["data"].(map[string]interface{})
	author, _ := data["author"].(map[string]interface{})
	if data["url"] != "https://example/x" || author["name"] == nil || author["followers"] != float64(1234) {
		t.Errorf("%s - unexpected analysis: %v", serverTestPrefix, body)
	}
	if _, ok := body["count"]; ok {
		t.Errorf("%s - analysis envelope must not carry count", serverTestPrefix)
	}
}

func TestUnknownAction_InBand(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))

	rec := doRequest(t, s.Handler(), http.MethodPost, "/actions/delete_everything", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["status"] != "error" || body["error"] != "unknown action: delete_everything" || body["action"] != "delete_everything" {
		t.Errorf("%s - unexpected envelope: %v", serverTestPrefix, body)
	}
}

func TestActionRoutes_Template(t *testing.T) {
	s := testServer(t, testConfig(config.KindTemplate))
	h := s.Handler()

	rec := doRequest(t, h, http.MethodPost, "/test", `{}`)
	body := decodeEnvelope(t, rec)
	data, _ := body["data"].(map[string]interface{})
	if body["status"] != "success" || data["message"] != "Mock response: Hello" {
		t.Errorf("%s - unexpected /test envelope: %v", serverTestPrefix, body)
	}
	if _, ok := data["timestamp"].(float64); !ok {
		t.Errorf("%s - /test timestamp missing: %v", serverTestPrefix, data)
	}

	rec = doRequest(t, h, http.MethodPost, "/async-test", `{"data":"ping"}`)
	body = decodeEnvelope(t, rec)
	data, _ = body["data"].(map[string]interface{})
	if data["data"] != "Async mock response: ping" || data["processed"] != true {
		t.Errorf("%s - unexpected /async-test envelope: %v", serverTestPrefix, body)
	}

	if rec := doRequest(t, h, http.MethodPost, "/search", `{"keyword":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("%s - template service must not expose /search, got %d", serverTestPrefix, rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(config.KindXiaohongshu)
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 2
	s := testServer(t, cfg)
	h := s.Handler()

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, h, http.MethodPost, "/search", `{"keyword":"a"}`); rec.Code != http.StatusOK {
			t.Fatalf("%s - request %d status = %d, want 200", serverTestPrefix, i, rec.Code)
		}
	}
	rec := doRequest(t, h, http.MethodPost, "/search", `{"keyword":"a"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("%s - status = %d, want 429", serverTestPrefix, rec.Code)
	}
	if decodeEnvelope(t, rec)["detail"] != "rate limit exceeded" {
		t.Errorf("%s - unexpected 429 body: %s", serverTestPrefix, rec.Body.String())
	}

	if rec := doRequest(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("%s - health must not be rate limited, got %d", serverTestPrefix, rec.Code)
	}
}

func searchFrom(t *testing.T, h http.Handler, forwardedFor string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"keyword":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	cfg := testConfig(config.KindXiaohongshu)
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	h := testServer(t, cfg).Handler()

	if code := searchFrom(t, h, "203.0.113.1"); code != http.StatusOK {
		t.Fatalf("%s - first request status = %d, want 200", serverTestPrefix, code)
	}
	if code := searchFrom(t, h, "203.0.113.2"); code != http.StatusTooManyRequests {
		t.Errorf("%s - changing X-Forwarded-For escaped the limit: status = %d, want 429", serverTestPrefix, code)
	}
}

func TestRateLimit_TrustedProxyHeaders(t *testing.T) {
	cfg := testConfig(config.KindXiaohongshu)
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	cfg.TrustProxyHeaders = true
	h := testServer(t, cfg).Handler()

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		if code := searchFrom(t, h, ip); code != http.StatusOK {
			t.Errorf("%s - client %s status = %d, want 200", serverTestPrefix, ip, code)
		}
	}
	if code := searchFrom(t, h, "203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("%s - repeated client status = %d, want 429", serverTestPrefix, code)
	}
}

func TestCORS(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("%s - preflight status = %d, want 204", serverTestPrefix, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("%s - Allow-Origin = %q, want *", serverTestPrefix, got)
	}

	req = httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"keyword":"a"}`))
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("%s - Allow-Origin on POST = %q, want *", serverTestPrefix, got)
	}
}

func TestCORS_Allowlist(t *testing.T) {
	cfg := testConfig(config.KindXiaohongshu)
	cfg.CORSAllowedOrigins = []string{"https://allowed.example"}
	h := testServer(t, cfg).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("%s - disallowed origin got Allow-Origin %q", serverTestPrefix, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example" {
		t.Errorf("%s - allowed origin got Allow-Origin %q", serverTestPrefix, got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))
	h := s.Handler()

	doRequest(t, h, http.MethodPost, "/search", `{"keyword":"a"}`)
	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `mcp_invocations_total{action="search_notes",service="xiaohongshu",status="success"} 1`) {
		t.Errorf("%s - invocation counter missing from metrics output", serverTestPrefix)
	}
}

func TestOpenAPI(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))

	rec := doRequest(t, s.Handler(), http.MethodGet, "/openapi.json", "")
	var spec openAPI3Spec
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("%s - invalid JSON: %v", serverTestPrefix, err)
	}
	if spec.OpenAPI != "3.0.0" || spec.Info.Title != "xiaohongshu-mcp" {
		t.Errorf("%s - unexpected info: %+v", serverTestPrefix, spec.Info)
	}
	for _, path := range []string{"/search", "/analyze", "/comments"} {
		item, ok := spec.Paths[path]
		if !ok || item.Post == nil {
			t.Errorf("%s - missing POST %s", serverTestPrefix, path)
		}
	}
	schema := spec.Paths["/search"].Post.RequestBody.Content["application/json"].Schema
	if req, _ := schema["required"].([]interface{}); len(req) != 1 || req[0] != "keyword" {
		t.Errorf("%s - /search required = %v", serverTestPrefix, schema["required"])
	}

	rec = doRequest(t, s.Handler(), http.MethodGet, "/docs", "")
	if !strings.Contains(rec.Body.String(), "/openapi.json") {
		t.Errorf("%s - docs page does not load /openapi.json", serverTestPrefix)
	}
}

func TestRecoverer(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))
	h := s.recovererMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := doRequest(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("%s - status = %d, want 500", serverTestPrefix, rec.Code)
	}
}

// readEvent reads one "data: <json>" frame from the SSE stream.
func readEvent(t *testing.T, r *bufio.Reader) heartbeat.Event {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("%s - stream read failed: %v", serverTestPrefix, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e heartbeat.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("%s - bad event %q: %v", serverTestPrefix, line, err)
		}
		return e
	}
}

func TestSSE_ConnectedThenHeartbeat(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/mcp/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s - SSE request failed: %v", serverTestPrefix, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("%s - Content-Type = %q", serverTestPrefix, ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("%s - Cache-Control = %q", serverTestPrefix, cc)
	}

	reader := bufio.NewReader(resp.Body)
	connected := readEvent(t, reader)
	if connected.Type != heartbeat.EventConnected || connected.Service != "xiaohongshu-mcp" {
		t.Fatalf("%s - first event = %+v, want connected", serverTestPrefix, connected)
	}
	hb := readEvent(t, reader)
	if hb.Type != heartbeat.EventHeartbeat || hb.Timestamp <= connected.Timestamp {
		t.Errorf("%s - second event = %+v, want heartbeat after %v", serverTestPrefix, hb, connected.Timestamp)
	}
	hb2 := readEvent(t, reader)
	if hb2.Timestamp <= hb.Timestamp {
		t.Errorf("%s - heartbeat timestamps not increasing: %v then %v", serverTestPrefix, hb.Timestamp, hb2.Timestamp)
	}
	if s.Sessions().Active() != 1 {
		t.Errorf("%s - Active() = %d, want 1", serverTestPrefix, s.Sessions().Active())
	}

	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Sessions().Active() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Sessions().Active() != 0 {
		t.Errorf("%s - session not released after disconnect", serverTestPrefix)
	}
}

// stalledWriter accepts the connected frame, then blocks every write until its write
// deadline passes, like a peer that stopped reading.
type stalledWriter struct {
	header  http.Header
	stalled chan struct{}
	once    sync.Once

	mu       sync.Mutex
	deadline time.Time
	frames   int
}

func newStalledWriter() *stalledWriter {
	return &stalledWriter{header: http.Header{}, stalled: make(chan struct{})}
}

func (w *stalledWriter) Header() http.Header { return w.header }

func (w *stalledWriter) WriteHeader(int) {}

func (w *stalledWriter) Flush() {}

func (w *stalledWriter) SetWriteDeadline(t time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline = t
	return nil
}

func (w *stalledWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.frames++
	first := w.frames == 1
	deadline := w.deadline
	w.mu.Unlock()

	if first {
		return len(p), nil
	}
	w.once.Do(func() { close(w.stalled) })
	if deadline.IsZero() {
		time.Sleep(10 * time.Second)
	} else {
		time.Sleep(time.Until(deadline))
	}
	return 0, os.ErrDeadlineExceeded
}

func TestSSE_StalledPeerReleasedOnShutdown(t *testing.T) {
	cfg := testConfig(config.KindXiaohongshu)
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.SSEWriteTimeout = 100 * time.Millisecond
	s := testServer(t, cfg)

	w := newStalledWriter()
	req := httptest.NewRequest(http.MethodGet, "/mcp/sse", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleSSE(w, req)
	}()

	select {
	case <-w.stalled:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - heartbeat write never started", serverTestPrefix)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Sessions().Shutdown(ctx); err != nil {
		t.Fatalf("%s - Shutdown with a stalled peer failed: %v", serverTestPrefix, err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - SSE handler still blocked after shutdown", serverTestPrefix)
	}
	if s.Sessions().Active() != 0 {
		t.Errorf("%s - Active() = %d, want 0", serverTestPrefix, s.Sessions().Active())
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("%s - listen failed: %v", serverTestPrefix, err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe_GracefulShutdown(t *testing.T) {
	cfg := testConfig(config.KindXiaohongshu)
	cfg.Port = freePort(t)
	cfg.HeartbeatInterval = time.Hour
	s := testServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, nil) }()

	base := "http://" + cfg.Addr()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s - server did not start: %v", serverTestPrefix, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get(base + "/mcp/sse")
	if err != nil {
		t.Fatalf("%s - SSE request failed: %v", serverTestPrefix, err)
	}
	defer resp.Body.Close()
	if e := readEvent(t, bufio.NewReader(resp.Body)); e.Type != heartbeat.EventConnected {
		t.Fatalf("%s - first event = %+v", serverTestPrefix, e)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("%s - Serve returned %v", serverTestPrefix, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - Serve did not return after cancel", serverTestPrefix)
	}
	if s.Sessions().Active() != 0 {
		t.Errorf("%s - Active() = %d after shutdown", serverTestPrefix, s.Sessions().Active())
	}
}

func TestBuild_UnknownKind(t *testing.T) {
	cfg := testConfig("weibo")
	if _, err := Build(cfg, nil); err == nil {
		t.Error("server:server_test - expected error for unknown service kind")
	}
}

func TestBuild_CommsProviderWithoutConnection(t *testing.T) {
	cfg := testConfig(config.KindXiaohongshu)
	cfg.Provider = config.ProviderComms
	if _, err := Build(cfg, nil); err == nil {
		t.Error("server:server_test - expected error for comms provider without connection")
	}
}

func TestEnvelopeShapeMatchesDispatcher(t *testing.T) {
	s := testServer(t, testConfig(config.KindXiaohongshu))

	rec := doRequest(t, s.Handler(), http.MethodPost, "/search", `{"keyword":"a","limit":1}`)
	var env dispatcher.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s - invalid envelope: %v", serverTestPrefix, err)
	}
	if !env.OK() || env.Count == nil || *env.Count != 1 {
		t.Errorf("%s - unexpected envelope: %+v", serverTestPrefix, env)
	}
}
