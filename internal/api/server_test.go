package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/stratumhq/agentconsole/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, orchestratorURL, tunnelURL string) *Server {
	t.Helper()
	cfg := &config.Config{
		TranscriptPath: filepath.Join(t.TempDir(), "transcripts.jsonl"),
		Orchestrator: config.OrchestratorConfig{
			BaseURL:        orchestratorURL,
			TimeoutSeconds: 1,
		},
		Tunnel: config.TunnelConfig{BaseURL: tunnelURL},
		// Disable caching so each request observes the current transcript.
		Snapshot: config.SnapshotConfig{CacheTTLSeconds: -1},
	}
	cfg.ApplyDefaults()

	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = s.store.Close() })
	return s
}

func doRequest(s *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	w := doRequest(s, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gjson.Get(w.Body.String(), "status").String() != "ok" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestChat_ProxiesAndRecords(t *testing.T) {
	orch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"answer","route":"LLM_DOCS","metrics":{"latency_ms":900,"model":"gpt-4o"}}`))
	}))
	defer orch.Close()

	s := newTestServer(t, orch.URL, "http://127.0.0.1:1")
	w := doRequest(s, http.MethodPost, "/api/chat", "application/json", `{"message":"what changed in q3?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	if gjson.Get(body, "text").String() != "answer" {
		t.Fatalf("body = %s", body)
	}
	if gjson.Get(body, "thread_id").String() == "" {
		t.Fatal("thread_id not assigned")
	}

	// The transcript append is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for {
		lines, err := s.store.ReadTail(1)
		if err != nil {
			t.Fatalf("ReadTail: %v", err)
		}
		if len(lines) == 1 {
			if gjson.Get(lines[0], "query").String() != "what changed in q3?" {
				t.Fatalf("transcript line = %s", lines[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("interaction never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChat_RequiresMessage(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	w := doRequest(s, http.MethodPost, "/api/chat", "application/json", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestChat_TimeoutMapsTo504(t *testing.T) {
	block := make(chan struct{})
	orch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer orch.Close()
	defer close(block)

	s := newTestServer(t, orch.URL, "http://127.0.0.1:1")
	w := doRequest(s, http.MethodPost, "/api/chat", "application/json", `{"message":"slow"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "timed out") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestChat_UpstreamErrorMapsTo502(t *testing.T) {
	orch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"model unavailable"}`))
	}))
	defer orch.Close()

	s := newTestServer(t, orch.URL, "http://127.0.0.1:1")
	w := doRequest(s, http.MethodPost, "/api/chat", "application/json", `{"message":"q"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "model unavailable") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestSnapshot_ReflectsTranscript(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	now := time.Now().UTC().Format(time.RFC3339)
	lines := []string{
		`{"ts":"` + now + `","query":"q1","mode":"RAG","timings":{"total_s":2.1}}`,
		`{"ts":"` + now + `","query":"q2","telemetry":{"helpUsed":{"rag":false,"risk":true}},"usage":{"total_tokens":500}}`,
	}
	for _, line := range lines {
		if err := s.store.Append(line); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	w := doRequest(s, http.MethodGet, "/api/observability/snapshot?tenant=acme", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	if gjson.Get(body, "totalInteractions").Int() != 2 {
		t.Fatalf("totalInteractions = %d, body = %s", gjson.Get(body, "totalInteractions").Int(), body)
	}
	if gjson.Get(body, "tenant").String() != "acme" {
		t.Fatalf("tenant = %s", gjson.Get(body, "tenant").String())
	}
	if gjson.Get(body, "runs.#").Int() != 2 {
		t.Fatalf("runs = %s", gjson.Get(body, "runs").Raw)
	}
}

func TestSnapshot_EmptyTranscript(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	w := doRequest(s, http.MethodGet, "/api/observability/snapshot", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if gjson.Get(body, "totalInteractions").Int() != 0 {
		t.Fatalf("body = %s", body)
	}
	if !gjson.Get(body, "runs").IsArray() {
		t.Fatalf("runs missing or null: %s", body)
	}
}

func TestDocuments_ListProxied(t *testing.T) {
	tun := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"d1","name":"report.pdf"}]`))
	}))
	defer tun.Close()

	s := newTestServer(t, "http://127.0.0.1:1", tun.URL)
	w := doRequest(s, http.MethodGet, "/api/documents", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gjson.Get(w.Body.String(), "documents.0.id").String() != "d1" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestDocuments_UpstreamStatusRelayed(t *testing.T) {
	tun := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"document not found"}`))
	}))
	defer tun.Close()

	s := newTestServer(t, "http://127.0.0.1:1", tun.URL)
	w := doRequest(s, http.MethodDelete, "/api/documents/missing", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if gjson.Get(w.Body.String(), "detail").String() != "document not found" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestDocuments_URLUnavailableWithoutObjectStore(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	w := doRequest(s, http.MethodGet, "/api/documents/d1/url", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}
