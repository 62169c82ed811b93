package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/PabloGalante/noesis-agent/internal/adapters/http"
	"github.com/PabloGalante/noesis-agent/internal/adapters/llm"
	"github.com/PabloGalante/noesis-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/noesis-agent/internal/app/research"
	"github.com/PabloGalante/noesis-agent/internal/domain"
	"github.com/PabloGalante/noesis-agent/internal/worker"
)

func newTestPool(t *testing.T) *worker.Pool {
	t.Helper()

	pool := worker.NewPool(context.Background(), 2, 8)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

type fixedSearch struct{}

func (fixedSearch) Search(context.Context, string) ([]domain.SearchResult, error) {
	return []domain.SearchResult{
		{Source: "arxiv", Title: "Known Prior Work", URL: "https://arxiv.org/abs/1", Snippet: "context"},
	}, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	pool := newTestPool(t)

	completions := func(context.Context, string) (domain.CompletionClient, error) {
		return llm.NewMockLLM(), nil
	}
	searches := func(string) domain.SearchClient {
		return fixedSearch{}
	}

	svc := research.NewService(memory.NewRegistry(), pool, completions, searches, 3, time.Second)
	return httpadapter.NewServer(svc)
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	payload := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
			t.Fatalf("response is not JSON: %v\nbody: %s", err, w.Body.String())
		}
	}
	return w, payload
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/api/health"} {
		w, payload := doJSON(t, srv, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if payload["status"] != "healthy" {
			t.Fatalf("%s: expected healthy, got %v", path, payload["status"])
		}
	}
}

func TestStartResearchAndPollStatus(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`{"research_goal":"map the bottlenecks of solid-state batteries","completion_api_key":"test-key"}`)
	w, payload := doJSON(t, srv, http.MethodPost, "/start_research", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if payload["status"] != "success" {
		t.Fatalf("expected success envelope, got %v", payload)
	}
	if payload["message"] != "Research process started" {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
	sessionID, _ := payload["session_id"].(string)
	if sessionID == "" {
		t.Fatal("expected a session_id")
	}

	deadline := time.Now().Add(5 * time.Second)
	lastLogs := 0
	for {
		if time.Now().After(deadline) {
			t.Fatal("session never reached a terminal state")
		}

		w, payload = doJSON(t, srv, http.MethodGet, "/research_status/"+sessionID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status poll: expected 200, got %d", w.Code)
		}
		if payload["status"] != "success" {
			t.Fatalf("status poll: expected success envelope, got %v", payload)
		}

		logs, _ := payload["logs"].([]any)
		if len(logs) < lastLogs {
			t.Fatalf("logs shrank between polls: %d -> %d", lastLogs, len(logs))
		}
		lastLogs = len(logs)

		processStatus, _ := payload["process_status"].(string)
		if processStatus == "completed" {
			if payload["result"] == "" || payload["result"] == nil {
				t.Fatal("completed without a result")
			}
			if len(logs) == 0 {
				t.Fatal("completed with an empty log")
			}
			first, _ := logs[0].(map[string]any)
			for _, key := range []string{"timestamp", "agent", "action", "result"} {
				if _, ok := first[key]; !ok {
					t.Fatalf("log entry missing %q: %v", key, first)
				}
			}
			ts, _ := first["timestamp"].(string)
			if _, err := time.Parse("2006-01-02 15:04:05", ts); err != nil {
				t.Fatalf("timestamp %q is not in the wire format: %v", ts, err)
			}
			return
		}
		if processStatus == "error" {
			t.Fatalf("session errored: %v", payload["error"])
		}

		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartResearchValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing goal", `{"completion_api_key":"k"}`, "Research goal is required"},
		{"blank goal", `{"research_goal":"  ","completion_api_key":"k"}`, "Research goal is required"},
		{"missing key", `{"research_goal":"a goal"}`, "Completion API key is required"},
		{"invalid json", `{"research_goal":`, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, payload := doJSON(t, srv, http.MethodPost, "/start_research", []byte(tt.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if payload["status"] != "error" {
				t.Fatalf("expected error envelope, got %v", payload)
			}
			if payload["message"] != tt.message {
				t.Fatalf("expected %q, got %v", tt.message, payload["message"])
			}
		})
	}
}

func TestResearchStatusNotFound(t *testing.T) {
	srv := newTestServer(t)

	w, payload := doJSON(t, srv, http.MethodGet, "/research_status/research_unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if payload["message"] != "Session not found" {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
}

func TestAPIPrefixedRoutes(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`{"research_goal":"a goal","completion_api_key":"k"}`)
	w, payload := doJSON(t, srv, http.MethodPost, "/api/start_research", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 via /api prefix, got %d", w.Code)
	}

	sessionID, _ := payload["session_id"].(string)
	if sessionID == "" {
		t.Fatal("expected a session_id")
	}

	w, _ = doJSON(t, srv, http.MethodGet, "/api/research_status/"+sessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 via /api prefix, got %d", w.Code)
	}
}

func TestStartResearchMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	w, _ := doJSON(t, srv, http.MethodGet, "/start_research", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/start_research", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected permissive CORS header")
	}
}
