package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/PabloGalante/noesis-agent/internal/app/research"
	"github.com/PabloGalante/noesis-agent/internal/domain"
	"github.com/PabloGalante/noesis-agent/internal/worker"
)

// wireTimeFormat is the timestamp layout the polling client renders.
const wireTimeFormat = "2006-01-02 15:04:05"

// maxBodyBytes caps start-research request bodies.
const maxBodyBytes = 1 << 20

type Server struct {
	svc *research.Service
}

// NewServer wires the polling API. Every route is registered bare and under
// /api so both path conventions work.
func NewServer(svc *research.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	// POST /start_research → create a session and schedule its run
	mux.HandleFunc("/start_research", s.handleStartResearch)
	mux.HandleFunc("/api/start_research", s.handleStartResearch)

	// GET /research_status/{id} → poll one session
	mux.HandleFunc("/research_status/", s.handleResearchStatus)
	mux.HandleFunc("/api/research_status/", s.handleResearchStatus)

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/health", s.handleHealth)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type startResearchRequest struct {
	ResearchGoal     string `json:"research_goal"`
	CompletionAPIKey string `json:"completion_api_key"`
	SearchAPIKey     string `json:"search_api_key,omitempty"`
}

type startResearchResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type eventResponse struct {
	Timestamp string `json:"timestamp"`
	Agent     string `json:"agent"`
	Action    string `json:"action"`
	Result    string `json:"result"`
}

type researchStatusResponse struct {
	Status        string          `json:"status"`
	ProcessStatus string          `json:"process_status"`
	Logs          []eventResponse `json:"logs"`
	Result        string          `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleStartResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req startResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.ResearchGoal) == "" {
		badRequest(w, "Research goal is required")
		return
	}
	if strings.TrimSpace(req.CompletionAPIKey) == "" {
		badRequest(w, "Completion API key is required")
		return
	}

	out, err := s.svc.StartResearch(r.Context(), research.StartResearchInput{
		Goal:             req.ResearchGoal,
		CompletionAPIKey: req.CompletionAPIKey,
		SearchAPIKey:     req.SearchAPIKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			badRequest(w, trimSentinel(err, domain.ErrInvalidInput))
		case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolClosed):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Status:  "error",
				Message: "Server is at capacity, try again later",
			})
		default:
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, startResearchResponse{
		Status:    "success",
		SessionID: string(out.SessionID),
		Message:   "Research process started",
	})
}

func (s *Server) handleResearchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := sessionIDFromPath(r.URL.Path)
	if id == "" {
		notFound(w, "Session not found")
		return
	}

	sess, err := s.svc.GetStatus(r.Context(), domain.SessionID(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "Session not found")
			return
		}
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, researchStatusResponse{
		Status:        "success",
		ProcessStatus: string(sess.Status),
		Logs:          toEventResponses(sess.Events),
		Result:        sess.Result,
		Error:         sess.ErrorDetail,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ─────────────────────────────────────────────
// Mapping helpers
// ─────────────────────────────────────────────

// sessionIDFromPath extracts {id} from /research_status/{id} or
// /api/research_status/{id}. Trailing segments are rejected.
func sessionIDFromPath(path string) string {
	path = strings.TrimPrefix(path, "/api")
	path = strings.TrimPrefix(path, "/research_status/")
	if path == "" || strings.Contains(path, "/") {
		return ""
	}
	return path
}

func toEventResponses(events []domain.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{
			Timestamp: ev.Timestamp.Format(wireTimeFormat),
			Agent:     string(ev.Agent),
			Action:    ev.Action,
			Result:    ev.Result,
		})
	}
	return out
}

// trimSentinel strips the sentinel prefix from a wrapped validation error so
// the client sees only the human part ("research_goal is required").
func trimSentinel(err error, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: msg})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, errorResponse{Status: "error", Message: msg})
}

func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Status:  "error",
		Message: "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Status:  "error",
		Message: "method not allowed",
	})
}
