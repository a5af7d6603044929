package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

const internalErrorReply = "Üzgünüm, bir hata oluştu. Lütfen tekrar deneyin."

// MessageProcessor is the engine surface the HTTP layer needs.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, req Request) Response
	GetSession(ctx context.Context, key SessionKey) (*Session, error)
	ResetSession(ctx context.Context, key SessionKey) error
}

// LocationLister exposes the directory's city and district lists.
type LocationLister interface {
	ListCities(ctx context.Context) ([]string, error)
	ListDistricts(ctx context.Context, city string) ([]string, error)
}

// Handler wires HTTP requests to the conversation engine.
type Handler struct {
	engine      MessageProcessor
	locations   LocationLister
	transcripts TranscriptReader
	logger      *logging.Logger
}

// NewHandler creates a conversation handler. locations and transcripts may be
// nil; their routes then answer 503.
func NewHandler(engine MessageProcessor, locations LocationLister, transcripts TranscriptReader, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:      engine,
		locations:   locations,
		transcripts: transcripts,
		logger:      logger,
	}
}

// Respond handles POST /v1/agent/respond.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode respond request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("respond handler panicked", "tenant_id", req.TenantID, "panic", rec)
			next := StateAwaitingName
			h.writeJSON(w, http.StatusOK, Response{
				OK:        false,
				Intent:    IntentError,
				Reply:     internalErrorReply,
				NextState: &next,
			})
		}
	}()

	h.writeJSON(w, http.StatusOK, h.engine.ProcessMessage(r.Context(), req))
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "ai-agent"})
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "AI Agent is running!"})
}

// Cities handles GET /v1/locations/cities.
func (h *Handler) Cities(w http.ResponseWriter, r *http.Request) {
	if h.locations == nil {
		http.Error(w, "Directory not configured", http.StatusServiceUnavailable)
		return
	}
	cities, err := h.locations.ListCities(r.Context())
	if err != nil {
		h.logger.Error("failed to list cities", "error", err)
		http.Error(w, "Failed to list cities", http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, cities)
}

// Districts handles GET /v1/locations/districts?city=.
func (h *Handler) Districts(w http.ResponseWriter, r *http.Request) {
	if h.locations == nil {
		http.Error(w, "Directory not configured", http.StatusServiceUnavailable)
		return
	}
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		http.Error(w, "city is required", http.StatusBadRequest)
		return
	}
	districts, err := h.locations.ListDistricts(r.Context(), city)
	if err != nil {
		h.logger.Error("failed to list districts", "city", city, "error", err)
		http.Error(w, "Failed to list districts", http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, districts)
}

// GetSession handles GET /admin/sessions/{tenantID}/{fromNumber}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKeyFromPath(r)
	if !ok {
		http.Error(w, "Invalid session key", http.StatusBadRequest)
		return
	}
	session, err := h.engine.GetSession(r.Context(), key)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load session", "tenant_id", key.TenantID, "error", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// ResetSession handles DELETE /admin/sessions/{tenantID}/{fromNumber}.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKeyFromPath(r)
	if !ok {
		http.Error(w, "Invalid session key", http.StatusBadRequest)
		return
	}
	if err := h.engine.ResetSession(r.Context(), key); err != nil {
		h.logger.Error("failed to reset session", "tenant_id", key.TenantID, "error", err)
		http.Error(w, "Failed to reset session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transcripts handles GET /admin/transcripts/{tenantID}/{fromNumber}?limit=.
func (h *Handler) Transcripts(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		http.Error(w, "Transcripts not configured", http.StatusServiceUnavailable)
		return
	}
	key, ok := sessionKeyFromPath(r)
	if !ok {
		http.Error(w, "Invalid session key", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	turns, err := h.transcripts.List(r.Context(), key, limit)
	if err != nil {
		h.logger.Error("failed to list transcripts", "tenant_id", key.TenantID, "error", err)
		http.Error(w, "Failed to list transcripts", http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []Turn{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func sessionKeyFromPath(r *http.Request) (SessionKey, bool) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		return SessionKey{}, false
	}
	from := strings.TrimSpace(chi.URLParam(r, "fromNumber"))
	if from == "" {
		return SessionKey{}, false
	}
	return SessionKey{TenantID: tenantID, FromNumber: from}, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
