package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"github.com/xela07ax/spaceai-sentinel/internal/engine"
	"github.com/xela07ax/spaceai-sentinel/internal/intel"
	"github.com/xela07ax/spaceai-sentinel/internal/response"
	"github.com/xela07ax/spaceai-sentinel/internal/scorer"
	"go.uber.org/zap"
)

// ProfileReader — то, что хендлерам нужно от анализатора
type ProfileReader interface {
	GetProfile(agentID string) (domain.BehavioralProfile, bool)
}

type Handler struct {
	core      *engine.Core
	profiles  ProfileReader
	scorer    *scorer.Scorer
	intel     *intel.Intelligence
	responder *response.Responder
	logger    *zap.Logger
}

func NewHandler(core *engine.Core, profiles ProfileReader, sc *scorer.Scorer, in *intel.Intelligence, rs *response.Responder, logger *zap.Logger) *Handler {
	return &Handler{
		core:      core,
		profiles:  profiles,
		scorer:    sc,
		intel:     in,
		responder: rs,
		logger:    logger.Named("handler"),
	}
}

// Ingest принимает один сэмпл поведения и прогоняет его через конвейер.
// Битые метрики отсекаются здесь же (400), до анализатора.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	agentID := r.Header.Get("X-Agent-ID")
	if agentID == "" {
		http.Error(w, "X-Agent-ID header is required", http.StatusBadRequest)
		return
	}

	var m domain.BehaviorMetrics
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	result, err := h.core.ProcessSample(r.Context(), agentID, m)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.core.Agents())
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	profile, ok := h.profiles.GetProfile(agentID)
	if !ok {
		// Неизвестный агент — пустой результат, не ошибка
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no profile for agent"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) GetQuarantine(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	status, ok := h.responder.GetQuarantineStatus(agentID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent is not quarantined"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Quarantine — ручной карантин оператором, минуя скоринг
func (h *Handler) Quarantine(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "manual quarantine by operator"
	}

	result := h.responder.QuarantineAgent(r.Context(), agentID, req.Reason)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict // Повторный карантин — идемпотентный отказ
	}
	writeJSON(w, status, result)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	if !h.responder.ReleaseQuarantine(r.Context(), agentID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent is not quarantined"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListQuarantined(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.responder.ListQuarantined())
}

func (h *Handler) ThreatHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scorer.History(r.URL.Query().Get("agent_id")))
}

func (h *Handler) ResponseHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.responder.History(r.URL.Query().Get("agent_id")))
}

func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.responder.Incidents())
}

// Predictions возвращает прогнозы в окне ?window= (по умолчанию час)
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid window duration", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	writeJSON(w, http.StatusOK, h.intel.PredictThreats(window))
}

func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.intel.AnalyzeTrends())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
