package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-sentinel/internal/analyzer"
	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"github.com/xela07ax/spaceai-sentinel/internal/engine"
	"github.com/xela07ax/spaceai-sentinel/internal/intel"
	"github.com/xela07ax/spaceai-sentinel/internal/response"
	"github.com/xela07ax/spaceai-sentinel/internal/scorer"
)

// newTestRouter поднимает хендлеры на полном in-memory конвейере,
// без auth-периметра: здесь проверяется контракт хендлеров, не токены
func newTestRouter() (*chi.Mux, *response.Responder) {
	logger := zap.NewNop()
	a := analyzer.New(100, logger)
	in := intel.New(1000, logger)
	sc := scorer.New(a, nil, 1000, logger)
	rs := response.New(0.8, logger)
	core := engine.NewCore(a, sc, rs, engine.NewMetrics(nil), logger)

	h := NewHandler(core, a, sc, in, rs, logger)

	r := chi.NewRouter()
	r.Post("/v1/ingest", h.Ingest)
	r.Get("/v1/agents", h.ListAgents)
	r.Get("/v1/agents/{id}/profile", h.GetProfile)
	r.Get("/v1/agents/{id}/quarantine", h.GetQuarantine)
	r.Post("/v1/agents/{id}/quarantine", h.Quarantine)
	r.Post("/v1/agents/{id}/release", h.Release)
	r.Get("/v1/threats", h.ThreatHistory)
	r.Get("/v1/predictions", h.Predictions)
	r.Get("/v1/trends", h.Trends)
	return r, rs
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const sampleBody = `{"operation_count":50,"average_latency":100,"error_rate":0.01,"resource_usage":1.0,"message_frequency":100}`

func TestIngest_RequiresAgentHeader(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/v1/ingest", sampleBody, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_RejectsInvalidMetrics(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/v1/ingest",
		`{"error_rate":1.7}`, map[string]string{"X-Agent-ID": "agent-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_ReturnsPipelineResult(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/v1/ingest", sampleBody,
		map[string]string{"X-Agent-ID": "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result engine.ProcessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "agent-1", result.Profile.AgentID)
	assert.Equal(t, domain.ActionMonitor, result.Response.Action)
}

func TestGetProfile_UnknownAgentIs404(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/v1/agents/ghost/profile", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProfile_AfterIngest(t *testing.T) {
	router, _ := newTestRouter()

	doJSON(t, router, http.MethodPost, "/v1/ingest", sampleBody,
		map[string]string{"X-Agent-ID": "agent-1"})

	rec := doJSON(t, router, http.MethodGet, "/v1/agents/agent-1/profile", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile domain.BehavioralProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, 1, profile.SampleCount)
}

func TestQuarantine_ManualAndConflict(t *testing.T) {
	router, rs := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/v1/agents/agent-1/quarantine",
		`{"reason":"operator request"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rs.IsQuarantined("agent-1"))

	// Повторный карантин — конфликт, состояние не меняется
	rec = doJSON(t, router, http.MethodPost, "/v1/agents/agent-1/quarantine", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var result domain.ResponseActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "Agent already quarantined", result.Error)
}

func TestRelease_Flow(t *testing.T) {
	router, _ := newTestRouter()

	doJSON(t, router, http.MethodPost, "/v1/agents/agent-1/quarantine", "", nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/agents/agent-1/release", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/agents/agent-1/release", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictions_WindowValidation(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/v1/predictions?window=banana", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/predictions?window=2h", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestThreatHistory_FilterByAgent(t *testing.T) {
	router, _ := newTestRouter()

	doJSON(t, router, http.MethodPost, "/v1/ingest", sampleBody,
		map[string]string{"X-Agent-ID": "agent-1"})
	doJSON(t, router, http.MethodPost, "/v1/ingest", sampleBody,
		map[string]string{"X-Agent-ID": "agent-2"})

	rec := doJSON(t, router, http.MethodGet, "/v1/threats?agent_id=agent-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []domain.ThreatEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "agent-1", events[0].AgentID)
}
