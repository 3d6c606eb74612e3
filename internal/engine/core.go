package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/spaceai-sentinel/internal/analyzer"
	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"github.com/xela07ax/spaceai-sentinel/internal/response"
	"github.com/xela07ax/spaceai-sentinel/internal/scorer"
	"go.uber.org/zap"
)

// Core — сборка детекционного конвейера: один сэмпл проходит цепочку
// updateProfile -> scoreThreat -> respondToThreat синхронно в памяти,
// без I/O и точек ожидания. События скоринга уезжают в предиктор и аудит
// асинхронно через fanout и на горячий путь не влияют.
type Core struct {
	analyzer  *analyzer.Analyzer
	scorer    *scorer.Scorer
	responder *response.Responder
	metrics   *Metrics
	logger    *zap.Logger

	// Реестр увиденных агентов для операторского API
	mu     sync.RWMutex
	agents map[string]*domain.Agent
}

// ProcessResult — результат прохода одного сэмпла по конвейеру
type ProcessResult struct {
	Profile  domain.BehavioralProfile    `json:"profile"`
	Score    domain.ThreatScore          `json:"score"`
	Response domain.ResponseActionResult `json:"response"`
}

func NewCore(a *analyzer.Analyzer, s *scorer.Scorer, r *response.Responder, m *Metrics, logger *zap.Logger) *Core {
	return &Core{
		analyzer:  a,
		scorer:    s,
		responder: r,
		metrics:   m,
		logger:    logger.Named("core"),
		agents:    make(map[string]*domain.Agent),
	}
}

// ProcessSample — горячий путь. Валидация на границе: битый сэмпл не трогает
// ни baseline, ни историю (ValidationError).
func (c *Core) ProcessSample(ctx context.Context, agentID string, m domain.BehaviorMetrics) (ProcessResult, error) {
	start := time.Now()

	if agentID == "" {
		return ProcessResult{}, fmt.Errorf("ingest: agent id is required")
	}
	if err := m.Validate(); err != nil {
		c.metrics.ValidationRejects.Inc()
		return ProcessResult{}, err
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = start
	}

	c.touchAgent(agentID, start)
	c.metrics.SamplesTotal.WithLabelValues(agentID).Inc()

	profile := c.analyzer.UpdateProfile(agentID, m)
	for _, a := range profile.Anomalies {
		c.metrics.AnomaliesTotal.WithLabelValues(string(a.Severity)).Inc()
	}

	score := c.scorer.ScoreThreat(agentID, m)
	c.metrics.ThreatScore.Observe(score.Score)

	result := c.responder.RespondToThreat(ctx, agentID, score)
	c.metrics.ActionsTotal.WithLabelValues(string(result.Action)).Inc()
	c.metrics.ActiveQuarantines.Set(float64(len(c.responder.ListQuarantined())))

	c.metrics.PipelineDuration.Observe(time.Since(start).Seconds())

	return ProcessResult{Profile: profile, Score: score, Response: result}, nil
}

// Agents — сводка по всем агентам с их текущим состоянием
func (c *Core) Agents() []domain.Agent {
	c.mu.RLock()
	out := make([]domain.Agent, 0, len(c.agents))
	for _, a := range c.agents {
		out = append(out, *a)
	}
	c.mu.RUnlock()

	for i := range out {
		out[i].State = c.responder.StateOf(out[i].ID)
	}
	return out
}

func (c *Core) touchAgent(agentID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.agents[agentID]
	if !ok {
		a = &domain.Agent{ID: agentID, FirstSeen: now}
		c.agents[agentID] = a
	}
	a.LastActivity = now
}
