package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"
)

func newTestAnalyzer(windowSize int) *Analyzer {
	return New(windowSize, zap.NewNop())
}

func steadyMetrics() domain.BehaviorMetrics {
	return domain.BehaviorMetrics{
		OperationCount:   50,
		AverageLatency:   100,
		ErrorRate:        0.01,
		ResourceUsage:    1.0,
		MessageFrequency: 100,
	}
}

func TestUpdateProfile_ColdStartSkipsRatioChecks(t *testing.T) {
	a := newTestAnalyzer(100)

	// Первый сэмпл агента: baseline пуст, даже экстремальная задержка
	// не дает ratio-аномалий.
	profile := a.UpdateProfile("agent-1", domain.BehaviorMetrics{
		AverageLatency:   5000,
		ResourceUsage:    9.0,
		MessageFrequency: 10000,
	})

	assert.Empty(t, profile.Anomalies)
	assert.Equal(t, 1, profile.SampleCount)
}

func TestUpdateProfile_ErrorRateFiresOnFirstSample(t *testing.T) {
	a := newTestAnalyzer(100)

	// Абсолютный порог errorRate не зависит от baseline
	profile := a.UpdateProfile("agent-1", domain.BehaviorMetrics{ErrorRate: 0.15})

	require.Len(t, profile.Anomalies, 1)
	assert.Equal(t, domain.AnomalyHighErrorRate, profile.Anomalies[0].Type)
	assert.Equal(t, domain.SeverityHigh, profile.Anomalies[0].Severity)
}

func TestUpdateProfile_ErrorRateCritical(t *testing.T) {
	a := newTestAnalyzer(100)

	profile := a.UpdateProfile("agent-1", domain.BehaviorMetrics{ErrorRate: 0.25})

	require.Len(t, profile.Anomalies, 1)
	assert.Equal(t, domain.SeverityCritical, profile.Anomalies[0].Severity)
}

func TestUpdateProfile_LatencySpikeSeverity(t *testing.T) {
	tests := []struct {
		name     string
		latency  float64
		severity domain.Severity
		fires    bool
	}{
		{name: "twice baseline is quiet", latency: 200, fires: false},
		{name: "just above double is high", latency: 201, severity: domain.SeverityHigh, fires: true},
		{name: "just above triple is critical", latency: 301, severity: domain.SeverityCritical, fires: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(100)
			for i := 0; i < 5; i++ {
				a.UpdateProfile("agent-1", steadyMetrics()) // baseline latency = 100
			}

			m := steadyMetrics()
			m.AverageLatency = tt.latency
			profile := a.UpdateProfile("agent-1", m)

			if !tt.fires {
				assert.Empty(t, profile.Anomalies)
				return
			}
			require.Len(t, profile.Anomalies, 1)
			assert.Equal(t, domain.AnomalyLatencySpike, profile.Anomalies[0].Type)
			assert.Equal(t, tt.severity, profile.Anomalies[0].Severity)
		})
	}
}

func TestUpdateProfile_ResourceAndFloodAreMedium(t *testing.T) {
	a := newTestAnalyzer(100)
	for i := 0; i < 5; i++ {
		a.UpdateProfile("agent-1", steadyMetrics()) // baseline: resource 1.0, freq 100
	}

	m := steadyMetrics()
	m.ResourceUsage = 1.6    // > 1.0 * 1.5
	m.MessageFrequency = 350 // > 100 * 3
	profile := a.UpdateProfile("agent-1", m)

	require.Len(t, profile.Anomalies, 2)
	byType := map[string]domain.Severity{}
	for _, an := range profile.Anomalies {
		byType[an.Type] = an.Severity
	}
	assert.Equal(t, domain.SeverityMedium, byType[domain.AnomalyResourceSpike])
	assert.Equal(t, domain.SeverityMedium, byType[domain.AnomalyMessageFlood])
}

func TestUpdateProfile_BaselineIsWindowMean(t *testing.T) {
	a := newTestAnalyzer(100)

	latencies := []float64{100, 200, 300}
	var profile domain.BehavioralProfile
	for _, lat := range latencies {
		m := steadyMetrics()
		m.AverageLatency = lat
		profile = a.UpdateProfile("agent-1", m)
	}

	assert.InDelta(t, 200.0, profile.Baseline.AverageLatency, 1e-9)
	assert.Equal(t, 3, profile.SampleCount)
	assert.InDelta(t, 200.0, profile.Patterns["average_latency"].Mean, 1e-9)
}

func TestUpdateProfile_WindowEvictsOldest(t *testing.T) {
	a := newTestAnalyzer(3)

	// Пять сэмплов в окно на три: удерживаются последние 300, 400, 500
	for _, lat := range []float64{100, 200, 300, 400, 500} {
		m := steadyMetrics()
		m.AverageLatency = lat
		a.UpdateProfile("agent-1", m)
	}

	profile, ok := a.GetProfile("agent-1")
	require.True(t, ok)
	assert.Equal(t, 3, profile.SampleCount)
	assert.InDelta(t, 400.0, profile.Baseline.AverageLatency, 1e-9)
}

func TestUpdateProfile_DetectsAgainstPreUpdateBaseline(t *testing.T) {
	a := newTestAnalyzer(100)

	a.UpdateProfile("agent-1", steadyMetrics()) // baseline latency становится 100

	// 250 против baseline 100 — аномалия, хотя после вставки среднее уже 175
	m := steadyMetrics()
	m.AverageLatency = 250
	profile := a.UpdateProfile("agent-1", m)

	require.Len(t, profile.Anomalies, 1)
	assert.Equal(t, domain.AnomalyLatencySpike, profile.Anomalies[0].Type)
	assert.InDelta(t, 175.0, profile.Baseline.AverageLatency, 1e-9)
}

func TestIsAnomalous_UnknownAgentIsFalse(t *testing.T) {
	a := newTestAnalyzer(100)

	assert.False(t, a.IsAnomalous("ghost", domain.BehaviorMetrics{
		AverageLatency: 100000,
		ErrorRate:      0.99,
	}))
}

func TestIsAnomalous_DoesNotMutateWindow(t *testing.T) {
	a := newTestAnalyzer(100)
	a.UpdateProfile("agent-1", steadyMetrics())

	m := steadyMetrics()
	m.AverageLatency = 1000
	assert.True(t, a.IsAnomalous("agent-1", m))

	profile, ok := a.GetProfile("agent-1")
	require.True(t, ok)
	assert.Equal(t, 1, profile.SampleCount)
}

func TestGetProfile_UnknownAgent(t *testing.T) {
	a := newTestAnalyzer(100)

	_, ok := a.GetProfile("ghost")
	assert.False(t, ok)
}
