package intel

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"
)

func newTestIntel() *Intelligence {
	return New(1000, zap.NewNop())
}

// feed кладет события агента с равным шагом по времени, заканчивая «сейчас»
func feed(in *Intelligence, agentID string, typ domain.ThreatType, scores []float64, step time.Duration) {
	start := time.Now().Add(-step * time.Duration(len(scores)-1))
	for i, s := range scores {
		in.AddThreatEvent(domain.ThreatEvent{
			ID:         fmt.Sprintf("%s-%d", agentID, i),
			Timestamp:  start.Add(step * time.Duration(i)),
			AgentID:    agentID,
			Score:      s,
			ThreatType: typ,
		})
	}
}

func TestGetPattern_RequiresFiveEvents(t *testing.T) {
	in := newTestIntel()

	feed(in, "agent-1", domain.ThreatUnknown, []float64{0.1, 0.2, 0.3, 0.4}, time.Minute)
	_, ok := in.GetPattern("agent-1")
	assert.False(t, ok)

	feed(in, "agent-1", domain.ThreatUnknown, []float64{0.5}, time.Minute)
	pattern, ok := in.GetPattern("agent-1")
	require.True(t, ok)
	assert.Equal(t, 5, pattern.EventCount)
}

func TestLearnPattern_FrequencySpanClampedToHour(t *testing.T) {
	in := newTestIntel()

	// Пять событий за 20 минут: интервал клэмпится до часа, частота = 5/час
	feed(in, "agent-1", domain.ThreatUnknown, []float64{0.1, 0.1, 0.1, 0.1, 0.1}, 5*time.Minute)

	pattern, ok := in.GetPattern("agent-1")
	require.True(t, ok)
	assert.InDelta(t, 5.0, pattern.ThreatFrequency, 1e-9)
}

func TestLearnPattern_FrequencyOverRealSpan(t *testing.T) {
	in := newTestIntel()

	// Пять событий за четыре часа
	feed(in, "agent-1", domain.ThreatUnknown, []float64{0.1, 0.1, 0.1, 0.1, 0.1}, time.Hour)

	pattern, ok := in.GetPattern("agent-1")
	require.True(t, ok)
	assert.InDelta(t, 1.25, pattern.ThreatFrequency, 1e-9)
}

func TestLearnPattern_EscalationRate(t *testing.T) {
	in := newTestIntel()

	scores := []float64{0.1, 0.2, 0.1, 0.9, 0.8, 0.85, 0.9, 0.95, 0.9, 0.92}
	feed(in, "agent-1", domain.ThreatDenialOfService, scores, 10*time.Minute)

	pattern, ok := in.GetPattern("agent-1")
	require.True(t, ok)

	// Среднее второй половины (0.904) минус первой (0.42)
	assert.InDelta(t, 0.484, pattern.EscalationRate, 1e-9)
	assert.Greater(t, pattern.EscalationRate, 0.0)
}

func TestLearnPattern_HourlyHistogram(t *testing.T) {
	in := newTestIntel()

	ts := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		in.AddThreatEvent(domain.ThreatEvent{
			ID:        fmt.Sprintf("e-%d", i),
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			AgentID:   "agent-1",
			Score:     0.5,
		})
	}

	pattern, ok := in.GetPattern("agent-1")
	require.True(t, ok)
	assert.Equal(t, 5, pattern.HourlyPattern[14])
	assert.Equal(t, 5, pattern.DailyPattern[int(ts.Weekday())])
}

func TestPredictionConfidence_Curve(t *testing.T) {
	tests := []struct {
		count    int
		expected float64
	}{
		{3, 0.3},
		{15, 0.725},  // 0.5 + 15/20*0.3
		{50, 0.875},  // 0.8 + 30/80*0.2
		{150, 1.0},   // Насыщение на 100
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("count %d", tt.count), func(t *testing.T) {
			got := predictionConfidence(tt.count)
			assert.InDelta(t, tt.expected, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.3)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestPredictionConfidence_Monotonic(t *testing.T) {
	prev := 0.0
	for _, n := range []int{1, 4, 5, 10, 19, 20, 40, 100, 200} {
		got := predictionConfidence(n)
		assert.GreaterOrEqual(t, got, prev, "confidence must not drop at count %d", n)
		prev = got
	}
}

func TestPredictThreats_EligibilityAndWindow(t *testing.T) {
	in := newTestIntel()

	// 10 событий за ~1.5 часа: частота ~6.7/час, следующее событие через ~9 минут
	feed(in, "hot-agent", domain.ThreatDenialOfService,
		[]float64{0.5, 0.5, 0.6, 0.6, 0.7, 0.7, 0.7, 0.8, 0.8, 0.8}, 10*time.Minute)

	// Четыре события — паттерна нет, в прогноз не попадает
	feed(in, "quiet-agent", domain.ThreatUnknown, []float64{0.1, 0.1, 0.1, 0.1}, time.Hour)

	predictions := in.PredictThreats(time.Hour)
	require.Len(t, predictions, 1)

	p := predictions[0]
	assert.Equal(t, "hot-agent", p.AgentID)
	assert.Equal(t, domain.ThreatDenialOfService, p.ThreatType)
	assert.GreaterOrEqual(t, p.Probability, 0.0)
	assert.LessOrEqual(t, p.Probability, 1.0)
	assert.True(t, p.PredictedTime.After(time.Now()))
	assert.NotEmpty(t, p.Indicators)
}

func TestPredictThreats_SlowAgentOutsideWindow(t *testing.T) {
	in := newTestIntel()

	// Пять событий за сутки: частота ~0.2/час, следующее через ~5 часов
	feed(in, "slow-agent", domain.ThreatUnknown, []float64{0.3, 0.3, 0.3, 0.3, 0.3}, 6*time.Hour)

	assert.Empty(t, in.PredictThreats(time.Hour))
	assert.NotEmpty(t, in.PredictThreats(12*time.Hour))
}

func TestPredictThreats_StableOrder(t *testing.T) {
	in := newTestIntel()

	for _, agent := range []string{"bravo", "alpha", "charlie"} {
		feed(in, agent, domain.ThreatUnknown, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, 5*time.Minute)
	}

	predictions := in.PredictThreats(time.Hour)
	require.Len(t, predictions, 3)
	assert.Equal(t, "alpha", predictions[0].AgentID)
	assert.Equal(t, "bravo", predictions[1].AgentID)
	assert.Equal(t, "charlie", predictions[2].AgentID)
}

func TestDominantType(t *testing.T) {
	events := []domain.ThreatEvent{
		{ThreatType: domain.ThreatUnknown},
		{ThreatType: domain.ThreatDenialOfService},
		{ThreatType: domain.ThreatDenialOfService},
		{ThreatType: domain.ThreatDataExfiltration},
	}
	assert.Equal(t, domain.ThreatDenialOfService, dominantType(events))
	assert.Equal(t, domain.ThreatUnknown, dominantType(nil))
}

func TestAnalyzeTrends_RequiresTenEvents(t *testing.T) {
	in := newTestIntel()

	feed(in, "agent-1", domain.ThreatDenialOfService,
		[]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, time.Minute)

	assert.Empty(t, in.AnalyzeTrends())
}

func TestAnalyzeTrends_Directions(t *testing.T) {
	t.Run("stable on even spacing", func(t *testing.T) {
		in := newTestIntel()
		feed(in, "agent-1", domain.ThreatDenialOfService,
			[]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, time.Hour)

		trends := in.AnalyzeTrends()
		require.Len(t, trends, 1)
		assert.Equal(t, domain.TrendStable, trends[0].Trend)
		assert.InDelta(t, 0.5, trends[0].Prediction, 1e-9)
	})

	t.Run("increasing when recent half is denser", func(t *testing.T) {
		in := newTestIntel()
		now := time.Now()
		// Первая половина раз в час, вторая — раз в пять минут
		stamps := []time.Duration{
			-10 * time.Hour, -9 * time.Hour, -8 * time.Hour, -7 * time.Hour, -6 * time.Hour,
			-20 * time.Minute, -15 * time.Minute, -10 * time.Minute, -5 * time.Minute, 0,
		}
		for i, d := range stamps {
			in.AddThreatEvent(domain.ThreatEvent{
				ID:         fmt.Sprintf("e-%d", i),
				Timestamp:  now.Add(d),
				AgentID:    "agent-1",
				Score:      0.5,
				ThreatType: domain.ThreatResourceExhaustion,
			})
		}

		trends := in.AnalyzeTrends()
		require.Len(t, trends, 1)
		assert.Equal(t, domain.TrendIncreasing, trends[0].Trend)
		assert.Greater(t, trends[0].Rate, 0.0)
	})

	t.Run("decreasing when recent half is sparse", func(t *testing.T) {
		in := newTestIntel()
		now := time.Now()
		stamps := []time.Duration{
			-21 * time.Hour, -20*time.Hour - 55*time.Minute, -20*time.Hour - 50*time.Minute,
			-20*time.Hour - 45*time.Minute, -20*time.Hour - 40*time.Minute,
			-16 * time.Hour, -12 * time.Hour, -8 * time.Hour, -4 * time.Hour, 0,
		}
		for i, d := range stamps {
			in.AddThreatEvent(domain.ThreatEvent{
				ID:         fmt.Sprintf("e-%d", i),
				Timestamp:  now.Add(d),
				AgentID:    "agent-1",
				Score:      0.5,
				ThreatType: domain.ThreatDataExfiltration,
			})
		}

		trends := in.AnalyzeTrends()
		require.Len(t, trends, 1)
		assert.Equal(t, domain.TrendDecreasing, trends[0].Trend)
		assert.Less(t, trends[0].Rate, 0.0)
	})
}

func TestHistory_FilterByAgent(t *testing.T) {
	in := newTestIntel()

	feed(in, "agent-1", domain.ThreatUnknown, []float64{0.1, 0.2}, time.Minute)
	feed(in, "agent-2", domain.ThreatUnknown, []float64{0.3}, time.Minute)

	assert.Len(t, in.History(""), 3)
	assert.Len(t, in.History("agent-1"), 2)
	assert.Empty(t, in.History("ghost"))
}
