// Package intel — предиктивная разведка угроз: обучение временных паттернов
// по истории ThreatEvent, прогнозы следующих инцидентов и системные тренды.
// Работает поверх снапшотов журнала и намеренно eventually consistent
// относительно конкурентных записей: прогноз, посчитанный параллельно с новым
// событием, не обязан это событие учитывать.
package intel

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"github.com/xela07ax/spaceai-sentinel/internal/ringlog"
	"go.uber.org/zap"
)

const (
	DefaultEventCap = 100_000

	// Минимум наблюдений для обучения паттерна и участия в прогнозах
	patternMinEvents = 5

	// Минимум событий типа для анализа тренда
	trendMinEvents = 10

	// Гистерезис ±10%: дребезг около границы не меняет классификацию тренда
	trendHysteresis = 0.10

	// Индикаторный порог «высокой частоты», событий/час
	highFrequencyLevel = 1.0

	probeRecentScores   = 10 // Сколько последних скоров участвует в probability
	trendPredictWindow  = 20 // Сколько последних событий типа усредняем в prediction
	minPatternSpanHours = 1.0
)

// Intelligence владеет длинным журналом событий (100k) и выученными паттернами
type Intelligence struct {
	events *ringlog.Log[domain.ThreatEvent]
	logger *zap.Logger

	mu       sync.RWMutex
	patterns map[string]domain.ThreatPattern
	trends   map[domain.ThreatType]domain.ThreatTrend
}

func New(eventCap int, logger *zap.Logger) *Intelligence {
	if eventCap <= 0 {
		eventCap = DefaultEventCap
	}
	return &Intelligence{
		events:   ringlog.New[domain.ThreatEvent](eventCap),
		logger:   logger.Named("intel"),
		patterns: make(map[string]domain.ThreatPattern),
		trends:   make(map[domain.ThreatType]domain.ThreatTrend),
	}
}

// AddThreatEvent дописывает событие в журнал и пересчитывает паттерн агента
// и тренды по всем типам.
func (in *Intelligence) AddThreatEvent(e domain.ThreatEvent) {
	in.events.Append(e)

	agentEvents := in.agentEvents(e.AgentID)
	pattern, ok := learnPattern(e.AgentID, agentEvents)

	in.mu.Lock()
	if ok {
		in.patterns[e.AgentID] = pattern
	}
	in.mu.Unlock()

	in.recomputeTrends()
}

// GetPattern возвращает выученный паттерн агента (false — данных еще мало)
func (in *Intelligence) GetPattern(agentID string) (domain.ThreatPattern, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	p, ok := in.patterns[agentID]
	return p, ok
}

// PredictThreats прогнозирует инциденты в ближайшем окне.
// Агент попадает в выдачу, только если у него ≥5 событий и расчетное время
// следующей угрозы лежит внутри [now, now+window].
func (in *Intelligence) PredictThreats(window time.Duration) []domain.PredictedThreat {
	now := time.Now()

	in.mu.RLock()
	patterns := make([]domain.ThreatPattern, 0, len(in.patterns))
	for _, p := range in.patterns {
		patterns = append(patterns, p)
	}
	in.mu.RUnlock()

	// Стабильный порядок выдачи для операторского API
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].AgentID < patterns[j].AgentID })

	var out []domain.PredictedThreat
	for _, p := range patterns {
		if p.EventCount < patternMinEvents || p.ThreatFrequency <= 0 {
			continue
		}

		// Средний интервал между событиями: час / частота
		next := now.Add(time.Duration(float64(time.Hour) / p.ThreatFrequency))
		if next.After(now.Add(window)) {
			continue
		}

		events := in.agentEvents(p.AgentID)
		out = append(out, domain.PredictedThreat{
			AgentID:       p.AgentID,
			ThreatType:    dominantType(events),
			Probability:   clamp01(meanRecentScore(events, probeRecentScores) + p.EscalationRate),
			PredictedTime: next,
			Confidence:    predictionConfidence(p.EventCount),
			Indicators:    indicators(p),
		})
	}

	return out
}

// AnalyzeTrends сравнивает интенсивность первой и второй половины истории
// по каждому типу угрозы.
func (in *Intelligence) AnalyzeTrends() []domain.ThreatTrend {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]domain.ThreatTrend, 0, len(in.trends))
	for _, t := range in.trends {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThreatType < out[j].ThreatType })
	return out
}

// History возвращает снапшот длинного журнала (весь или по агенту)
func (in *Intelligence) History(agentID string) []domain.ThreatEvent {
	if agentID == "" {
		return in.events.Snapshot()
	}
	return in.agentEvents(agentID)
}

func (in *Intelligence) agentEvents(agentID string) []domain.ThreatEvent {
	return in.events.Filter(func(e domain.ThreatEvent) bool { return e.AgentID == agentID })
}

func (in *Intelligence) recomputeTrends() {
	byType := make(map[domain.ThreatType][]domain.ThreatEvent)
	for _, e := range in.events.Snapshot() {
		byType[e.ThreatType] = append(byType[e.ThreatType], e)
	}

	fresh := make(map[domain.ThreatType]domain.ThreatTrend)
	for typ, events := range byType {
		if t, ok := analyzeTypeTrend(typ, events); ok {
			fresh[typ] = t
		}
	}

	in.mu.Lock()
	in.trends = fresh
	in.mu.Unlock()
}

// learnPattern строит временной профиль агента из его хронологии событий
func learnPattern(agentID string, events []domain.ThreatEvent) (domain.ThreatPattern, bool) {
	if len(events) < patternMinEvents {
		return domain.ThreatPattern{}, false
	}

	p := domain.ThreatPattern{AgentID: agentID, EventCount: len(events)}
	for _, e := range events {
		p.HourlyPattern[e.Timestamp.Hour()]++
		p.DailyPattern[int(e.Timestamp.Weekday())]++
	}

	// Частота = события/час за наблюдаемый интервал. Интервал клэмпим снизу
	// одним часом: пачка событий в одну минуту не должна давать бесконечность.
	span := events[len(events)-1].Timestamp.Sub(events[0].Timestamp).Hours()
	if span < minPatternSpanHours {
		span = minPatternSpanHours
	}
	p.ThreatFrequency = float64(len(events)) / span

	// Эскалация: средний скор второй половины минус первой. >0 — агент деградирует.
	half := len(events) / 2
	p.EscalationRate = meanScore(events[half:]) - meanScore(events[:half])

	return p, true
}

func analyzeTypeTrend(typ domain.ThreatType, events []domain.ThreatEvent) (domain.ThreatTrend, bool) {
	if len(events) < trendMinEvents {
		return domain.ThreatTrend{}, false
	}

	half := len(events) / 2
	firstRate := eventsPerHour(events[:half])
	secondRate := eventsPerHour(events[half:])

	direction := domain.TrendStable
	switch {
	case secondRate > firstRate*(1+trendHysteresis):
		direction = domain.TrendIncreasing
	case secondRate < firstRate*(1-trendHysteresis):
		direction = domain.TrendDecreasing
	}

	return domain.ThreatTrend{
		ThreatType: typ,
		Trend:      direction,
		Rate:       secondRate - firstRate,
		Prediction: meanRecentScore(events, trendPredictWindow),
	}, true
}

// eventsPerHour — интенсивность отрезка истории, защищена от нулевого интервала
func eventsPerHour(events []domain.ThreatEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	span := events[len(events)-1].Timestamp.Sub(events[0].Timestamp).Hours()
	if span <= 0 {
		span = minPatternSpanHours
	}
	return float64(len(events)) / span
}

// predictionConfidence — кусочная кривая уверенности от количества наблюдений.
// Эвристика исходной системы, сохраняем числа как есть: <5 -> 0.3,
// <20 -> 0.5..0.8, дальше 0.8..1.0 с насыщением на 100 событиях.
func predictionConfidence(count int) float64 {
	switch {
	case count < 5:
		return 0.3
	case count < 20:
		return 0.5 + float64(count)/20.0*0.3
	default:
		n := count
		if n > 100 {
			n = 100
		}
		return 0.8 + float64(n-20)/80.0*0.2
	}
}

func indicators(p domain.ThreatPattern) []string {
	var notes []string
	if p.EscalationRate > 0 {
		notes = append(notes, fmt.Sprintf("escalating pattern: score rising by %.2f", p.EscalationRate))
	}
	if p.ThreatFrequency > highFrequencyLevel {
		notes = append(notes, fmt.Sprintf("high threat frequency: %.1f events/hour", p.ThreatFrequency))
	}
	notes = append(notes, fmt.Sprintf("peak activity hour: %02d:00", peakHour(p.HourlyPattern)))
	return notes
}

func peakHour(hourly [24]int) int {
	peak := 0
	for h, n := range hourly {
		if n > hourly[peak] {
			peak = h
		}
	}
	return peak
}

// dominantType — самый частый тип угрозы в истории агента
func dominantType(events []domain.ThreatEvent) domain.ThreatType {
	counts := make(map[domain.ThreatType]int)
	best, bestN := domain.ThreatUnknown, 0
	for _, e := range events {
		counts[e.ThreatType]++
		if counts[e.ThreatType] > bestN {
			best, bestN = e.ThreatType, counts[e.ThreatType]
		}
	}
	return best
}

func meanScore(events []domain.ThreatEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += e.Score
	}
	return sum / float64(len(events))
}

func meanRecentScore(events []domain.ThreatEvent, n int) float64 {
	if len(events) > n {
		events = events[len(events)-n:]
	}
	return meanScore(events)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
