package analyzer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"go.uber.org/zap"
)

// Пороговые константы детектора. Сравниваем всегда ТЕКУЩИЙ сэмпл с baseline,
// а не среднее со средним — иначе всплеск размажется по окну и потеряется.
const (
	latencyRatioHigh     = 2.0  // current > baseline*2.0 -> аномалия
	latencyRatioCritical = 3.0  // current > baseline*3.0 -> critical
	errorRateHigh        = 0.10 // Абсолютный порог, baseline не участвует
	errorRateCritical    = 0.20
	resourceRatio        = 1.5
	messageFreqRatio     = 3.0
)

const DefaultWindowSize = 100

// Analyzer ведет скользящие окна поведения по каждому агенту.
// Состояние шардировано по agentID: скоринг одного агента не блокирует других,
// внешняя мапа защищена только на время поиска/создания шарда.
type Analyzer struct {
	mu     sync.RWMutex
	agents map[string]*agentWindow

	windowSize int
	logger     *zap.Logger
}

// agentWindow — кольцевое окно сэмплов одного агента со своим замком
type agentWindow struct {
	mu      sync.Mutex
	samples []domain.BehaviorMetrics // Фиксированная емкость windowSize
	head    int
	size    int
	profile domain.BehavioralProfile
}

func New(windowSize int, logger *zap.Logger) *Analyzer {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Analyzer{
		agents:     make(map[string]*agentWindow),
		windowSize: windowSize,
		logger:     logger.Named("analyzer"),
	}
}

// UpdateProfile добавляет сэмпл в окно агента (старейший вытесняется),
// пересчитывает baseline как среднее по окну и находит аномалии текущего
// сэмпла. Возвращает копию свежего профиля.
func (a *Analyzer) UpdateProfile(agentID string, m domain.BehaviorMetrics) domain.BehavioralProfile {
	w := a.window(agentID)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Baseline считаем ДО добавления сэмпла: первый сэмпл нового агента
	// сравнивается с пустым baseline и ratio-проверки молчат (cold start).
	baseline := w.baseline()
	anomalies := detect(baseline, m)

	w.push(m)

	w.profile = domain.BehavioralProfile{
		AgentID:     agentID,
		Patterns:    w.patterns(),
		Baseline:    w.baseline(),
		Anomalies:   anomalies,
		SampleCount: w.size,
		LastUpdated: time.Now(),
	}

	if len(anomalies) > 0 {
		a.logger.Warn("behavioral anomalies detected",
			zap.String("agent_id", agentID),
			zap.Int("count", len(anomalies)),
		)
	}

	return w.profile
}

// IsAnomalous проверяет сэмпл против существующего baseline, ничего не меняя.
// Для неизвестного агента отвечает false (fail-open): истории нет — подозревать не в чем.
func (a *Analyzer) IsAnomalous(agentID string, m domain.BehaviorMetrics) bool {
	a.mu.RLock()
	w, ok := a.agents[agentID]
	a.mu.RUnlock()
	if !ok {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return len(detect(w.baseline(), m)) > 0
}

// GetProfile возвращает последний профиль агента. Второй результат false,
// если агент еще не присылал метрик (UnknownAgent — не ошибка).
func (a *Analyzer) GetProfile(agentID string) (domain.BehavioralProfile, bool) {
	a.mu.RLock()
	w, ok := a.agents[agentID]
	a.mu.RUnlock()
	if !ok {
		return domain.BehavioralProfile{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.size == 0 {
		return domain.BehavioralProfile{}, false
	}
	return w.profile, true
}

func (a *Analyzer) window(agentID string) *agentWindow {
	a.mu.RLock()
	w, ok := a.agents[agentID]
	a.mu.RUnlock()
	if ok {
		return w
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok = a.agents[agentID]; ok {
		return w
	}
	w = &agentWindow{samples: make([]domain.BehaviorMetrics, a.windowSize)}
	a.agents[agentID] = w
	return w
}

func (w *agentWindow) push(m domain.BehaviorMetrics) {
	if w.size < len(w.samples) {
		w.samples[(w.head+w.size)%len(w.samples)] = m
		w.size++
		return
	}
	w.samples[w.head] = m
	w.head = (w.head + 1) % len(w.samples)
}

// at — i-й сэмпл от старейшего к новейшему
func (w *agentWindow) at(i int) domain.BehaviorMetrics {
	return w.samples[(w.head+i)%len(w.samples)]
}

// baseline — среднее арифметическое каждого поля по удержанному окну.
// Пустое окно дает нулевой baseline: ratio-проверки по нему пропускаются.
func (w *agentWindow) baseline() domain.MetricBaseline {
	if w.size == 0 {
		return domain.MetricBaseline{}
	}

	var b domain.MetricBaseline
	for i := 0; i < w.size; i++ {
		s := w.at(i)
		b.OperationCount += s.OperationCount
		b.AverageLatency += s.AverageLatency
		b.ErrorRate += s.ErrorRate
		b.ResourceUsage += s.ResourceUsage
		b.MessageFrequency += s.MessageFrequency
	}

	n := float64(w.size)
	b.OperationCount /= n
	b.AverageLatency /= n
	b.ErrorRate /= n
	b.ResourceUsage /= n
	b.MessageFrequency /= n
	return b
}

// patterns — описательная сводка (mean/stddev) по каждому полю окна.
// Только отчетные метаданные, решения детектора на ней не строятся.
func (w *agentWindow) patterns() map[string]domain.MetricStats {
	extract := map[string]func(domain.BehaviorMetrics) float64{
		"operation_count":   func(m domain.BehaviorMetrics) float64 { return m.OperationCount },
		"average_latency":   func(m domain.BehaviorMetrics) float64 { return m.AverageLatency },
		"error_rate":        func(m domain.BehaviorMetrics) float64 { return m.ErrorRate },
		"resource_usage":    func(m domain.BehaviorMetrics) float64 { return m.ResourceUsage },
		"message_frequency": func(m domain.BehaviorMetrics) float64 { return m.MessageFrequency },
	}

	stats := make(map[string]domain.MetricStats, len(extract))
	for name, f := range extract {
		var sum float64
		for i := 0; i < w.size; i++ {
			sum += f(w.at(i))
		}
		mean := 0.0
		if w.size > 0 {
			mean = sum / float64(w.size)
		}

		var variance float64
		for i := 0; i < w.size; i++ {
			d := f(w.at(i)) - mean
			variance += d * d
		}
		if w.size > 0 {
			variance /= float64(w.size)
		}

		stats[name] = domain.MetricStats{Mean: mean, StdDev: math.Sqrt(variance)}
	}
	return stats
}

// detect сверяет текущий сэмпл с baseline по фиксированным порогам.
// Ratio-проверки защищены условием baseline > 0: нет истории — нет ложных сработок.
func detect(b domain.MetricBaseline, m domain.BehaviorMetrics) []domain.BehavioralAnomaly {
	var found []domain.BehavioralAnomaly
	now := time.Now()

	add := func(typ string, sev domain.Severity, desc string) {
		found = append(found, domain.BehavioralAnomaly{
			Type:        typ,
			Severity:    sev,
			Description: desc,
			Timestamp:   now,
			Metrics:     m,
		})
	}

	// Latency: ratio к baseline, critical при трехкратном превышении
	if b.AverageLatency > 0 && m.AverageLatency > b.AverageLatency*latencyRatioHigh {
		sev := domain.SeverityHigh
		if m.AverageLatency > b.AverageLatency*latencyRatioCritical {
			sev = domain.SeverityCritical
		}
		add(domain.AnomalyLatencySpike, sev,
			fmt.Sprintf("average latency %.1fms exceeds baseline %.1fms", m.AverageLatency, b.AverageLatency))
	}

	// ErrorRate: абсолютный порог, срабатывает и на первом сэмпле
	if m.ErrorRate > errorRateHigh {
		sev := domain.SeverityHigh
		if m.ErrorRate > errorRateCritical {
			sev = domain.SeverityCritical
		}
		add(domain.AnomalyHighErrorRate, sev,
			fmt.Sprintf("error rate %.2f exceeds threshold %.2f", m.ErrorRate, errorRateHigh))
	}

	if b.ResourceUsage > 0 && m.ResourceUsage > b.ResourceUsage*resourceRatio {
		add(domain.AnomalyResourceSpike, domain.SeverityMedium,
			fmt.Sprintf("resource usage %.2f exceeds baseline %.2f", m.ResourceUsage, b.ResourceUsage))
	}

	if b.MessageFrequency > 0 && m.MessageFrequency > b.MessageFrequency*messageFreqRatio {
		add(domain.AnomalyMessageFlood, domain.SeverityMedium,
			fmt.Sprintf("message frequency %.0f exceeds baseline %.0f", m.MessageFrequency, b.MessageFrequency))
	}

	return found
}
