package scorer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"github.com/xela07ax/spaceai-sentinel/internal/ringlog"
	"go.uber.org/zap"
)

// Веса rule-based скоринга. Эвристические константы исходной системы,
// числовое поведение сохраняем ради совместимости.
const (
	weightCritical = 0.3
	weightHigh     = 0.2
	weightMedium   = 0.1
	weightLow      = 0.1

	latencyBonus   = 0.2  // Любая latency-аномалия — признак деградации под нагрузкой
	floodBonus     = 0.3  // Абсолютный флуд-порог
	floodThreshold = 1000.0

	ruleConfidence = 0.7 // Фиксированная уверенность rule-based пути

	// Пороги классификации типа угрозы (строгий приоритет сверху вниз)
	exhaustionResourceLevel = 2.0
	dosErrorRateLevel       = 0.2
	exfilFrequencyLevel     = 2000.0

	// Маппинг скора на рекомендуемое действие
	killLevel       = 0.8
	quarantineLevel = 0.6
	escalateLevel   = 0.4
)

const DefaultHistoryCap = 10_000

// ProfileProvider — то, что скореру нужно от анализатора
type ProfileProvider interface {
	GetProfile(agentID string) (domain.BehavioralProfile, bool)
}

// EventSink принимает события скоринга для асинхронной доставки
// (предиктор, аудит). Реализация не должна блокировать горячий путь.
type EventSink interface {
	Publish(e domain.ThreatEvent)
}

// Scorer превращает аномалии профиля и сырой сэмпл в ThreatScore.
// Для агента может быть обучена подключаемая модель; при любом её сбое
// скорер молча откатывается на rule-based путь.
type Scorer struct {
	profiles ProfileProvider
	sink     EventSink
	logger   *zap.Logger

	mu     sync.RWMutex
	models map[string]Model // Только успешно обученные модели

	events *ringlog.Log[domain.ThreatEvent] // Глобальный ограниченный лог решений
}

func New(profiles ProfileProvider, sink EventSink, historyCap int, logger *zap.Logger) *Scorer {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Scorer{
		profiles: profiles,
		sink:     sink,
		logger:   logger.Named("scorer"),
		models:   make(map[string]Model),
		events:   ringlog.New[domain.ThreatEvent](historyCap),
	}
}

// ScoreThreat выносит решение по текущему сэмплу агента.
// Каждый вызов фиксируется в ограниченном логе ThreatEvent.
func (s *Scorer) ScoreThreat(agentID string, m domain.BehaviorMetrics) domain.ThreatScore {
	var anomalies []domain.BehavioralAnomaly
	if profile, ok := s.profiles.GetProfile(agentID); ok {
		anomalies = profile.Anomalies
	}

	score := s.modelScore(agentID, m, anomalies)
	if score == nil {
		rs := ruleScore(m, anomalies)
		score = &rs
	}

	event := domain.ThreatEvent{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		AgentID:    agentID,
		Score:      score.Score,
		ThreatType: score.ThreatType,
		Action:     score.RecommendedAction,
	}
	s.events.Append(event)
	if s.sink != nil {
		s.sink.Publish(event)
	}

	return *score
}

// TrainModel обучает модель для конкретного агента. Сбой обучения не
// распространяется: модель не регистрируется, агент остается на правилах.
func (s *Scorer) TrainModel(agentID string, model Model, dataset []TrainingSample) {
	if err := model.Train(dataset); err != nil {
		s.logger.Warn("model training failed, falling back to rule-based scoring",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.models[agentID] = model
	s.mu.Unlock()

	s.logger.Info("model trained",
		zap.String("agent_id", agentID),
		zap.Float64("accuracy", model.Accuracy()),
		zap.Int("samples", len(dataset)),
	)
}

// History возвращает снапшот лога решений; при пустом agentID — весь лог
func (s *Scorer) History(agentID string) []domain.ThreatEvent {
	if agentID == "" {
		return s.events.Snapshot()
	}
	return s.events.Filter(func(e domain.ThreatEvent) bool { return e.AgentID == agentID })
}

// modelScore пробует обученную модель. Ошибка Score — односторонняя дверь:
// модель снимается с агента и дальше работают только правила.
func (s *Scorer) modelScore(agentID string, m domain.BehaviorMetrics, anomalies []domain.BehavioralAnomaly) *domain.ThreatScore {
	s.mu.RLock()
	model, ok := s.models[agentID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	score, err := model.Score(m, anomalies)
	if err != nil {
		s.logger.Error("model scoring failed, reverting agent to rule-based path",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		s.mu.Lock()
		delete(s.models, agentID)
		s.mu.Unlock()
		return nil
	}

	score.Score = clamp01(score.Score)
	score.Confidence = clamp01(model.Accuracy())
	return &score
}

// ruleScore — детерминированный fallback-скоринг.
// Аддитивные веса по серьезности аномалий плюс два доменных бонуса, клэмп в [0,1].
func ruleScore(m domain.BehaviorMetrics, anomalies []domain.BehavioralAnomaly) domain.ThreatScore {
	var total float64
	hasLatency := false

	for _, a := range anomalies {
		switch a.Severity {
		case domain.SeverityCritical:
			total += weightCritical
		case domain.SeverityHigh:
			total += weightHigh
		case domain.SeverityMedium:
			total += weightMedium
		case domain.SeverityLow:
			total += weightLow
		}
		if a.Type == domain.AnomalyLatencySpike {
			hasLatency = true
		}
	}

	if hasLatency {
		total += latencyBonus
	}
	if m.MessageFrequency > floodThreshold {
		total += floodBonus
	}

	total = clamp01(total)

	return domain.ThreatScore{
		Score:             total,
		Confidence:        ruleConfidence,
		ThreatType:        classify(m),
		RecommendedAction: actionFor(total),
		Indicators:        anomalies,
	}
}

// classify определяет тип угрозы по сырому сэмплу. Порядок проверок строгий:
// исчерпание ресурсов перекрывает DoS, DoS перекрывает эксфильтрацию.
func classify(m domain.BehaviorMetrics) domain.ThreatType {
	switch {
	case m.ResourceUsage > exhaustionResourceLevel:
		return domain.ThreatResourceExhaustion
	case m.ErrorRate > dosErrorRateLevel:
		return domain.ThreatDenialOfService
	case m.MessageFrequency > exfilFrequencyLevel:
		return domain.ThreatDataExfiltration
	default:
		return domain.ThreatUnknown
	}
}

func actionFor(score float64) domain.ResponseAction {
	switch {
	case score >= killLevel:
		return domain.ActionKill
	case score >= quarantineLevel:
		return domain.ActionQuarantine
	case score >= escalateLevel:
		return domain.ActionEscalate
	default:
		return domain.ActionMonitor
	}
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
