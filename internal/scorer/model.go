package scorer

import "github.com/xela07ax/spaceai-sentinel/internal/domain"

// Model — точка расширения для подключаемых моделей скоринга.
// Контракт санитарный: любая ошибка Score/Train гасится на границе скорера,
// агент навсегда возвращается на rule-based путь. Конкретная ML-техника
// здесь сознательно не фиксируется.
type Model interface {
	// Score оценивает сэмпл с учетом найденных аномалий
	Score(m domain.BehaviorMetrics, anomalies []domain.BehavioralAnomaly) (domain.ThreatScore, error)

	// Train обучает модель на размеченной выборке
	Train(dataset []TrainingSample) error

	// Accuracy — самооценка модели, используется как confidence
	Accuracy() float64
}

// TrainingSample — одна размеченная точка обучающей выборки
type TrainingSample struct {
	Metrics domain.BehaviorMetrics `json:"metrics"`
	Label   float64                `json:"label"` // Ожидаемый скор [0,1]
}
