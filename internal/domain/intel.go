package domain

import "time"

// TrendDirection — направление системного тренда по типу угрозы
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// ThreatPattern — выученный временной профиль одного агента.
// Пересчитывается по запросу из истории ThreatEvent, отдельно не персистится.
type ThreatPattern struct {
	AgentID         string  `json:"agent_id"`
	HourlyPattern   [24]int `json:"hourly_pattern"` // Гистограмма событий по часам суток
	DailyPattern    [7]int  `json:"daily_pattern"`  // Гистограмма по дням недели (0 = Sunday)
	ThreatFrequency float64 `json:"threat_frequency"` // Событий в час за наблюдаемый период
	EscalationRate  float64 `json:"escalation_rate"`  // Разница средних скоров (вторая половина − первая); >0 = хуже
	EventCount      int     `json:"event_count"`
}

// PredictedThreat — прогноз следующего инцидента для агента. Создается на запрос.
type PredictedThreat struct {
	AgentID       string     `json:"agent_id"`
	ThreatType    ThreatType `json:"threat_type"`
	Probability   float64    `json:"probability"` // [0,1]
	PredictedTime time.Time  `json:"predicted_time"`
	Confidence    float64    `json:"confidence"` // [0.3,1], растет с количеством наблюдений
	Indicators    []string   `json:"indicators"` // Человекочитаемые пояснения для оператора
}

// ThreatTrend — системный тренд по одному типу угрозы
type ThreatTrend struct {
	ThreatType ThreatType     `json:"threat_type"`
	Trend      TrendDirection `json:"trend"`
	Rate       float64        `json:"rate"`       // Дельта интенсивности, событий/час
	Prediction float64        `json:"prediction"` // Ожидаемый скор: среднее последних 20 событий типа
}
