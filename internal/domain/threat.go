package domain

import "time"

// Severity — уровень серьезности обнаруженной аномалии
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ThreatType классифицирует природу угрозы.
// Порядок проверки в скорере строгий: ResourceExhaustion > DenialOfService > DataExfiltration.
type ThreatType string

const (
	ThreatResourceExhaustion ThreatType = "resource_exhaustion"
	ThreatDenialOfService    ThreatType = "denial_of_service"
	ThreatDataExfiltration   ThreatType = "data_exfiltration"
	ThreatUnknown            ThreatType = "unknown"
)

// ResponseAction — что делать с агентом по итогам скоринга
type ResponseAction string

const (
	ActionMonitor    ResponseAction = "monitor"    // Наблюдаем, ничего не трогаем
	ActionEscalate   ResponseAction = "escalate"   // Передаем человеку (HITL)
	ActionQuarantine ResponseAction = "quarantine" // Ограничиваем возможности агента
	ActionKill       ResponseAction = "kill"       // Немедленное завершение
)

// Типы аномалий, которые умеет находить анализатор
const (
	AnomalyLatencySpike  = "latency_spike"
	AnomalyHighErrorRate = "high_error_rate"
	AnomalyResourceSpike = "resource_spike"
	AnomalyMessageFlood  = "message_flood"
)

// BehavioralAnomaly — одно зафиксированное отклонение текущего сэмпла от baseline.
// Объект неизменяем: встраивается в профиль и в индикаторы скорера как есть.
type BehavioralAnomaly struct {
	Type        string          `json:"type"`
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	Metrics     BehaviorMetrics `json:"metrics"` // Снимок, на котором сработала проверка
}

// ThreatScore — одно решение скорера. Не персистится самим скорером.
type ThreatScore struct {
	Score             float64             `json:"score"`      // Всегда в [0,1]
	Confidence        float64             `json:"confidence"` // Всегда в [0,1]
	ThreatType        ThreatType          `json:"threat_type"`
	RecommendedAction ResponseAction      `json:"recommended_action"`
	Indicators        []BehavioralAnomaly `json:"indicators"`
}

// ThreatEvent — append-only запись аудита одного скоринга.
// Живет в двух ограниченных логах: глобальном (10k) и логе предиктора (100k).
type ThreatEvent struct {
	ID         string         `json:"id"` // UUID
	Timestamp  time.Time      `json:"timestamp"`
	AgentID    string         `json:"agent_id"`
	Score      float64        `json:"score"`
	ThreatType ThreatType     `json:"threat_type"`
	Action     ResponseAction `json:"action"`
}
