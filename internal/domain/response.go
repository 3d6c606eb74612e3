package domain

import "time"

// Фиксированный набор ограничений карантина.
// Фактическое применение — зона ответственности capability-плоскости,
// которая читает QuarantineStatus (см. rediskeys в infra).
var QuarantineRestrictions = []string{
	"network_limited",
	"filesystem_restricted",
	"resource_quota_reduced",
	"ipc_monitored",
}

// QuarantineStatus — активная запись об ограничении агента.
// Инвариант: не более одной живой записи на agent_id; снимается только явным Release.
type QuarantineStatus struct {
	AgentID       string    `json:"agent_id"`
	QuarantinedAt time.Time `json:"quarantined_at"`
	Reason        string    `json:"reason"`
	Restrictions  []string  `json:"restrictions"`
}

// ResponseActionResult — исход одного решения респондера.
// Попадает в ограниченную историю (10k) независимо от успеха.
type ResponseActionResult struct {
	Success   bool           `json:"success"`
	Action    ResponseAction `json:"action"`
	AgentID   string         `json:"agent_id"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

// Incident — запись о реальной эскалации (score прошел порог).
// Аналог заявки в очереди HITL: оператор разбирает их через Console API.
type Incident struct {
	ID        string     `json:"id"` // UUID
	AgentID   string     `json:"agent_id"`
	Score     float64    `json:"score"`
	Threat    ThreatType `json:"threat_type"`
	CreatedAt time.Time  `json:"created_at"`
}
