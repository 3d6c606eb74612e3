package domain

import "time"

type AgentState string

const (
	StateNormal      AgentState = "normal"      // Полный доступ, инцидентов нет
	StateMonitored   AgentState = "monitored"   // Информационный флаг: агент под наблюдением
	StateQuarantined AgentState = "quarantined" // Действуют ограничения (см. QuarantineStatus)
	StateTerminated  AgentState = "terminated"  // Терминальное состояние: агент завершен
)

// Agent — сводка по агенту для операторского API.
// Сам sentinel агентов не создает: запись появляется с первым сэмплом метрик.
type Agent struct {
	ID           string     `json:"id"` // UUID агента, приходит от коллектора
	State        AgentState `json:"state"`
	LastActivity time.Time  `json:"last_activity"` // Последний принятый сэмпл
	FirstSeen    time.Time  `json:"first_seen"`
}
