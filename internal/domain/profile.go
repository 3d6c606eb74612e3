package domain

import "time"

// MetricBaseline — среднее по каждому полю окна. Точка отсчета для ratio-проверок.
// Нулевое значение поля означает «истории нет» — проверка по этому полю пропускается.
type MetricBaseline struct {
	OperationCount   float64 `json:"operation_count"`
	AverageLatency   float64 `json:"average_latency"`
	ErrorRate        float64 `json:"error_rate"`
	ResourceUsage    float64 `json:"resource_usage"`
	MessageFrequency float64 `json:"message_frequency"`
}

// MetricStats — описательная статистика одного поля (среднее + стандартное отклонение).
// Используется только как отчетные метаданные, решения на ней не принимаются.
type MetricStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// BehavioralProfile — скользящее состояние одного агента.
// Владелец — анализатор: профиль заменяется целиком на каждом ingest,
// частичных мутаций извне нет.
type BehavioralProfile struct {
	AgentID     string                 `json:"agent_id"`
	Patterns    map[string]MetricStats `json:"patterns"` // Поле метрики -> статистика по окну
	Baseline    MetricBaseline         `json:"baseline"`
	Anomalies   []BehavioralAnomaly    `json:"anomalies"` // Аномалии текущего сэмпла
	SampleCount int                    `json:"sample_count"`
	LastUpdated time.Time              `json:"last_updated"`
}
