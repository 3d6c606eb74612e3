package domain

import (
	"fmt"
	"math"
	"time"
)

// BehaviorMetrics — снимок поведения агента за один интервал сбора.
// Создается внешним коллектором, неизменяем, потребляется ровно один раз.
type BehaviorMetrics struct {
	OperationCount   float64 `json:"operation_count"`   // Кол-во операций за интервал
	AverageLatency   float64 `json:"average_latency"`   // Средняя задержка, мс
	ErrorRate        float64 `json:"error_rate"`        // Доля ошибок [0..1]
	ResourceUsage    float64 `json:"resource_usage"`    // Нормированное потребление ресурсов
	MessageFrequency float64 `json:"message_frequency"` // Сообщений в интервал (IPC/сеть)

	Timestamp time.Time `json:"timestamp"` // Момент снятия снимка (проставляет ingest)
}

// Validate — входной контроль ingest-границы (Fail Fast).
// Битые сэмплы не должны попасть в baseline: NaN/Inf/отрицательные значения
// отбрасываются здесь, до анализатора.
func (m BehaviorMetrics) Validate() error {
	fields := map[string]float64{
		"operation_count":   m.OperationCount,
		"average_latency":   m.AverageLatency,
		"error_rate":        m.ErrorRate,
		"resource_usage":    m.ResourceUsage,
		"message_frequency": m.MessageFrequency,
	}

	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("metrics validation: field %s is not a finite number", name)
		}
		if v < 0 {
			return fmt.Errorf("metrics validation: field %s is negative (%v)", name, v)
		}
	}

	if m.ErrorRate > 1.0 {
		return fmt.Errorf("metrics validation: error_rate %v is out of range [0,1]", m.ErrorRate)
	}

	return nil
}
