// Package notifier доставляет решения респондера внешним коллабораторам:
// эскалации — дежурному (pager/webhook), приказы на завершение — lifecycle-плоскости.
// Ядро реагирования остается fire-and-forget; ретраи, circuit breaker и
// rate limit исходящих вызовов живут здесь, на стороне вызывающего.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"github.com/xela07ax/spaceai-sentinel/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Pager struct {
	url     string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewPager(cfg infra.NotifierConfig, logger *zap.Logger) *Pager {
	// Настройка предохранителя: после серии отказов приемника перестаем
	// долбить его и копим инциденты в логе
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sentinel-pager",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Pager{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(rps), 5),
		logger:  logger.Named("pager"),
	}
}

// Escalate реализует response.Notifier
func (p *Pager) Escalate(ctx context.Context, incident domain.Incident) {
	payload := map[string]interface{}{
		"kind":        "escalation",
		"incident_id": incident.ID,
		"agent_id":    incident.AgentID,
		"score":       incident.Score,
		"threat_type": incident.Threat,
		"created_at":  incident.CreatedAt,
	}
	if err := p.deliver(ctx, payload); err != nil {
		p.logger.Error("escalation delivery failed",
			zap.String("incident_id", incident.ID), zap.Error(err))
	}
}

// Terminate реализует response.Executor. Приказ на завершение уходит
// lifecycle-коллаборатору; подтверждения эффекта ядро не ждет.
func (p *Pager) Terminate(ctx context.Context, agentID string) {
	payload := map[string]interface{}{
		"kind":     "terminate",
		"agent_id": agentID,
	}
	if err := p.deliver(ctx, payload); err != nil {
		p.logger.Error("termination order delivery failed",
			zap.String("agent_id", agentID), zap.Error(err))
	}
}

func (p *Pager) deliver(ctx context.Context, payload map[string]interface{}) error {
	if p.url == "" {
		// Приемник не сконфигурирован — решение уже зафиксировано в истории
		p.logger.Debug("webhook url is empty, notification skipped")
		return nil
	}

	// 1. Rate Limiter
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// 2. Circuit Breaker поверх ретраев
	_, err = p.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			// Умный расчет задержки: уважаем Retry-After приемника
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, r.Do(func() error {
			return p.post(ctx, body)
		})
	})

	return err
}

func (p *Pager) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      fmt.Errorf("notification receiver throttled"),
		}
	case resp.StatusCode >= 300:
		return fmt.Errorf("notification receiver returned status %d", resp.StatusCode)
	}

	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 2 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 2 * time.Second
}
