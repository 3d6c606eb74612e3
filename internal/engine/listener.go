package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/spaceai-sentinel/internal/infra"
	"github.com/xela07ax/spaceai-sentinel/internal/response"
	"go.uber.org/zap"
)

// ListenResilient — универсальный цикл «живучей» подписки на сигналы Redis.
// Обрабатывает переподключения, логирование и доставку сообщений.
func ListenResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onReconnect func() error, // Callback для синхронизации при переподключении
	onMessage func(payload string), // Callback для обработки сообщения
) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			pubsub.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}

		// Синхронизация состояния при каждом успешном коннекте
		if err := onReconnect(); err != nil {
			logger.Error("sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				onMessage(msg.Payload)
			}
		}

		// Старую подписку закрываем и берем паузу, иначе при лежащем Redis
		// цикл уходит в плотный спин переподключений
		pubsub.Close()
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// StartReleaseListener слушает команды оператора на снятие карантина
// (Console публикует agentID в release-канал). Решение оператора перекрывает
// автоматику немедленно, без рестарта sentinel.
func StartReleaseListener(ctx context.Context, rdb *redis.Client, responder *response.Responder, logger *zap.Logger) {
	log := logger.Named("release-listener")

	ListenResilient(ctx, rdb, log, infra.RedisChanRelease,
		func() error { return nil },
		func(agentID string) {
			if responder.ReleaseQuarantine(ctx, agentID) {
				log.Info("quarantine released by operator command", zap.String("agent_id", agentID))
			} else {
				log.Warn("release command for agent without quarantine record", zap.String("agent_id", agentID))
			}
		},
	)
}
