package response

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/spaceai-sentinel/internal/infra"
	"go.uber.org/zap"
)

// RedisSignals публикует решения респондера в enforcement-плоскость:
// Sets хранят состояние для холодного старта подписчиков, Pub/Sub доставляет
// смену режима в реальном времени (формат "agentID:on"/"agentID:off").
// Плоскость capability читает эти ключи и физически применяет ограничения.
type RedisSignals struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisSignals(rdb *redis.Client, logger *zap.Logger) *RedisSignals {
	return &RedisSignals{rdb: rdb, logger: logger.With(zap.String("mod", "signals"))}
}

func (s *RedisSignals) QuarantineOn(ctx context.Context, agentID string) {
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, infra.RedisKeyQuarantinedAgents, agentID)
	pipe.Publish(ctx, infra.RedisChanQuarantine, agentID+":on")
	if _, err := pipe.Exec(ctx); err != nil {
		// Локальная запись — источник истины; сигнал доедет при warmup подписчика
		s.logger.Error("failed to publish quarantine signal",
			zap.String("agent_id", agentID), zap.Error(err))
	}
}

func (s *RedisSignals) QuarantineOff(ctx context.Context, agentID string) {
	pipe := s.rdb.Pipeline()
	pipe.SRem(ctx, infra.RedisKeyQuarantinedAgents, agentID)
	pipe.Publish(ctx, infra.RedisChanQuarantine, agentID+":off")
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to publish release signal",
			zap.String("agent_id", agentID), zap.Error(err))
	}
}

func (s *RedisSignals) Kill(ctx context.Context, agentID string) {
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, infra.RedisKeyTerminatedAgents, agentID)
	pipe.Publish(ctx, infra.RedisChanKillSwitch, agentID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to publish kill-switch signal",
			zap.String("agent_id", agentID), zap.Error(err))
	}
}

// Warmup выливает текущее множество карантинов в Redis после рестарта,
// если там пусто. Распределенная блокировка (SetNX) гарантирует, что кэш
// греет только один инстанс.
func (s *RedisSignals) Warmup(ctx context.Context, quarantined []string) error {
	ok, err := s.rdb.SetNX(ctx, infra.RedisKeyLockQuarantine, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой инстанс уже греет
	}

	count, err := s.rdb.SCard(ctx, infra.RedisKeyQuarantinedAgents).Result()
	if err != nil {
		count = 0
		s.logger.Warn("could not check Redis set size, proceeding with warm-up", zap.Error(err))
	}

	if count == 0 && len(quarantined) > 0 {
		s.logger.Info("Redis quarantine set is empty, performing warm-up",
			zap.Int("count", len(quarantined)))

		pipe := s.rdb.Pipeline()
		for _, id := range quarantined {
			pipe.SAdd(ctx, infra.RedisKeyQuarantinedAgents, id)
		}
		_, err = pipe.Exec(ctx)
		return err
	}

	return nil
}
