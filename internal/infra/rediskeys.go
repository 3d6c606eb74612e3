package infra

const (
	// RedisNamespace — базовый префикс для изоляции данных sentinel в Redis
	RedisNamespace = "sentinel"
)

// Ключи для Sets (состояние, читается enforcement-плоскостью при старте)
const (
	RedisKeyQuarantinedAgents = RedisNamespace + ":agents:quarantined_set"
	RedisKeyTerminatedAgents  = RedisNamespace + ":agents:terminated_set"
	RedisKeyLockQuarantine    = RedisNamespace + ":lock:warmup:quarantined"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanQuarantine — трансляция решений о карантине ("agentID:on"/"agentID:off").
	// Capability-плоскость подписана и применяет/снимает ограничения в реальном времени.
	RedisChanQuarantine = RedisNamespace + ":agents:quarantine-signal"

	// RedisChanKillSwitch — немедленная блокировка завершенного агента
	RedisChanKillSwitch = RedisNamespace + ":agents:kill-switch-signal"

	// RedisChanRelease — команды оператора на снятие карантина (Console -> Sentinel)
	RedisChanRelease = RedisNamespace + ":agents:release-command"
)
