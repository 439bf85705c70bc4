package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "dmlguard"
)

// Ключи для Sets (состояние)
const (
	RedisKeyBlockedPrincipals = RedisNamespace + ":principals:blocked_set"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRuleUpdate — консоль сигналит об изменении правил доступа,
	// шлюзы по сигналу перечитывают правила из БД
	RedisChanRuleUpdate = RedisNamespace + ":rules:update-signal"
	// RedisChanBlockSignal — мгновенная блокировка субъекта ("id:on"/"id:off")
	RedisChanBlockSignal = RedisNamespace + ":principals:block-signal"
)

// GetLockKey Генератор ключей для распределенных блокировок
func GetLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:%s", RedisNamespace, resource)
}
