package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xela07ax/dmlguard/internal/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BlocklistManager — мгновенная блокировка субъекта на шлюзе (kill-switch).
// Состояние живёт в Redis Set, рантайм-проверка — только по локальной мапе.
type BlocklistManager struct {
	mu                sync.RWMutex
	blockedPrincipals map[string]struct{}
	rdb               *redis.Client
	logger            *zap.Logger
}

func NewBlocklistManager(rdb *redis.Client, logger *zap.Logger) *BlocklistManager {
	return &BlocklistManager{
		blockedPrincipals: make(map[string]struct{}),
		rdb:               rdb,
		logger:            logger.Named("blocklist"),
	}
}

// Init загружает текущее состояние блокировок при старте сервиса
func (m *BlocklistManager) Init(ctx context.Context) error {
	principals, err := m.rdb.SMembers(ctx, infra.RedisKeyBlockedPrincipals).Result()
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, id := range principals {
		m.blockedPrincipals[id] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

// StartListener подписывается на сигналы блокировки в реальном времени.
// Формат сообщения "principal_id:on" / "principal_id:off".
func (m *BlocklistManager) StartListener(ctx context.Context) {
	for {
		pubsub := m.rdb.Subscribe(ctx, infra.RedisChanBlockSignal)

		if _, err := pubsub.Receive(ctx); err != nil {
			m.logger.Error("failed to subscribe", zap.Error(err))
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Синхронизация при переподключении — сигналы могли быть пропущены
		if err := m.Init(ctx); err != nil {
			m.logger.Error("blocklist sync failed on reconnect", zap.Error(err))
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
				m.processSignal(msg.Payload)
			}
		}

		pubsub.Close()
		time.Sleep(1 * time.Second)
	}
}

func (m *BlocklistManager) processSignal(payload string) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		m.logger.Error("invalid block signal format", zap.String("payload", payload))
		return
	}

	id, state := parts[0], parts[1]
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == "on" || state == "true" {
		m.blockedPrincipals[id] = struct{}{}
		m.logger.Warn("principal blocked", zap.String("principal", id))
	} else {
		delete(m.blockedPrincipals, id)
		m.logger.Info("principal unblocked", zap.String("principal", id))
	}
}

// MarkAsBlocked — прямое обновление локальной мапы (для тестов и внутренних вызовов)
func (m *BlocklistManager) MarkAsBlocked(principalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockedPrincipals[principalID] = struct{}{}
}

func (m *BlocklistManager) IsBlocked(principalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, blocked := m.blockedPrincipals[principalID]
	return blocked
}
