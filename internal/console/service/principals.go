package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/dmlguard/internal/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PrincipalService управляет kill-switch'ем субъектов:
// состояние в Redis Set + мгновенный сигнал шлюзам через Pub/Sub
type PrincipalService struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPrincipalService(rdb *redis.Client, logger *zap.Logger) *PrincipalService {
	return &PrincipalService{rdb: rdb, logger: logger.Named("principal-service")}
}

func (s *PrincipalService) Block(ctx context.Context, principalID string) error {
	if err := s.rdb.SAdd(ctx, infra.RedisKeyBlockedPrincipals, principalID).Err(); err != nil {
		return fmt.Errorf("failed to persist block state: %w", err)
	}
	if err := s.rdb.Publish(ctx, infra.RedisChanBlockSignal, principalID+":on").Err(); err != nil {
		// Состояние в Set уже есть — шлюзы подхватят его при переподключении
		s.logger.Error("failed to publish block signal", zap.String("principal", principalID), zap.Error(err))
	}
	s.logger.Warn("principal blocked", zap.String("principal", principalID))
	return nil
}

func (s *PrincipalService) Unblock(ctx context.Context, principalID string) error {
	if err := s.rdb.SRem(ctx, infra.RedisKeyBlockedPrincipals, principalID).Err(); err != nil {
		return fmt.Errorf("failed to remove block state: %w", err)
	}
	if err := s.rdb.Publish(ctx, infra.RedisChanBlockSignal, principalID+":off").Err(); err != nil {
		s.logger.Error("failed to publish unblock signal", zap.String("principal", principalID), zap.Error(err))
	}
	s.logger.Info("principal unblocked", zap.String("principal", principalID))
	return nil
}

// Blocked возвращает текущий список заблокированных субъектов
func (s *PrincipalService) Blocked(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, infra.RedisKeyBlockedPrincipals).Result()
}
