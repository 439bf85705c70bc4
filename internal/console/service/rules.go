package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/dmlguard/internal/domain"
	"github.com/xela07ax/dmlguard/internal/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RuleRepository описывает требования сервиса к хранилищу правил
type RuleRepository interface {
	GetAllRules(ctx context.Context) ([]domain.FieldRule, error)
	GetRuleByID(ctx context.Context, id string) (*domain.FieldRule, error)
	CreateRule(ctx context.Context, fr *domain.FieldRule) error
	UpdateRule(ctx context.Context, fr *domain.FieldRule) error
	DeleteRule(ctx context.Context, id string) error
}

// RuleService — бизнес-логика управления правилами доступа.
// Каждая мутация публикует сигнал в Redis: шлюзы перечитывают правила из БД.
type RuleService struct {
	repo   RuleRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRuleService(repo RuleRepository, rdb *redis.Client, logger *zap.Logger) *RuleService {
	return &RuleService{repo: repo, rdb: rdb, logger: logger.Named("rule-service")}
}

func (s *RuleService) GetAll(ctx context.Context) ([]domain.FieldRule, error) {
	return s.repo.GetAllRules(ctx)
}

func (s *RuleService) GetByID(ctx context.Context, id string) (*domain.FieldRule, error) {
	return s.repo.GetRuleByID(ctx, id)
}

func (s *RuleService) Create(ctx context.Context, fr *domain.FieldRule) error {
	if err := validateRule(fr); err != nil {
		return err
	}
	if err := s.repo.CreateRule(ctx, fr); err != nil {
		return err
	}
	s.notifyRuleUpdate(ctx, fr.ID)
	return nil
}

func (s *RuleService) Update(ctx context.Context, fr *domain.FieldRule) error {
	if err := s.repo.UpdateRule(ctx, fr); err != nil {
		return err
	}
	s.notifyRuleUpdate(ctx, fr.ID)
	return nil
}

func (s *RuleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.notifyRuleUpdate(ctx, id)
	return nil
}

// notifyRuleUpdate шлет сигнал об изменении. Сбой публикации не валит мутацию:
// шлюз догонит состояние при переподключении (Refresh на reconnect).
func (s *RuleService) notifyRuleUpdate(ctx context.Context, ruleID string) {
	if err := s.rdb.Publish(ctx, infra.RedisChanRuleUpdate, ruleID).Err(); err != nil {
		s.logger.Error("failed to publish rule update", zap.String("rule_id", ruleID), zap.Error(err))
	}
}

func validateRule(fr *domain.FieldRule) error {
	if strings.TrimSpace(fr.PrincipalID) == "" {
		return fmt.Errorf("principal_id is required (use '*' for a global rule)")
	}
	if strings.TrimSpace(fr.Object) == "" || strings.TrimSpace(fr.Field) == "" {
		return fmt.Errorf("object and field are required")
	}
	return nil
}
