package engine

import (
	"strings"

	"github.com/xela07ax/dmlguard/internal/audit"
	"github.com/xela07ax/dmlguard/internal/domain"
	"github.com/xela07ax/dmlguard/internal/policy"

	"go.uber.org/zap"
)

// Session — конфигурируемая ручка шлюза: состояние конфигурации + фасад операций.
// Создаётся с дефолтами (Restricted, all-or-nothing, политика выключена) и
// мутируется только через fluent API ниже. Рассчитана на линейное использование
// одним владельцем; при шаринге между горутинами порядок мутаций — забота
// вызывающего, локов здесь нет сознательно.
type Session struct {
	engine  Engine
	guard   *policy.Guard
	trail   audit.Auditor // nil допустим: аудит опционален
	metrics *Metrics
	logger  *zap.Logger

	trust  domain.TrustLevel
	bulk   domain.BulkOptions
	policy policy.RemovedFieldPolicy
}

// NewSession собирает ручку с дефолтной конфигурацией.
// trail и metrics могут быть nil (embedded-сценарии и тесты).
func NewSession(eng Engine, eval policy.AccessEvaluator, trail audit.Auditor, metrics *Metrics, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		engine:  eng,
		guard:   policy.NewGuard(eval, logger),
		trail:   trail,
		metrics: metrics,
		logger:  logger.Named("session"),

		trust: domain.TrustRestricted,
		bulk:  domain.DefaultBulkOptions(),
		policy: policy.RemovedFieldPolicy{
			Enabled:        false,
			RequiredFields: map[string]map[string]struct{}{},
		},
	}
}

// --- Fluent Configuration API ---
// Каждый сеттер возвращает ту же ручку для чейнинга:
//
//	s.SetTrustLevel(domain.TrustElevated).AllOrNothing()

// SetTrustLevel задаёт trust level для всех последующих операций на ручке
func (s *Session) SetTrustLevel(trust domain.TrustLevel) *Session {
	s.trust = trust
	return s
}

// SetAllOrNone управляет семантикой батча: целиком или per-record
func (s *Session) SetAllOrNone(v bool) *Session {
	s.bulk.AllOrNone = v
	return s
}

// AllOrNothing — алиас обратной совместимости для SetAllOrNone(true)
func (s *Session) AllOrNothing() *Session {
	return s.SetAllOrNone(true)
}

// ReplaceBulkOptions целиком заменяет опции пакетной записи
func (s *Session) ReplaceBulkOptions(opts domain.BulkOptions) *Session {
	s.bulk = opts
	return s
}

// RequireFields включает политику и добавляет поля объекта в критичный список.
// Пустой objectName или пустой список полей — ConfigurationError: иначе вызов
// случайно превратился бы в строгий режим "require everything".
func (s *Session) RequireFields(objectName string, fields ...string) error {
	if strings.TrimSpace(objectName) == "" {
		return &domain.ConfigurationError{Op: "RequireFields", Reason: "object name is blank"}
	}
	if len(fields) == 0 {
		return &domain.ConfigurationError{Op: "RequireFields", Reason: "field list is empty"}
	}
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return &domain.ConfigurationError{Op: "RequireFields", Reason: "field name is blank"}
		}
	}

	s.policy.Enabled = true
	if s.policy.RequiredFields == nil {
		s.policy.RequiredFields = map[string]map[string]struct{}{}
	}
	set := s.policy.RequiredFields[objectName]
	if set == nil {
		set = map[string]struct{}{}
		s.policy.RequiredFields[objectName] = set
	}
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return nil
}

// SetRequireAllFields переключает строгий режим политики (все поля критичны)
// без перечисления конкретных полей
func (s *Session) SetRequireAllFields(v bool) *Session {
	s.policy.Enabled = v
	return s
}

// RequireAllFields — алиас для SetRequireAllFields(true)
func (s *Session) RequireAllFields() *Session {
	return s.SetRequireAllFields(true)
}

// --- Чтение состояния (для хендлеров и тестов) ---

func (s *Session) TrustLevel() domain.TrustLevel { return s.trust }

func (s *Session) BulkOptions() domain.BulkOptions { return s.bulk }

func (s *Session) Policy() policy.RemovedFieldPolicy { return s.policy }
