package policy

import (
	"context"
	"sort"
	"sync"

	"github.com/xela07ax/dmlguard/internal/domain"

	"go.uber.org/zap"
)

// RuleRepository описывает требования evaluator'а к хранилищу правил
type RuleRepository interface {
	GetAllRules(ctx context.Context) ([]domain.FieldRule, error)
}

// MemoEvaluator — референсная реализация AccessEvaluator на потокобезопасной мапе.
// Держит в RAM правила доступа к полям (не решения!), синхронизируется с БД
// через Refresh(), но в рантайме hot path работает только с памятью.
// Поле без правила недоступно — Default Deny (Zero Trust).
type MemoEvaluator struct {
	mu sync.RWMutex
	// Кэш правил: "principal_id:object" -> field -> rule
	rules map[string]map[string]domain.FieldRule

	repo   RuleRepository // Используется только для Refresh()
	logger *zap.Logger
}

func NewMemoEvaluator(repo RuleRepository, logger *zap.Logger) *MemoEvaluator {
	return &MemoEvaluator{
		rules:  make(map[string]map[string]domain.FieldRule),
		repo:   repo,
		logger: logger.Named("evaluator"),
	}
}

// EvaluateAccess реализует контракт permission engine.
// Возвращает копии записей без недоступных полей и мапу object -> удалённые поля.
// При strip=false записи не режутся (check-only), но мапа удалений считается так же.
func (e *MemoEvaluator) EvaluateAccess(ctx context.Context, kind domain.AccessKind, records []domain.Record, strip bool) ([]domain.Record, map[string][]string, error) {
	principal := domain.PrincipalFromContext(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()

	filtered := make([]domain.Record, 0, len(records))
	removedSet := make(map[string]map[string]struct{})

	for _, rec := range records {
		out := rec.Clone()
		for field := range rec.Fields {
			rule := e.lookup(principal, rec.Object, field)
			if rule.Allows(kind) {
				continue
			}
			if strip {
				delete(out.Fields, field)
			}
			if removedSet[rec.Object] == nil {
				removedSet[rec.Object] = make(map[string]struct{})
			}
			removedSet[rec.Object][field] = struct{}{}
		}
		filtered = append(filtered, out)
	}

	// Схлопываем set в отсортированные списки — стабильный порядок для вызывающих
	removed := make(map[string][]string, len(removedSet))
	for object, fields := range removedSet {
		list := make([]string, 0, len(fields))
		for f := range fields {
			list = append(list, f)
		}
		sort.Strings(list)
		removed[object] = list
	}

	if !strip {
		return records, removed, nil
	}
	return filtered, removed, nil
}

// lookup: сначала персональное правило субъекта, затем глобальное ("*").
// Вызывается только под RLock.
func (e *MemoEvaluator) lookup(principal, object, field string) *domain.FieldRule {
	if fields, ok := e.rules[principal+":"+object]; ok {
		if r, ok := fields[field]; ok {
			return &r
		}
	}
	if fields, ok := e.rules["*:"+object]; ok {
		if r, ok := fields[field]; ok {
			return &r
		}
	}
	return nil
}

// Refresh выполняет «холодную загрузку» всех правил из хранилища в память
// (при старте и по сигналу rule-update из Redis).
func (e *MemoEvaluator) Refresh(ctx context.Context) error {
	rulesDb, err := e.repo.GetAllRules(ctx)
	if err != nil {
		return err
	}

	newRules := make(map[string]map[string]domain.FieldRule)
	for _, r := range rulesDb {
		key := r.PrincipalID + ":" + r.Object
		if newRules[key] == nil {
			newRules[key] = make(map[string]domain.FieldRule)
		}
		newRules[key][r.Field] = r
	}

	e.mu.Lock()
	e.rules = newRules
	e.mu.Unlock()

	e.logger.Info("rule cache refreshed", zap.Int("count", len(rulesDb)))
	return nil
}

// SetRules напрямую задаёт правила (для тестов и embedded-сценариев без БД)
func (e *MemoEvaluator) SetRules(rules []domain.FieldRule) {
	newRules := make(map[string]map[string]domain.FieldRule)
	for _, r := range rules {
		key := r.PrincipalID + ":" + r.Object
		if newRules[key] == nil {
			newRules[key] = make(map[string]domain.FieldRule)
		}
		newRules[key][r.Field] = r
	}

	e.mu.Lock()
	e.rules = newRules
	e.mu.Unlock()
}
