package policy

/*
Файл guard.go — ядро защитного слоя (Security Guard).

Guard — чистая функция принятия решения: получив записи, категорию операции и
активную политику, он решает одно из трёх:
  1. пропустить записи без изменений (Elevated trust или пустой вход);
  2. отдать записи с вырезанными недоступными полями (field stripping);
  3. упасть с PolicyViolationError, перечислив ВСЕ неправомерно удалённые поля.

Само определение "какие поля недоступны" — работа внешнего permission engine
(AccessEvaluator). Guard применяет к его вердикту настроенную политику.
*/

import (
	"context"
	"sort"

	"github.com/xela07ax/dmlguard/internal/domain"

	"go.uber.org/zap"
)

// AccessEvaluator — контракт внешнего permission engine.
// Возвращает отфильтрованные копии записей и мапу object -> удалённые поля.
type AccessEvaluator interface {
	EvaluateAccess(ctx context.Context, kind domain.AccessKind, records []domain.Record, strip bool) ([]domain.Record, map[string][]string, error)
}

// RemovedFieldPolicy — что делать с полями, которые permission engine вырезал.
// Инвариант: Enabled && len(RequiredFields)==0 — строгий режим, ЛЮБОЕ удаление
// для любого объекта есть нарушение. Enabled && RequiredFields непуст — нарушением
// считается только удаление перечисленного поля; остальные вырезаются молча.
// Enabled=false — удаления никогда не считаются нарушением.
type RemovedFieldPolicy struct {
	Enabled        bool
	RequiredFields map[string]map[string]struct{} // object -> set(field)
}

// Strict — включён ли режим "все поля критичны"
func (p RemovedFieldPolicy) Strict() bool {
	return p.Enabled && len(p.RequiredFields) == 0
}

// Required сообщает, объявлено ли поле критичным для объекта
func (p RemovedFieldPolicy) Required(object, field string) bool {
	if !p.Enabled {
		return false
	}
	if p.Strict() {
		return true
	}
	fields, ok := p.RequiredFields[object]
	if !ok {
		return false
	}
	_, ok = fields[field]
	return ok
}

// Guard применяет RemovedFieldPolicy к вердикту permission engine
type Guard struct {
	eval   AccessEvaluator
	logger *zap.Logger
}

func NewGuard(eval AccessEvaluator, logger *zap.Logger) *Guard {
	return &Guard{eval: eval, logger: logger.Named("guard")}
}

// Apply — публичный контракт Guard'а.
//
// Алгоритм:
//  1. Elevated trust или пустой вход — вернуть вход как есть, permission engine
//     не вызывается вовсе (явный байпас для доверенных внутренних путей).
//  2. Иначе — вызвать evaluator со strip=true.
//  3. Посчитать критичное множество удалённых полей по политике.
//  4. Непустое множество — PolicyViolationError со всеми парами "Object.Field".
//  5. Иначе — вернуть отфильтрованные записи.
func (g *Guard) Apply(ctx context.Context, kind domain.AccessKind, trust domain.TrustLevel, pol RemovedFieldPolicy, records []domain.Record) ([]domain.Record, error) {
	if trust == domain.TrustElevated || len(records) == 0 {
		return records, nil
	}

	filtered, removed, err := g.eval.EvaluateAccess(ctx, kind, records, true)
	if err != nil {
		// Ошибки permission engine (включая AccessDenied) уходят наверх нетронутыми
		return nil, err
	}

	critical := criticalRemovals(pol, removed)
	if len(critical) > 0 {
		g.logger.Warn("policy violation",
			zap.String("access_kind", string(kind)),
			zap.Strings("fields", critical),
		)
		return nil, &domain.PolicyViolationError{Fields: critical}
	}

	return filtered, nil
}

// criticalRemovals собирает нарушения в один отсортированный список.
// Нарушения не прерывают обход: вызывающий должен увидеть полную картину сразу.
func criticalRemovals(pol RemovedFieldPolicy, removed map[string][]string) []string {
	var critical []string
	for object, fields := range removed {
		for _, field := range fields {
			if pol.Required(object, field) {
				critical = append(critical, object+"."+field)
			}
		}
	}
	sort.Strings(critical)
	return critical
}
