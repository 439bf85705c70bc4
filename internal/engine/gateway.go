package engine

import (
	"context"
	"sort"
	"time"

	"github.com/xela07ax/dmlguard/internal/audit"
	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/google/uuid"
)

/*
Файл gateway.go — Operation Facade: по одному методу на форму операции.
Каждый метод прогоняет записи через Security Guard (там, где операция вообще
может терять поля) и делегирует I/O внешнему движку с настроенным trust level
и bulk-опциями. Результаты движка возвращаются вызывающему дословно.
*/

// Query выполняет запрос и охраняет его результат.
// Сам запрос ВСЕГДА уходит в движок под Elevated — предикаты и джойны не должны
// молча ломаться об object-level ограничения посреди исполнения. Настроенный
// trust применяется уже к результату: stripping или violation по политике.
func (s *Session) Query(ctx context.Context, text string) ([]domain.Record, error) {
	return s.guardedQuery(ctx, func() ([]domain.Record, error) {
		return s.engine.Query(ctx, text, domain.TrustElevated)
	})
}

// QueryWithBindings — то же самое с параметрами запроса
func (s *Session) QueryWithBindings(ctx context.Context, text string, bindings map[string]any) ([]domain.Record, error) {
	return s.guardedQuery(ctx, func() ([]domain.Record, error) {
		return s.engine.QueryWithBindings(ctx, text, bindings, domain.TrustElevated)
	})
}

func (s *Session) guardedQuery(ctx context.Context, run func() ([]domain.Record, error)) ([]domain.Record, error) {
	start := time.Now()

	results, err := run()
	if err != nil {
		s.finish(ctx, "query", nil, nil, start, err)
		return nil, err
	}

	guarded, err := s.guard.Apply(ctx, domain.AccessReadable, s.trust, s.policy, results)
	if err != nil {
		s.finish(ctx, "query", objectsOf(results), nil, start, err)
		return nil, err
	}

	s.finish(ctx, "query", objectsOf(results), strippedDiff(results, guarded), start, nil)
	return guarded, nil
}

// Insert прогоняет записи через guard (Creatable) и вставляет их движком
func (s *Session) Insert(ctx context.Context, records []domain.Record) ([]domain.SaveOutcome, error) {
	start := time.Now()

	guarded, err := s.guard.Apply(ctx, domain.AccessCreatable, s.trust, s.policy, records)
	if err != nil {
		s.finish(ctx, "insert", objectsOf(records), nil, start, err)
		return nil, err
	}

	outcomes, err := s.engine.Insert(ctx, guarded, s.bulk, s.trust)
	s.finish(ctx, "insert", objectsOf(records), strippedDiff(records, guarded), start, err)
	return outcomes, err
}

// InsertOne — вставка одной записи: батч из одного элемента, результат развёрнут
func (s *Session) InsertOne(ctx context.Context, record domain.Record) (domain.SaveOutcome, error) {
	outcomes, err := s.Insert(ctx, []domain.Record{record})
	return firstOutcome(outcomes), err
}

// Update — та же форма с Updatable
func (s *Session) Update(ctx context.Context, records []domain.Record) ([]domain.SaveOutcome, error) {
	start := time.Now()

	guarded, err := s.guard.Apply(ctx, domain.AccessUpdatable, s.trust, s.policy, records)
	if err != nil {
		s.finish(ctx, "update", objectsOf(records), nil, start, err)
		return nil, err
	}

	outcomes, err := s.engine.Update(ctx, guarded, s.bulk, s.trust)
	s.finish(ctx, "update", objectsOf(records), strippedDiff(records, guarded), start, err)
	return outcomes, err
}

func (s *Session) UpdateOne(ctx context.Context, record domain.Record) (domain.SaveOutcome, error) {
	outcomes, err := s.Update(ctx, []domain.Record{record})
	return firstOutcome(outcomes), err
}

// Upsert работает по первичному идентификатору записи
func (s *Session) Upsert(ctx context.Context, records []domain.Record) ([]domain.UpsertOutcome, error) {
	return s.UpsertBy(ctx, "", records)
}

// UpsertBy позволяет задать внешнее идентифицирующее поле вместо первичного ID
func (s *Session) UpsertBy(ctx context.Context, keyField string, records []domain.Record) ([]domain.UpsertOutcome, error) {
	start := time.Now()

	guarded, err := s.guard.Apply(ctx, domain.AccessUpsertable, s.trust, s.policy, records)
	if err != nil {
		s.finish(ctx, "upsert", objectsOf(records), nil, start, err)
		return nil, err
	}

	outcomes, err := s.engine.Upsert(ctx, guarded, keyField, s.bulk.AllOrNone, s.trust)
	s.finish(ctx, "upsert", objectsOf(records), strippedDiff(records, guarded), start, err)
	return outcomes, err
}

func (s *Session) UpsertOne(ctx context.Context, record domain.Record) (domain.UpsertOutcome, error) {
	outcomes, err := s.Upsert(ctx, []domain.Record{record})
	return firstUpsertOutcome(outcomes), err
}

func (s *Session) UpsertOneBy(ctx context.Context, keyField string, record domain.Record) (domain.UpsertOutcome, error) {
	outcomes, err := s.UpsertBy(ctx, keyField, []domain.Record{record})
	return firstUpsertOutcome(outcomes), err
}

// Delete идёт в движок напрямую: у удаления нет проекции полей,
// field-level guard к нему неприменим и permission engine не вызывается
func (s *Session) Delete(ctx context.Context, records []domain.Record) ([]domain.DeleteOutcome, error) {
	start := time.Now()

	outcomes, err := s.engine.Delete(ctx, records, s.bulk.AllOrNone, s.trust)
	s.finish(ctx, "delete", objectsOf(records), nil, start, err)
	return outcomes, err
}

func (s *Session) DeleteOne(ctx context.Context, record domain.Record) (domain.DeleteOutcome, error) {
	outcomes, err := s.Delete(ctx, []domain.Record{record})
	if len(outcomes) == 0 {
		return domain.DeleteOutcome{}, err
	}
	return outcomes[0], err
}

// finish закрывает операцию: метрики + событие в decision trail
func (s *Session) finish(ctx context.Context, op string, objects, stripped []string, start time.Time, err error) {
	status := audit.StatusPassed
	switch {
	case domain.IsPolicyViolation(err):
		status = audit.StatusViolation
	case err != nil:
		status = audit.StatusFailed
	case len(stripped) > 0:
		status = audit.StatusStripped
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.OperationDuration.WithLabelValues(op, status).Observe(duration.Seconds())
		s.metrics.TotalOperations.WithLabelValues(op).Inc()
		if status == audit.StatusViolation {
			s.metrics.PolicyViolations.WithLabelValues(op).Inc()
		}
		if len(stripped) > 0 {
			s.metrics.StrippedFields.Add(float64(len(stripped)))
		}
	}

	if s.trail == nil {
		return
	}
	event := audit.GuardEvent{
		ID:             uuid.New().String(),
		TraceID:        TraceIDFromContext(ctx),
		Principal:      domain.PrincipalFromContext(ctx),
		Operation:      op,
		Objects:        objects,
		StrippedFields: stripped,
		TrustLevel:     string(s.trust),
		Status:         status,
		Timestamp:      start,
		DurationMs:     duration.Milliseconds(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.trail.Log(event)
}

// objectsOf — уникальные типы объектов в батче (для аудита)
func objectsOf(records []domain.Record) []string {
	seen := make(map[string]struct{}, len(records))
	var objects []string
	for _, r := range records {
		if _, ok := seen[r.Object]; ok {
			continue
		}
		seen[r.Object] = struct{}{}
		objects = append(objects, r.Object)
	}
	sort.Strings(objects)
	return objects
}

// strippedDiff сравнивает батч до и после guard'а и возвращает вырезанные
// пары "Object.Field" (для аудита и метрик, не для принятия решений)
func strippedDiff(before, after []domain.Record) []string {
	if len(before) != len(after) {
		return nil
	}
	set := make(map[string]struct{})
	for i := range before {
		for field := range before[i].Fields {
			if _, ok := after[i].Fields[field]; !ok {
				set[before[i].Object+"."+field] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	stripped := make([]string, 0, len(set))
	for k := range set {
		stripped = append(stripped, k)
	}
	sort.Strings(stripped)
	return stripped
}

func firstOutcome(outcomes []domain.SaveOutcome) domain.SaveOutcome {
	if len(outcomes) == 0 {
		return domain.SaveOutcome{}
	}
	return outcomes[0]
}

func firstUpsertOutcome(outcomes []domain.UpsertOutcome) domain.UpsertOutcome {
	if len(outcomes) == 0 {
		return domain.UpsertOutcome{}
	}
	return outcomes[0]
}
