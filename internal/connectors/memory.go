package connectors

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/google/uuid"
)

// MemoryEngine — референсный persistence engine в памяти процесса.
// Используется в тестах и embedded-сценариях, где Postgres избыточен.
// Понимает запросы вида "FROM <Object>" (SELECT-список игнорируется:
// разбор языка запросов — не наша зона ответственности).
type MemoryEngine struct {
	mu sync.RWMutex
	// object -> упорядоченный список записей (стабильный порядок выдачи)
	store map[string][]domain.Record
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{store: make(map[string][]domain.Record)}
}

// Seed кладет записи напрямую, минуя outcome-машинерию (подготовка тестов)
func (e *MemoryEngine) Seed(records ...domain.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		e.store[r.Object] = append(e.store[r.Object], r.Clone())
	}
}

func (e *MemoryEngine) Query(ctx context.Context, text string, trust domain.TrustLevel) ([]domain.Record, error) {
	return e.QueryWithBindings(ctx, text, nil, trust)
}

// QueryWithBindings трактует bindings как equality-фильтры по полям
func (e *MemoryEngine) QueryWithBindings(_ context.Context, text string, bindings map[string]any, _ domain.TrustLevel) ([]domain.Record, error) {
	object, err := objectFromQuery(text)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var results []domain.Record
	for _, rec := range e.store[object] {
		if !matches(rec, bindings) {
			continue
		}
		results = append(results, rec.Clone())
	}
	return results, nil
}

func (e *MemoryEngine) Insert(_ context.Context, records []domain.Record, opts domain.BulkOptions, _ domain.TrustLevel) ([]domain.SaveOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opts.AllOrNone {
		// Батч целиком: сначала валидация всех записей, store не трогаем,
		// пока возможен сбой. Агрегатный сбой — ответственность движка, не шлюза
		for i, rec := range records {
			if rec.Object == "" {
				return nil, fmt.Errorf("memory: record %d has no object type, batch aborted", i)
			}
		}
	}

	outcomes := make([]domain.SaveOutcome, len(records))
	for i, rec := range records {
		if rec.Object == "" {
			outcomes[i] = failedSave("MISSING_OBJECT", "record has no object type")
			continue
		}

		rec = rec.Clone()
		rec.ID = uuid.New().String()
		e.store[rec.Object] = append(e.store[rec.Object], rec)
		outcomes[i] = domain.SaveOutcome{Success: true, ID: rec.ID}
	}
	return outcomes, nil
}

func (e *MemoryEngine) Update(_ context.Context, records []domain.Record, opts domain.BulkOptions, _ domain.TrustLevel) ([]domain.SaveOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opts.AllOrNone {
		for _, rec := range records {
			if e.indexByID(rec.Object, rec.ID) < 0 {
				return nil, fmt.Errorf("memory: record %s not found, batch aborted", rec.ID)
			}
		}
	}

	outcomes := make([]domain.SaveOutcome, len(records))
	for i, rec := range records {
		idx := e.indexByID(rec.Object, rec.ID)
		if idx < 0 {
			outcomes[i] = failedSave("NOT_FOUND", "record not found")
			continue
		}

		stored := e.store[rec.Object][idx]
		for k, v := range rec.Fields {
			stored.Fields[k] = v
		}
		e.store[rec.Object][idx] = stored
		outcomes[i] = domain.SaveOutcome{Success: true, ID: rec.ID}
	}
	return outcomes, nil
}

func (e *MemoryEngine) Upsert(_ context.Context, records []domain.Record, keyField string, allOrNone bool, _ domain.TrustLevel) ([]domain.UpsertOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if allOrNone {
		for i, rec := range records {
			if rec.Object == "" {
				return nil, fmt.Errorf("memory: record %d has no object type, batch aborted", i)
			}
		}
	}

	outcomes := make([]domain.UpsertOutcome, len(records))
	for i, rec := range records {
		if rec.Object == "" {
			outcomes[i] = domain.UpsertOutcome{Errors: []domain.EngineError{{Code: "MISSING_OBJECT", Message: "record has no object type"}}}
			continue
		}

		idx := -1
		if keyField == "" {
			idx = e.indexByID(rec.Object, rec.ID)
		} else {
			idx = e.indexByField(rec.Object, keyField, rec.Fields[keyField])
		}

		if idx < 0 {
			created := rec.Clone()
			if created.ID == "" {
				created.ID = uuid.New().String()
			}
			e.store[rec.Object] = append(e.store[rec.Object], created)
			outcomes[i] = domain.UpsertOutcome{Success: true, ID: created.ID, Created: true}
			continue
		}

		stored := e.store[rec.Object][idx]
		for k, v := range rec.Fields {
			stored.Fields[k] = v
		}
		e.store[rec.Object][idx] = stored
		outcomes[i] = domain.UpsertOutcome{Success: true, ID: stored.ID, Created: false}
	}
	return outcomes, nil
}

func (e *MemoryEngine) Delete(_ context.Context, records []domain.Record, allOrNone bool, _ domain.TrustLevel) ([]domain.DeleteOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if allOrNone {
		// Дубликат ID в батче упадет на повторном удалении — тоже abort до записи
		seen := make(map[string]struct{}, len(records))
		for _, rec := range records {
			key := rec.Object + ":" + rec.ID
			if _, dup := seen[key]; dup || e.indexByID(rec.Object, rec.ID) < 0 {
				return nil, fmt.Errorf("memory: record %s not found, batch aborted", rec.ID)
			}
			seen[key] = struct{}{}
		}
	}

	outcomes := make([]domain.DeleteOutcome, len(records))
	for i, rec := range records {
		idx := e.indexByID(rec.Object, rec.ID)
		if idx < 0 {
			outcomes[i] = domain.DeleteOutcome{ID: rec.ID, Errors: []domain.EngineError{{Code: "NOT_FOUND", Message: "record not found"}}}
			continue
		}

		list := e.store[rec.Object]
		e.store[rec.Object] = append(list[:idx], list[idx+1:]...)
		outcomes[i] = domain.DeleteOutcome{Success: true, ID: rec.ID}
	}
	return outcomes, nil
}

// indexByID вызывается только под локом
func (e *MemoryEngine) indexByID(object, id string) int {
	if id == "" {
		return -1
	}
	for i, r := range e.store[object] {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (e *MemoryEngine) indexByField(object, field string, value any) int {
	if value == nil {
		return -1
	}
	for i, r := range e.store[object] {
		if r.Fields[field] == value {
			return i
		}
	}
	return -1
}

func failedSave(code, msg string) domain.SaveOutcome {
	return domain.SaveOutcome{Errors: []domain.EngineError{{Code: code, Message: msg}}}
}

// objectFromQuery достает тип объекта из текста запроса:
// либо "... FROM <Object> ...", либо просто "<Object>"
func objectFromQuery(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", fmt.Errorf("memory: empty query")
	}
	for i, f := range fields {
		if strings.EqualFold(f, "from") {
			if i+1 >= len(fields) {
				return "", fmt.Errorf("memory: malformed query %q", text)
			}
			return fields[i+1], nil
		}
	}
	if len(fields) == 1 {
		return fields[0], nil
	}
	return "", fmt.Errorf("memory: cannot determine object in query %q", text)
}

func matches(rec domain.Record, bindings map[string]any) bool {
	for k, v := range bindings {
		if rec.Fields[k] != v {
			return false
		}
	}
	return true
}
