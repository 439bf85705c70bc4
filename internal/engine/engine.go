package engine

import (
	"context"

	"github.com/xela07ax/dmlguard/internal/domain"
)

// Engine — контракт внешнего persistence engine. Шлюз делегирует ему весь I/O
// и возвращает его нативные per-record результаты вызывающему как есть.
// Агрегатные сбои батча при AllOrNone=true движок поднимает сам — шлюз их
// не порождает и не ловит.
type Engine interface {
	Query(ctx context.Context, text string, trust domain.TrustLevel) ([]domain.Record, error)
	QueryWithBindings(ctx context.Context, text string, bindings map[string]any, trust domain.TrustLevel) ([]domain.Record, error)
	Insert(ctx context.Context, records []domain.Record, opts domain.BulkOptions, trust domain.TrustLevel) ([]domain.SaveOutcome, error)
	Update(ctx context.Context, records []domain.Record, opts domain.BulkOptions, trust domain.TrustLevel) ([]domain.SaveOutcome, error)
	// Upsert с пустым keyField работает по первичному идентификатору
	Upsert(ctx context.Context, records []domain.Record, keyField string, allOrNone bool, trust domain.TrustLevel) ([]domain.UpsertOutcome, error)
	Delete(ctx context.Context, records []domain.Record, allOrNone bool, trust domain.TrustLevel) ([]domain.DeleteOutcome, error)
}
