package postgres

/*
Файл engine.go — реализация persistence engine поверх PostgreSQL.

Записи хранятся schemaless: таблица records (id uuid, object_type text,
fields jsonb). Текст запроса уходит в Postgres как есть — разбор языка
запросов не входит в обязанности этого слоя; контракт лишь требует, чтобы
запрос возвращал колонки (id, object_type, fields).
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgEngine struct {
	pool *pgxpool.Pool
}

func NewPgEngine(ctx context.Context, connString string) (*PgEngine, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	return &PgEngine{pool: pool}, nil
}

// Ping проверяет доступность базы при старте
func (e *PgEngine) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

func (e *PgEngine) Close() {
	e.pool.Close()
}

// Pool отдаёт общий пул: репозитории правил живут на том же соединении
func (e *PgEngine) Pool() *pgxpool.Pool {
	return e.pool
}

func (e *PgEngine) Query(ctx context.Context, text string, _ domain.TrustLevel) ([]domain.Record, error) {
	rows, err := e.pool.Query(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("postgres: query failed: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// QueryWithBindings использует именованные параметры pgx: "... WHERE fields->>'name' = @name"
func (e *PgEngine) QueryWithBindings(ctx context.Context, text string, bindings map[string]any, _ domain.TrustLevel) ([]domain.Record, error) {
	rows, err := e.pool.Query(ctx, text, pgx.NamedArgs(bindings))
	if err != nil {
		return nil, fmt.Errorf("postgres: query failed: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (e *PgEngine) Insert(ctx context.Context, records []domain.Record, opts domain.BulkOptions, trust domain.TrustLevel) ([]domain.SaveOutcome, error) {
	const insertSQL = `
		INSERT INTO records (id, object_type, fields)
		VALUES ($1, $2, $3)`

	if opts.AllOrNone {
		// Батч целиком: одна транзакция, любой сбой откатывает всё
		outcomes := make([]domain.SaveOutcome, len(records))
		err := pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
			for i, rec := range records {
				id := uuid.New().String()
				payload, err := json.Marshal(rec.Fields)
				if err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				if _, err := tx.Exec(ctx, insertSQL, id, rec.Object, payload); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				outcomes[i] = domain.SaveOutcome{Success: true, ID: id}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: insert batch aborted: %w", err)
		}
		return outcomes, nil
	}

	// Частичный успех: каждая запись сама за себя
	outcomes := make([]domain.SaveOutcome, len(records))
	for i, rec := range records {
		id := uuid.New().String()
		payload, err := json.Marshal(rec.Fields)
		if err != nil {
			outcomes[i] = saveFailure(err)
			continue
		}
		if _, err := e.pool.Exec(ctx, insertSQL, id, rec.Object, payload); err != nil {
			outcomes[i] = saveFailure(err)
			continue
		}
		outcomes[i] = domain.SaveOutcome{Success: true, ID: id}
	}
	return outcomes, nil
}

func (e *PgEngine) Update(ctx context.Context, records []domain.Record, opts domain.BulkOptions, trust domain.TrustLevel) ([]domain.SaveOutcome, error) {
	// jsonb || обновляет только присланные поля, остальное не трогаем
	const updateSQL = `
		UPDATE records
		SET fields = fields || $1, updated_at = NOW()
		WHERE id = $2`

	if opts.AllOrNone {
		outcomes := make([]domain.SaveOutcome, len(records))
		err := pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
			for i, rec := range records {
				payload, err := json.Marshal(rec.Fields)
				if err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				ct, err := tx.Exec(ctx, updateSQL, payload, rec.ID)
				if err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				if ct.RowsAffected() == 0 {
					return fmt.Errorf("record %s not found", rec.ID)
				}
				outcomes[i] = domain.SaveOutcome{Success: true, ID: rec.ID}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: update batch aborted: %w", err)
		}
		return outcomes, nil
	}

	outcomes := make([]domain.SaveOutcome, len(records))
	for i, rec := range records {
		payload, err := json.Marshal(rec.Fields)
		if err != nil {
			outcomes[i] = saveFailure(err)
			continue
		}
		ct, err := e.pool.Exec(ctx, updateSQL, payload, rec.ID)
		if err != nil {
			outcomes[i] = saveFailure(err)
			continue
		}
		if ct.RowsAffected() == 0 {
			outcomes[i] = domain.SaveOutcome{ID: rec.ID, Errors: []domain.EngineError{{Code: "NOT_FOUND", Message: "record not found"}}}
			continue
		}
		outcomes[i] = domain.SaveOutcome{Success: true, ID: rec.ID}
	}
	return outcomes, nil
}

func (e *PgEngine) Upsert(ctx context.Context, records []domain.Record, keyField string, allOrNone bool, trust domain.TrustLevel) ([]domain.UpsertOutcome, error) {
	outcomes := make([]domain.UpsertOutcome, len(records))

	apply := func(q querier, i int, rec domain.Record) error {
		out, err := upsertOne(ctx, q, rec, keyField)
		if err != nil {
			return err
		}
		outcomes[i] = out
		return nil
	}

	if allOrNone {
		err := pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
			for i, rec := range records {
				if err := apply(tx, i, rec); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: upsert batch aborted: %w", err)
		}
		return outcomes, nil
	}

	for i, rec := range records {
		if err := apply(e.pool, i, rec); err != nil {
			outcomes[i] = domain.UpsertOutcome{Errors: []domain.EngineError{{Code: "ENGINE_ERROR", Message: err.Error()}}}
		}
	}
	return outcomes, nil
}

func (e *PgEngine) Delete(ctx context.Context, records []domain.Record, allOrNone bool, trust domain.TrustLevel) ([]domain.DeleteOutcome, error) {
	const deleteSQL = `DELETE FROM records WHERE id = $1`

	if allOrNone {
		outcomes := make([]domain.DeleteOutcome, len(records))
		err := pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
			for i, rec := range records {
				ct, err := tx.Exec(ctx, deleteSQL, rec.ID)
				if err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				if ct.RowsAffected() == 0 {
					return fmt.Errorf("record %s not found", rec.ID)
				}
				outcomes[i] = domain.DeleteOutcome{Success: true, ID: rec.ID}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: delete batch aborted: %w", err)
		}
		return outcomes, nil
	}

	outcomes := make([]domain.DeleteOutcome, len(records))
	for i, rec := range records {
		ct, err := e.pool.Exec(ctx, deleteSQL, rec.ID)
		if err != nil {
			outcomes[i] = domain.DeleteOutcome{ID: rec.ID, Errors: []domain.EngineError{{Code: "ENGINE_ERROR", Message: err.Error()}}}
			continue
		}
		if ct.RowsAffected() == 0 {
			outcomes[i] = domain.DeleteOutcome{ID: rec.ID, Errors: []domain.EngineError{{Code: "NOT_FOUND", Message: "record not found"}}}
			continue
		}
		outcomes[i] = domain.DeleteOutcome{Success: true, ID: rec.ID}
	}
	return outcomes, nil
}

// querier — общий знаменатель pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// upsertOne: по первичному id через ON CONFLICT, по внешнему ключевому полю —
// через UPDATE c fallback на INSERT
func upsertOne(ctx context.Context, q querier, rec domain.Record, keyField string) (domain.UpsertOutcome, error) {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return domain.UpsertOutcome{}, err
	}

	if keyField == "" {
		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}
		var created bool
		// xmax = 0 у свежевставленной строки: отличаем insert от update
		err := q.QueryRow(ctx, `
			INSERT INTO records (id, object_type, fields)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET fields = records.fields || EXCLUDED.fields, updated_at = NOW()
			RETURNING (xmax = 0)`, id, rec.Object, payload).Scan(&created)
		if err != nil {
			return domain.UpsertOutcome{}, err
		}
		return domain.UpsertOutcome{Success: true, ID: id, Created: created}, nil
	}

	keyValue, ok := rec.Fields[keyField]
	if !ok {
		return domain.UpsertOutcome{}, fmt.Errorf("key field %q is missing in record", keyField)
	}

	var id string
	err = q.QueryRow(ctx, `
		UPDATE records
		SET fields = fields || $1, updated_at = NOW()
		WHERE object_type = $2 AND fields->>$3 = $4
		RETURNING id`, payload, rec.Object, keyField, fmt.Sprint(keyValue)).Scan(&id)
	switch {
	case err == nil:
		return domain.UpsertOutcome{Success: true, ID: id, Created: false}, nil
	case errors.Is(err, pgx.ErrNoRows):
		id = uuid.New().String()
		if _, err := q.Exec(ctx, `
			INSERT INTO records (id, object_type, fields)
			VALUES ($1, $2, $3)`, id, rec.Object, payload); err != nil {
			return domain.UpsertOutcome{}, err
		}
		return domain.UpsertOutcome{Success: true, ID: id, Created: true}, nil
	default:
		return domain.UpsertOutcome{}, err
	}
}

func scanRecords(rows pgx.Rows) ([]domain.Record, error) {
	var results []domain.Record
	for rows.Next() {
		var (
			rec     domain.Record
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Object, &payload); err != nil {
			return nil, fmt.Errorf("postgres: row scan failed: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.Fields); err != nil {
				return nil, fmt.Errorf("postgres: fields decode failed: %w", err)
			}
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func saveFailure(err error) domain.SaveOutcome {
	return domain.SaveOutcome{Errors: []domain.EngineError{{Code: "ENGINE_ERROR", Message: err.Error()}}}
}
