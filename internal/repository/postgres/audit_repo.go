package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/dmlguard/internal/audit"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(connString string) (*AuditRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open audit db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}, nil
}

// NewAuditRepoWithDB — для тестов (sqlmock)
func NewAuditRepoWithDB(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// WriteBatch сохраняет пачку событий одним INSERT (Bulk Insert)
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.GuardEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице guard_events
	const numFields = 11
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11)

		objects, _ := json.Marshal(e.Objects)
		stripped, _ := json.Marshal(e.StrippedFields)

		vals = append(vals,
			e.ID, e.TraceID, e.Principal, e.Operation,
			objects, stripped, e.TrustLevel, e.Status, e.Error, e.DurationMs, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO guard_events (id, trace_id, principal, operation, objects, stripped_fields, trust_level, status, error, duration_ms, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// ReadRecent возвращает последние события для консоли (новые сверху)
func (r *AuditRepo) ReadRecent(ctx context.Context, limit int) ([]audit.GuardEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trace_id, principal, operation, objects, stripped_fields, trust_level, status, error, duration_ms, timestamp
		FROM guard_events
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []audit.GuardEvent
	for rows.Next() {
		var (
			e                 audit.GuardEvent
			objects, stripped []byte
		)
		if err := rows.Scan(&e.ID, &e.TraceID, &e.Principal, &e.Operation,
			&objects, &stripped, &e.TrustLevel, &e.Status, &e.Error, &e.DurationMs, &e.Timestamp); err != nil {
			return nil, err
		}
		json.Unmarshal(objects, &e.Objects)
		json.Unmarshal(stripped, &e.StrippedFields)
		results = append(results, e)
	}
	return results, rows.Err()
}
