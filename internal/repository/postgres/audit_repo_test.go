package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/xela07ax/dmlguard/internal/audit"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_WriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewAuditRepoWithDB(db)

	events := []audit.GuardEvent{
		{
			ID: "e1", TraceID: "t1", Principal: "agent-1", Operation: "insert",
			Objects: []string{"Account"}, StrippedFields: []string{"Account.Industry"},
			TrustLevel: "RESTRICTED", Status: audit.StatusStripped,
			DurationMs: 12, Timestamp: time.Now(),
		},
		{
			ID: "e2", TraceID: "t2", Principal: "agent-2", Operation: "delete",
			TrustLevel: "RESTRICTED", Status: audit.StatusPassed,
			DurationMs: 3, Timestamp: time.Now(),
		},
	}

	// Одна пачка — один INSERT, по 11 плейсхолдеров на событие
	mock.ExpectExec(`INSERT INTO guard_events`).
		WithArgs(
			"e1", "t1", "agent-1", "insert", sqlmock.AnyArg(), sqlmock.AnyArg(), "RESTRICTED", audit.StatusStripped, "", int64(12), sqlmock.AnyArg(),
			"e2", "t2", "agent-2", "delete", sqlmock.AnyArg(), sqlmock.AnyArg(), "RESTRICTED", audit.StatusPassed, "", int64(3), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.WriteBatch(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_WriteBatchEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAuditRepoWithDB(db)
	// Пустая пачка не должна трогать базу вовсе
	require.NoError(t, repo.WriteBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ReadRecent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewAuditRepoWithDB(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "trace_id", "principal", "operation", "objects", "stripped_fields",
		"trust_level", "status", "error", "duration_ms", "timestamp",
	}).AddRow(
		"e1", "t1", "agent-1", "query", []byte(`["Account"]`), []byte(`["Account.Industry"]`),
		"RESTRICTED", audit.StatusStripped, "", int64(7), now,
	)

	mock.ExpectQuery(`FROM guard_events`).
		WithArgs(50).
		WillReturnRows(rows)

	events, err := repo.ReadRecent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, []string{"Account"}, events[0].Objects)
	assert.Equal(t, []string{"Account.Industry"}, events[0].StrippedFields)
	assert.Equal(t, audit.StatusStripped, events[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ReadRecentClampsLimit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewAuditRepoWithDB(db)

	// Некорректный limit подменяется дефолтом
	mock.ExpectQuery(`FROM guard_events`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "trace_id", "principal", "operation", "objects", "stripped_fields",
			"trust_level", "status", "error", "duration_ms", "timestamp",
		}))

	_, err = repo.ReadRecent(context.Background(), -5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
