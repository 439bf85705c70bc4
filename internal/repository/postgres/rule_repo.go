package postgres

/*
Файл rule_repo.go отвечает за хранение правил доступа к полям (FieldRule).
Слой отделяет долговременное хранение правил в PostgreSQL от их мгновенной
проверки в оперативной памяти шлюза (MemoEvaluator).
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RuleRepo struct {
	pool *pgxpool.Pool
}

func NewRuleRepo(ctx context.Context, connString string) (*RuleRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	return &RuleRepo{pool: pool}, nil
}

// NewRuleRepoWithPool переиспользует уже открытый пул (один пул на процесс)
func NewRuleRepoWithPool(pool *pgxpool.Pool) *RuleRepo {
	return &RuleRepo{pool: pool}
}

// Ping проверяет доступность базы при старте
func (r *RuleRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetAllRules выполняет "холодную загрузку" всего набора правил при старте
// и по сигналу rule-update
func (r *RuleRepo) GetAllRules(ctx context.Context) ([]domain.FieldRule, error) {
	query := `
		SELECT id, principal_id, object_type, field, readable, creatable, updatable, created_at, updated_at
		FROM field_rules`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.FieldRule
	for rows.Next() {
		var fr domain.FieldRule
		if err := rows.Scan(&fr.ID, &fr.PrincipalID, &fr.Object, &fr.Field,
			&fr.Readable, &fr.Creatable, &fr.Updatable, &fr.CreatedAt, &fr.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, fr)
	}
	return results, rows.Err()
}

func (r *RuleRepo) GetRuleByID(ctx context.Context, id string) (*domain.FieldRule, error) {
	query := `
		SELECT id, principal_id, object_type, field, readable, creatable, updatable, created_at, updated_at
		FROM field_rules
		WHERE id = $1`

	fr := &domain.FieldRule{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&fr.ID, &fr.PrincipalID, &fr.Object, &fr.Field,
		&fr.Readable, &fr.Creatable, &fr.Updatable, &fr.CreatedAt, &fr.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Возвращаем nil для 404 в хендлере
		}
		return nil, err
	}
	return fr, nil
}

// CreateRule создает новую запись.
// Позволяет задавать principal_id = '*' для глобальных правил.
func (r *RuleRepo) CreateRule(ctx context.Context, fr *domain.FieldRule) error {
	query := `
		INSERT INTO field_rules (id, principal_id, object_type, field, readable, creatable, updatable)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		fr.PrincipalID, fr.Object, fr.Field, fr.Readable, fr.Creatable, fr.Updatable,
	).Scan(&fr.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to create rule: %w", err)
	}
	return nil
}

// UpdateRule обновляет флаги доступа существующего правила
func (r *RuleRepo) UpdateRule(ctx context.Context, fr *domain.FieldRule) error {
	query := `
		UPDATE field_rules
		SET readable = $1, creatable = $2, updatable = $3, updated_at = NOW()
		WHERE id = $4`

	ct, err := r.pool.Exec(ctx, query, fr.Readable, fr.Creatable, fr.Updatable, fr.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update rule: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: rule not found")
	}
	return nil
}

// DeleteRule удаляет правило по ID
func (r *RuleRepo) DeleteRule(ctx context.Context, id string) error {
	query := `DELETE FROM field_rules WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete rule: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: rule not found")
	}
	return nil
}
