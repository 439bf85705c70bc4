package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuleRepo struct {
	rules []domain.FieldRule
	err   error
}

func (f *fakeRuleRepo) GetAllRules(context.Context) ([]domain.FieldRule, error) {
	return f.rules, f.err
}

func evaluatorWith(rules ...domain.FieldRule) *MemoEvaluator {
	e := NewMemoEvaluator(nil, zap.NewNop())
	e.SetRules(rules)
	return e
}

func TestMemoEvaluator_DefaultDeny(t *testing.T) {
	e := evaluatorWith() // ни одного правила
	ctx := domain.WithPrincipal(context.Background(), "agent-1")

	records := []domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}
	filtered, removed, err := e.EvaluateAccess(ctx, domain.AccessReadable, records, true)
	require.NoError(t, err)

	assert.Empty(t, filtered[0].Fields, "field without a rule must be stripped")
	assert.Equal(t, map[string][]string{"Account": {"Name"}}, removed)
	// Оригинал не тронут
	assert.Equal(t, "Acme", records[0].Fields["Name"])
}

func TestMemoEvaluator_WildcardFallback(t *testing.T) {
	e := evaluatorWith(
		domain.FieldRule{PrincipalID: "*", Object: "Account", Field: "Name", Readable: true},
	)
	ctx := domain.WithPrincipal(context.Background(), "agent-1")

	filtered, removed, err := e.EvaluateAccess(ctx, domain.AccessReadable,
		[]domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}, true)
	require.NoError(t, err)
	assert.Equal(t, "Acme", filtered[0].Fields["Name"])
	assert.Empty(t, removed)
}

func TestMemoEvaluator_PersonalRuleOverridesWildcard(t *testing.T) {
	e := evaluatorWith(
		domain.FieldRule{PrincipalID: "*", Object: "Account", Field: "Name", Readable: true},
		// Персональный запрет сильнее глобального разрешения
		domain.FieldRule{PrincipalID: "agent-1", Object: "Account", Field: "Name", Readable: false},
	)
	ctx := domain.WithPrincipal(context.Background(), "agent-1")

	filtered, removed, err := e.EvaluateAccess(ctx, domain.AccessReadable,
		[]domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}, true)
	require.NoError(t, err)
	assert.Empty(t, filtered[0].Fields)
	assert.Equal(t, map[string][]string{"Account": {"Name"}}, removed)
}

func TestMemoEvaluator_KindSelectsPermissionBit(t *testing.T) {
	e := evaluatorWith(
		domain.FieldRule{PrincipalID: "*", Object: "Account", Field: "Name",
			Readable: true, Creatable: true, Updatable: false},
	)
	ctx := context.Background()
	records := []domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}

	_, removed, err := e.EvaluateAccess(ctx, domain.AccessCreatable, records, true)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, removed, err = e.EvaluateAccess(ctx, domain.AccessUpdatable, records, true)
	require.NoError(t, err)
	assert.Len(t, removed["Account"], 1)

	// Upsert требует оба бита сразу
	_, removed, err = e.EvaluateAccess(ctx, domain.AccessUpsertable, records, true)
	require.NoError(t, err)
	assert.Len(t, removed["Account"], 1)
}

func TestMemoEvaluator_CheckOnlyKeepsRecordsIntact(t *testing.T) {
	e := evaluatorWith()
	records := []domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}

	out, removed, err := e.EvaluateAccess(context.Background(), domain.AccessReadable, records, false)
	require.NoError(t, err)
	assert.Equal(t, records, out, "strip=false must return the originals")
	assert.Equal(t, map[string][]string{"Account": {"Name"}}, removed)
}

func TestMemoEvaluator_RemovedListIsSorted(t *testing.T) {
	e := evaluatorWith()
	records := []domain.Record{{Object: "Account", Fields: map[string]any{
		"Zeta": 1, "Alpha": 2, "Mid": 3,
	}}}

	_, removed, err := e.EvaluateAccess(context.Background(), domain.AccessReadable, records, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, removed["Account"])
}

func TestMemoEvaluator_Refresh(t *testing.T) {
	repo := &fakeRuleRepo{rules: []domain.FieldRule{
		{PrincipalID: "*", Object: "Account", Field: "Name", Readable: true},
	}}
	e := NewMemoEvaluator(repo, zap.NewNop())
	require.NoError(t, e.Refresh(context.Background()))

	filtered, _, err := e.EvaluateAccess(context.Background(), domain.AccessReadable,
		[]domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}, true)
	require.NoError(t, err)
	assert.Equal(t, "Acme", filtered[0].Fields["Name"])

	// Повторный Refresh целиком заменяет кэш
	repo.rules = nil
	require.NoError(t, e.Refresh(context.Background()))
	filtered, _, err = e.EvaluateAccess(context.Background(), domain.AccessReadable,
		[]domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}, true)
	require.NoError(t, err)
	assert.Empty(t, filtered[0].Fields)
}

func TestMemoEvaluator_RefreshError(t *testing.T) {
	repo := &fakeRuleRepo{err: errors.New("db down")}
	e := NewMemoEvaluator(repo, zap.NewNop())
	assert.Error(t, e.Refresh(context.Background()))
}
