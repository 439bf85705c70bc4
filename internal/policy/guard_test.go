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

// fakeEvaluator считает вызовы и отдает заранее заготовленный вердикт
type fakeEvaluator struct {
	calls    int
	filtered []domain.Record
	removed  map[string][]string
	err      error
}

func (f *fakeEvaluator) EvaluateAccess(_ context.Context, _ domain.AccessKind, records []domain.Record, _ bool) ([]domain.Record, map[string][]string, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	if f.filtered == nil {
		return records, f.removed, nil
	}
	return f.filtered, f.removed, nil
}

func someRecords() []domain.Record {
	return []domain.Record{
		{Object: "Account", Fields: map[string]any{"Name": "Acme", "Industry": "Tech"}},
	}
}

func TestGuard_ElevatedBypassesEvaluator(t *testing.T) {
	eval := &fakeEvaluator{}
	g := NewGuard(eval, zap.NewNop())

	records := someRecords()
	pol := RemovedFieldPolicy{Enabled: true} // даже строгая политика не важна

	out, err := g.Apply(context.Background(), domain.AccessCreatable, domain.TrustElevated, pol, records)
	require.NoError(t, err)
	assert.Equal(t, records, out)
	assert.Equal(t, 0, eval.calls, "permission engine must not be consulted under elevated trust")
}

func TestGuard_EmptyInputBypassesEvaluator(t *testing.T) {
	eval := &fakeEvaluator{}
	g := NewGuard(eval, zap.NewNop())

	out, err := g.Apply(context.Background(), domain.AccessReadable, domain.TrustRestricted, RemovedFieldPolicy{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, eval.calls)
}

func TestGuard_PassThroughWhenNothingRemoved(t *testing.T) {
	eval := &fakeEvaluator{removed: map[string][]string{}}
	g := NewGuard(eval, zap.NewNop())

	records := someRecords()
	out, err := g.Apply(context.Background(), domain.AccessUpdatable, domain.TrustRestricted, RemovedFieldPolicy{Enabled: true}, records)
	require.NoError(t, err)
	assert.Equal(t, records, out)
	assert.Equal(t, 1, eval.calls)
}

func TestGuard_DisabledPolicyStripsSilently(t *testing.T) {
	filtered := []domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}}
	eval := &fakeEvaluator{
		filtered: filtered,
		removed:  map[string][]string{"Account": {"Industry"}},
	}
	g := NewGuard(eval, zap.NewNop())

	out, err := g.Apply(context.Background(), domain.AccessCreatable, domain.TrustRestricted, RemovedFieldPolicy{}, someRecords())
	require.NoError(t, err)
	assert.Equal(t, filtered, out)
}

func TestGuard_StrictPolicyAnyRemovalViolates(t *testing.T) {
	eval := &fakeEvaluator{
		filtered: []domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}},
		removed:  map[string][]string{"Account": {"Industry"}},
	}
	g := NewGuard(eval, zap.NewNop())

	// Enabled без перечня полей = строгий режим
	pol := RemovedFieldPolicy{Enabled: true}
	out, err := g.Apply(context.Background(), domain.AccessCreatable, domain.TrustRestricted, pol, someRecords())
	require.Error(t, err)
	assert.Nil(t, out)

	var pv *domain.PolicyViolationError
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, []string{"Account.Industry"}, pv.Fields)
}

func TestGuard_NamedFieldPolicy(t *testing.T) {
	pol := RemovedFieldPolicy{
		Enabled: true,
		RequiredFields: map[string]map[string]struct{}{
			"Account": {"Industry": {}},
		},
	}

	t.Run("tolerated removal", func(t *testing.T) {
		filtered := []domain.Record{{Object: "Account", Fields: map[string]any{"Industry": "Tech"}}}
		eval := &fakeEvaluator{
			filtered: filtered,
			removed:  map[string][]string{"Account": {"Name"}}, // Name не критичен
		}
		g := NewGuard(eval, zap.NewNop())

		out, err := g.Apply(context.Background(), domain.AccessUpdatable, domain.TrustRestricted, pol, someRecords())
		require.NoError(t, err)
		assert.Equal(t, filtered, out)
	})

	t.Run("critical removal", func(t *testing.T) {
		eval := &fakeEvaluator{
			filtered: []domain.Record{{Object: "Account", Fields: map[string]any{"Name": "Acme"}}},
			removed:  map[string][]string{"Account": {"Industry", "Name"}},
		}
		g := NewGuard(eval, zap.NewNop())

		_, err := g.Apply(context.Background(), domain.AccessUpdatable, domain.TrustRestricted, pol, someRecords())
		var pv *domain.PolicyViolationError
		require.ErrorAs(t, err, &pv)
		// Только Industry объявлен критичным
		assert.Equal(t, []string{"Account.Industry"}, pv.Fields)
	})

	t.Run("other object not covered", func(t *testing.T) {
		eval := &fakeEvaluator{
			filtered: []domain.Record{{Object: "Contact", Fields: map[string]any{}}},
			removed:  map[string][]string{"Contact": {"Industry"}},
		}
		g := NewGuard(eval, zap.NewNop())

		_, err := g.Apply(context.Background(), domain.AccessUpdatable, domain.TrustRestricted, pol,
			[]domain.Record{{Object: "Contact", Fields: map[string]any{"Industry": "x"}}})
		require.NoError(t, err)
	})
}

func TestGuard_ViolationAggregatesAllFieldsSorted(t *testing.T) {
	eval := &fakeEvaluator{
		filtered: []domain.Record{},
		removed: map[string][]string{
			"Contact": {"Email"},
			"Account": {"Name", "Industry"},
		},
	}
	g := NewGuard(eval, zap.NewNop())

	_, err := g.Apply(context.Background(), domain.AccessCreatable, domain.TrustRestricted,
		RemovedFieldPolicy{Enabled: true}, someRecords())

	var pv *domain.PolicyViolationError
	require.ErrorAs(t, err, &pv)
	// Полная картина одним сообщением, порядок стабильный
	assert.Equal(t, []string{"Account.Industry", "Account.Name", "Contact.Email"}, pv.Fields)
	assert.Equal(t, "dmlguard: removed fields violate policy: Account.Industry, Account.Name, Contact.Email", err.Error())
}

func TestGuard_EvaluatorErrorPassesThrough(t *testing.T) {
	eval := &fakeEvaluator{err: domain.ErrAccessDenied}
	g := NewGuard(eval, zap.NewNop())

	_, err := g.Apply(context.Background(), domain.AccessReadable, domain.TrustRestricted, RemovedFieldPolicy{}, someRecords())
	assert.True(t, errors.Is(err, domain.ErrAccessDenied))
	assert.False(t, domain.IsPolicyViolation(err))
}

func TestRemovedFieldPolicy_Required(t *testing.T) {
	tests := []struct {
		name   string
		pol    RemovedFieldPolicy
		object string
		field  string
		want   bool
	}{
		{"disabled", RemovedFieldPolicy{}, "Account", "Name", false},
		{"strict covers everything", RemovedFieldPolicy{Enabled: true}, "Whatever", "Field", true},
		{
			"named hit",
			RemovedFieldPolicy{Enabled: true, RequiredFields: map[string]map[string]struct{}{"Account": {"Name": {}}}},
			"Account", "Name", true,
		},
		{
			"named miss",
			RemovedFieldPolicy{Enabled: true, RequiredFields: map[string]map[string]struct{}{"Account": {"Name": {}}}},
			"Account", "Industry", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pol.Required(tt.object, tt.field))
		})
	}
}
