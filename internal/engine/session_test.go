package engine

import (
	"testing"

	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	return NewSession(&recordingEngine{}, &allowAllEvaluator{}, nil, nil, nil)
}

func TestNewSession_Defaults(t *testing.T) {
	s := newTestSession()

	assert.Equal(t, domain.TrustRestricted, s.TrustLevel())
	assert.Equal(t, domain.BulkOptions{AllowFieldTruncation: true, AllOrNone: true}, s.BulkOptions())
	assert.False(t, s.Policy().Enabled)
	assert.NotNil(t, s.Policy().RequiredFields)
}

func TestSession_FluentChaining(t *testing.T) {
	s := newTestSession()

	got := s.SetTrustLevel(domain.TrustElevated).SetAllOrNone(false).RequireAllFields()
	assert.Same(t, s, got, "setters must return the same handle")

	assert.Equal(t, domain.TrustElevated, s.TrustLevel())
	assert.False(t, s.BulkOptions().AllOrNone)
	assert.True(t, s.Policy().Strict())
}

func TestSession_ReplaceBulkOptions(t *testing.T) {
	s := newTestSession()
	s.ReplaceBulkOptions(domain.BulkOptions{AllowFieldTruncation: false, AllOrNone: false})
	assert.Equal(t, domain.BulkOptions{}, s.BulkOptions())

	s.AllOrNothing()
	assert.True(t, s.BulkOptions().AllOrNone)
}

func TestSession_RequireFields(t *testing.T) {
	s := newTestSession()

	require.NoError(t, s.RequireFields("Account", "Industry"))
	require.NoError(t, s.RequireFields("Account", "Name"))

	pol := s.Policy()
	assert.True(t, pol.Enabled)
	assert.False(t, pol.Strict(), "named fields must not flip the policy into strict mode")
	// Повторные вызовы сливаются в один набор
	assert.Len(t, pol.RequiredFields["Account"], 2)
	assert.True(t, pol.Required("Account", "Industry"))
	assert.True(t, pol.Required("Account", "Name"))
	assert.False(t, pol.Required("Account", "Phone"))
}

func TestSession_RequireFieldsValidation(t *testing.T) {
	tests := []struct {
		name   string
		object string
		fields []string
	}{
		{"blank object", "  ", []string{"Name"}},
		{"empty field list", "Account", nil},
		{"blank field", "Account", []string{"Name", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession()
			err := s.RequireFields(tt.object, tt.fields...)

			var ce *domain.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "RequireFields", ce.Op)
			// Неудачный вызов не должен включать политику
			assert.False(t, s.Policy().Enabled)
		})
	}
}

func TestSession_SetRequireAllFields(t *testing.T) {
	s := newTestSession()

	s.SetRequireAllFields(true)
	assert.True(t, s.Policy().Strict())

	s.SetRequireAllFields(false)
	assert.False(t, s.Policy().Enabled)
}
