package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xela07ax/dmlguard/internal/domain"
	"github.com/xela07ax/dmlguard/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(eval policy.AccessEvaluator) *Gateway {
	s := NewSession(&recordingEngine{queryResults: accountBatch()}, eval, nil, nil, nil)
	return NewGateway(s, zap.NewNop())
}

func TestGateway_Insert(t *testing.T) {
	g := newTestGateway(&allowAllEvaluator{})
	body := `{"records":[{"object":"Account","fields":{"Name":"Acme"}}]}`

	req := httptest.NewRequest(http.MethodPost, "/insert", strings.NewReader(body))
	rec := httptest.NewRecorder()
	g.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Outcomes []domain.SaveOutcome `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Outcomes, 1)
	assert.True(t, resp.Outcomes[0].Success)
}

func TestGateway_InsertPolicyViolationIs403(t *testing.T) {
	s := NewSession(&recordingEngine{}, &strippingEvaluator{field: "Industry"}, nil, nil, nil)
	require.NoError(t, s.RequireFields("Account", "Industry"))
	g := NewGateway(s, zap.NewNop())

	body := `{"records":[{"object":"Account","fields":{"Industry":"Tech"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/insert", strings.NewReader(body))
	rec := httptest.NewRecorder()
	g.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "policy_violation", resp.Error)
	assert.Equal(t, []string{"Account.Industry"}, resp.Fields)
}

func TestGateway_QueryValidation(t *testing.T) {
	g := newTestGateway(&allowAllEvaluator{})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":""}`))
	rec := httptest.NewRecorder()
	g.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	g.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateway_Query(t *testing.T) {
	g := newTestGateway(&allowAllEvaluator{})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"FROM Account"}`))
	rec := httptest.NewRecorder()
	g.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Records []domain.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
}

func TestGateway_EmptyRecordsRejected(t *testing.T) {
	g := newTestGateway(&allowAllEvaluator{})

	for _, path := range []string{"/insert", "/update", "/upsert", "/delete"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"records":[]}`))
		rec := httptest.NewRecorder()
		g.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}
