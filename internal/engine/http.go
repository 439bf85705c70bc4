package engine

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Gateway — HTTP-обвязка над Session для Data Plane.
// Каждый эндпоинт — прямое отражение метода фасада; тел ответа движка не трогаем.
type Gateway struct {
	session *Session
	logger  *zap.Logger
}

func NewGateway(session *Session, logger *zap.Logger) *Gateway {
	return &Gateway{session: session, logger: logger.Named("gateway-http")}
}

// Routes собирает маршруты шлюза. Middleware (Trace, Principal, Blocklist)
// вешаются снаружи в main — порядок цепочки важен.
func (g *Gateway) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/query", g.handleQuery)
	r.Post("/insert", g.handleInsert)
	r.Post("/update", g.handleUpdate)
	r.Post("/upsert", g.handleUpsert)
	r.Post("/delete", g.handleDelete)
	return r
}

type queryRequest struct {
	Query    string         `json:"query"`
	Bindings map[string]any `json:"bindings,omitempty"`
}

type writeRequest struct {
	Records  []domain.Record `json:"records"`
	KeyField string          `json:"key_field,omitempty"` // только для upsert
}

func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	var (
		records []domain.Record
		err     error
	)
	if len(req.Bindings) > 0 {
		records, err = g.session.QueryWithBindings(r.Context(), req.Query, req.Bindings)
	} else {
		records, err = g.session.Query(r.Context(), req.Query)
	}
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, map[string]any{"records": records})
}

func (g *Gateway) handleInsert(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeWrite(w, r)
	if !ok {
		return
	}
	outcomes, err := g.session.Insert(r.Context(), req.Records)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, map[string]any{"outcomes": outcomes})
}

func (g *Gateway) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeWrite(w, r)
	if !ok {
		return
	}
	outcomes, err := g.session.Update(r.Context(), req.Records)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, map[string]any{"outcomes": outcomes})
}

func (g *Gateway) handleUpsert(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeWrite(w, r)
	if !ok {
		return
	}
	outcomes, err := g.session.UpsertBy(r.Context(), req.KeyField, req.Records)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, map[string]any{"outcomes": outcomes})
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeWrite(w, r)
	if !ok {
		return
	}
	outcomes, err := g.session.Delete(r.Context(), req.Records)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, map[string]any{"outcomes": outcomes})
}

func (g *Gateway) decodeWrite(w http.ResponseWriter, r *http.Request) (writeRequest, bool) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	if len(req.Records) == 0 {
		http.Error(w, "records are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (g *Gateway) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("response encoding failed", zap.Error(err))
	}
}

// writeError транслирует ошибки слоя в HTTP-статусы.
// PolicyViolation отдаём с полным списком полей — вызывающий должен увидеть
// всю картину сразу, а не чинить по одному полю.
func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var pv *domain.PolicyViolationError
	if errors.As(err, &pv) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "policy_violation",
			"fields": pv.Fields,
		})
		return
	}

	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_configuration", "message": ce.Error()})
		return
	}

	if errors.Is(err, domain.ErrAccessDenied) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "access_denied"})
		return
	}

	g.logger.Error("operation failed", zap.Error(err))
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "engine_failure", "message": err.Error()})
}
