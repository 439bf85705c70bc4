package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xela07ax/dmlguard/internal/console/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(s *service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает последние события decision trail.
// GET /v1/audit?limit=50
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to fetch audit log: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"events": events})
}
