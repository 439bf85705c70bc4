package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/dmlguard/internal/console/service"

	"github.com/go-chi/chi/v5"
)

type PrincipalHandler struct {
	service *service.PrincipalService
}

func NewPrincipalHandler(s *service.PrincipalService) *PrincipalHandler {
	return &PrincipalHandler{service: s}
}

// ListBlocked возвращает текущий блок-лист
func (h *PrincipalHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.service.Blocked(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch blocklist", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"blocked": blocked})
}

// Block мгновенно блокирует субъекта на всех шлюзах (Kill-switch)
func (h *PrincipalHandler) Block(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Principal ID is required", http.StatusBadRequest)
		return
	}
	if err := h.service.Block(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unblock снимает блокировку
func (h *PrincipalHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Principal ID is required", http.StatusBadRequest)
		return
	}
	if err := h.service.Unblock(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
