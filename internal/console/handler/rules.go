package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/dmlguard/internal/console/service"
	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/go-chi/chi/v5"
)

type RuleHandler struct {
	service *service.RuleService
}

func NewRuleHandler(s *service.RuleService) *RuleHandler {
	return &RuleHandler{service: s}
}

// Get возвращает детали конкретного правила по его ID.
// GET /v1/rules/{id}
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	// Извлекаем ID из параметров пути chi
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Rule ID is required", http.StatusBadRequest)
		return
	}

	rule, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to retrieve rule: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Если правило не найдено (nil), возвращаем 404
	if rule == nil {
		http.Error(w, "Rule not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rule); err != nil {
		http.Error(w, "Encoding error", http.StatusInternalServerError)
	}
}

// List возвращает все правила для админки
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.GetAll(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch rules", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules)
}

// Create создает новое правило (включая Wildcard '*' для principal_id)
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fr domain.FieldRule
	if err := json.NewDecoder(r.Body).Decode(&fr); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Create(r.Context(), &fr); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(fr)
}

// Update обновляет флаги доступа существующего правила
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var fr domain.FieldRule
	if err := json.NewDecoder(r.Body).Decode(&fr); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fr.ID = id

	if err := h.service.Update(r.Context(), &fr); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete удаляет правило и инициирует обновление кэшей шлюзов
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
