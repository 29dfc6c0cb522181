package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
)

// CategoryStore defines the database methods needed by category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CategoryStore interface {
	ListDishes(ctx context.Context) ([]database.Dish, error)
}

// CategoryHandler serves the fixed menu categories with live dish counts.
type CategoryHandler struct {
	store CategoryStore
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(store CategoryStore) *CategoryHandler {
	return &CategoryHandler{store: store}
}

// RegisterRoutes registers category endpoints on the given Chi router.
// Expected to be mounted at /categories.
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// --- Request / Response types ---

type categoryResponse struct {
	Name           string `json:"name"`
	DishCount      int    `json:"dish_count"`
	AvailableCount int    `json:"available_count"`
}

// --- Handlers ---

// List returns every category in menu order, including empty ones.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.store.ListDishes(r.Context())
	if err != nil {
		writeInternalError(w, "list categories", err)
		return
	}

	idx := make(map[string]int, len(enum.Categories))
	resp := make([]categoryResponse, len(enum.Categories))
	for i, c := range enum.Categories {
		idx[c] = i
		resp[i] = categoryResponse{Name: c}
	}

	for _, d := range dishes {
		i, ok := idx[d.Category]
		if !ok {
			continue
		}
		resp[i].DishCount++
		if d.IsAvailable {
			resp[i].AvailableCount++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
