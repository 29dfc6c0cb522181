package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
)

// DishStore defines the database methods needed by dish handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DishStore interface {
	ListDishes(ctx context.Context) ([]database.Dish, error)
	GetDish(ctx context.Context, id string) (database.Dish, error)
	CreateDish(ctx context.Context, arg database.CreateDishParams) (database.Dish, error)
	UpdateDish(ctx context.Context, arg database.UpdateDishParams) (database.Dish, error)
	SetDishAvailability(ctx context.Context, id string, available bool) (database.Dish, error)
	DeleteDish(ctx context.Context, id string) error
}

// DishHandler handles the dish catalog endpoints.
type DishHandler struct {
	store DishStore
}

// NewDishHandler creates a new DishHandler.
func NewDishHandler(store DishStore) *DishHandler {
	return &DishHandler{store: store}
}

// RegisterRoutes registers dish CRUD endpoints on the given Chi router.
// Expected to be mounted at /dishes.
func (h *DishHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/availability", h.SetAvailability)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type dishRequest struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	IsAvailable *bool  `json:"is_available"`
	ImageURL    string `json:"image_url"`
	ServingSize string `json:"serving_size"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

// validDish is a dishRequest that passed validation.
type validDish struct {
	name        string
	price       decimal.Decimal
	category    string
	isAvailable bool
	imageURL    string
	servingSize string
}

// --- Helpers ---

func isValidCategory(c string) bool {
	return slices.Contains(enum.Categories, c)
}

// validate returns the cleaned fields, or a message for a 400 response.
func (req dishRequest) validate() (validDish, string) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return validDish{}, "name is required"
	}
	if req.Price == "" {
		return validDish{}, "price is required"
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		if errors.Is(err, errNegativePrice) {
			return validDish{}, "price must be >= 0"
		}
		return validDish{}, "invalid price"
	}
	if req.Category == "" {
		return validDish{}, "category is required"
	}
	if !isValidCategory(req.Category) {
		return validDish{}, "invalid category"
	}

	d := validDish{
		name:        name,
		price:       price,
		category:    req.Category,
		isAvailable: true,
		imageURL:    strings.TrimSpace(req.ImageURL),
		servingSize: strings.TrimSpace(req.ServingSize),
	}
	if req.IsAvailable != nil {
		d.isAvailable = *req.IsAvailable
	}
	if d.servingSize == "" {
		d.servingSize = enum.DefaultServingSize
	}
	return d, ""
}

// --- Handlers ---

// List returns the catalog. Optional filters: ?category= and ?available=true|false.
func (h *DishHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && category != enum.StatusFilterAll && !isValidCategory(category) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category"})
		return
	}

	var available *bool
	if v := r.URL.Query().Get("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid available filter"})
			return
		}
		available = &b
	}

	dishes, err := h.store.ListDishes(r.Context())
	if err != nil {
		writeInternalError(w, "list dishes", err)
		return
	}

	filtered := dishes[:0:0]
	for _, d := range dishes {
		if category != "" && category != enum.StatusFilterAll && d.Category != category {
			continue
		}
		if available != nil && d.IsAvailable != *available {
			continue
		}
		filtered = append(filtered, d)
	}

	writeJSON(w, http.StatusOK, RenderDishes(filtered))
}

// Get returns a single dish by ID.
func (h *DishHandler) Get(w http.ResponseWriter, r *http.Request) {
	dish, err := h.store.GetDish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeInternalError(w, "get dish", err)
		return
	}

	writeJSON(w, http.StatusOK, toDishResponse(dish))
}

// Create adds a dish to the catalog.
func (h *DishHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	d, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	dish, err := h.store.CreateDish(r.Context(), database.CreateDishParams{
		Name:        d.name,
		Price:       d.price,
		Category:    d.category,
		IsAvailable: d.isAvailable,
		ImageURL:    d.imageURL,
		ServingSize: d.servingSize,
	})
	if err != nil {
		writeInternalError(w, "create dish", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDishResponse(dish))
}

// Update replaces the editable fields of a dish.
func (h *DishHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	d, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	dish, err := h.store.UpdateDish(r.Context(), database.UpdateDishParams{
		ID:          id,
		Name:        d.name,
		Price:       d.price,
		Category:    d.category,
		IsAvailable: d.isAvailable,
		ImageURL:    d.imageURL,
		ServingSize: d.servingSize,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeInternalError(w, "update dish", err)
		return
	}

	writeJSON(w, http.StatusOK, toDishResponse(dish))
}

// SetAvailability toggles whether a dish can be ordered.
func (h *DishHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.IsAvailable == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_available is required"})
		return
	}

	dish, err := h.store.SetDishAvailability(r.Context(), chi.URLParam(r, "id"), *req.IsAvailable)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeInternalError(w, "set dish availability", err)
		return
	}

	writeJSON(w, http.StatusOK, toDishResponse(dish))
}

// Delete removes a dish. Past orders keep their item snapshots.
func (h *DishHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteDish(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeInternalError(w, "delete dish", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
