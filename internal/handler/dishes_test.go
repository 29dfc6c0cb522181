package handler_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/handler"
)

// --- Mock store ---

type mockDishStore struct {
	dishes  map[string]database.Dish
	order   []string
	nextID  int
	listErr error
}

func newMockDishStore(dishes ...database.Dish) *mockDishStore {
	m := &mockDishStore{dishes: make(map[string]database.Dish)}
	for _, d := range dishes {
		m.put(d)
	}
	return m
}

func (m *mockDishStore) put(d database.Dish) database.Dish {
	if d.ID == "" {
		m.nextID++
		d.ID = "dish-" + strconv.Itoa(m.nextID)
	}
	if _, ok := m.dishes[d.ID]; !ok {
		m.order = append(m.order, d.ID)
	}
	m.dishes[d.ID] = d
	return d
}

func (m *mockDishStore) ListDishes(_ context.Context) ([]database.Dish, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]database.Dish, 0, len(m.order))
	for _, id := range m.order {
		if d, ok := m.dishes[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDishStore) GetDish(_ context.Context, id string) (database.Dish, error) {
	d, ok := m.dishes[id]
	if !ok {
		return database.Dish{}, database.ErrNotFound
	}
	return d, nil
}

func (m *mockDishStore) CreateDish(_ context.Context, arg database.CreateDishParams) (database.Dish, error) {
	now := time.Now()
	return m.put(database.Dish{
		Name:        arg.Name,
		Price:       arg.Price,
		Category:    arg.Category,
		IsAvailable: arg.IsAvailable,
		ImageURL:    arg.ImageURL,
		ServingSize: arg.ServingSize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}), nil
}

func (m *mockDishStore) UpdateDish(_ context.Context, arg database.UpdateDishParams) (database.Dish, error) {
	d, ok := m.dishes[arg.ID]
	if !ok {
		return database.Dish{}, database.ErrNotFound
	}
	d.Name = arg.Name
	d.Price = arg.Price
	d.Category = arg.Category
	d.IsAvailable = arg.IsAvailable
	d.ImageURL = arg.ImageURL
	d.ServingSize = arg.ServingSize
	d.UpdatedAt = time.Now()
	return m.put(d), nil
}

func (m *mockDishStore) SetDishAvailability(_ context.Context, id string, available bool) (database.Dish, error) {
	d, ok := m.dishes[id]
	if !ok {
		return database.Dish{}, database.ErrNotFound
	}
	d.IsAvailable = available
	return m.put(d), nil
}

func (m *mockDishStore) DeleteDish(_ context.Context, id string) error {
	if _, ok := m.dishes[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.dishes, id)
	return nil
}

// --- Helpers ---

func setupDishRouter(store *mockDishStore) *chi.Mux {
	h := handler.NewDishHandler(store)
	r := chi.NewRouter()
	r.Route("/dishes", h.RegisterRoutes)
	return r
}

func testDish(id, name, price, category string, available bool) database.Dish {
	return database.Dish{
		ID:          id,
		Name:        name,
		Price:       decimal.RequireFromString(price),
		Category:    category,
		IsAvailable: available,
		ServingSize: "Single Serving",
	}
}

func sampleMenu() *mockDishStore {
	return newMockDishStore(
		testDish("burger", "Zinger Burger", "650", "Burgers", true),
		testDish("fries", "French Fries", "150", "Sides", true),
		testDish("pizza", "Chicken Pizza", "899.5", "Pizza", false),
	)
}

// --- List tests ---

func TestDishList_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"Zinger Burger", "French Fries", "Chicken Pizza"}},
		{"category", "?category=Sides", []string{"French Fries"}},
		{"category All", "?category=All", []string{"Zinger Burger", "French Fries", "Chicken Pizza"}},
		{"available only", "?available=true", []string{"Zinger Burger", "French Fries"}},
		{"unavailable pizza", "?category=Pizza&available=false", []string{"Chicken Pizza"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupDishRouter(sampleMenu())
			rr := doRequest(t, r, "GET", "/dishes"+tt.query, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
			}
			resp := decodeListResponse(t, rr)
			if len(resp) != len(tt.want) {
				t.Fatalf("count: got %d, want %d", len(resp), len(tt.want))
			}
			for i, name := range tt.want {
				if resp[i]["name"] != name {
					t.Errorf("dish %d: got %v, want %s", i, resp[i]["name"], name)
				}
			}
		})
	}
}

func TestDishList_BadFilters(t *testing.T) {
	r := setupDishRouter(sampleMenu())
	for _, q := range []string{"?category=Sushi", "?available=maybe"} {
		rr := doRequest(t, r, "GET", "/dishes"+q, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestDishList_StoreError(t *testing.T) {
	store := sampleMenu()
	store.listErr = errors.New("connection reset")
	r := setupDishRouter(store)

	rr := doRequest(t, r, "GET", "/dishes", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

// --- Get tests ---

func TestDishGet(t *testing.T) {
	r := setupDishRouter(sampleMenu())

	rr := doRequest(t, r, "GET", "/dishes/pizza", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["price"] != "899.50" {
		t.Errorf("price: got %v, want 899.50", resp["price"])
	}
	if resp["is_available"] != false {
		t.Errorf("is_available: got %v, want false", resp["is_available"])
	}

	rr = doRequest(t, r, "GET", "/dishes/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing dish: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Create tests ---

func TestDishCreate_Defaults(t *testing.T) {
	store := newMockDishStore()
	r := setupDishRouter(store)

	rr := doRequest(t, r, "POST", "/dishes", map[string]interface{}{
		"name":     "  Chocolate Lava Cake ",
		"price":    "350",
		"category": "Desserts",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["name"] != "Chocolate Lava Cake" {
		t.Errorf("name should be trimmed: got %q", resp["name"])
	}
	if resp["price"] != "350.00" {
		t.Errorf("price: got %v", resp["price"])
	}
	if resp["is_available"] != true {
		t.Error("new dishes should default to available")
	}
	if resp["serving_size"] != "Single Serving" {
		t.Errorf("serving_size: got %v", resp["serving_size"])
	}
	if len(store.dishes) != 1 {
		t.Errorf("store: got %d dishes, want 1", len(store.dishes))
	}
}

func TestDishCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]interface{}
		wantErr string
	}{
		{"missing name", map[string]interface{}{"price": "10", "category": "Sides"}, "name is required"},
		{"blank name", map[string]interface{}{"name": "  ", "price": "10", "category": "Sides"}, "name is required"},
		{"missing price", map[string]interface{}{"name": "Tea", "category": "Beverages"}, "price is required"},
		{"bad price", map[string]interface{}{"name": "Tea", "price": "ten", "category": "Beverages"}, "invalid price"},
		{"negative price", map[string]interface{}{"name": "Tea", "price": "-1", "category": "Beverages"}, "price must be >= 0"},
		{"missing category", map[string]interface{}{"name": "Tea", "price": "10"}, "category is required"},
		{"unknown category", map[string]interface{}{"name": "Tea", "price": "10", "category": "Drinks"}, "invalid category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockDishStore()
			r := setupDishRouter(store)
			rr := doRequest(t, r, "POST", "/dishes", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if resp := decodeResponse(t, rr); resp["error"] != tt.wantErr {
				t.Errorf("error: got %v, want %s", resp["error"], tt.wantErr)
			}
			if len(store.dishes) != 0 {
				t.Error("invalid dish must not reach the store")
			}
		})
	}
}

// --- Update / availability / delete tests ---

func TestDishUpdate(t *testing.T) {
	store := sampleMenu()
	r := setupDishRouter(store)

	rr := doRequest(t, r, "PUT", "/dishes/fries", map[string]interface{}{
		"name":         "Loaded Fries",
		"price":        "220",
		"category":     "Sides",
		"is_available": false,
		"serving_size": "Family Pack",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	got := store.dishes["fries"]
	if got.Name != "Loaded Fries" || !got.Price.Equal(decimal.NewFromInt(220)) || got.IsAvailable || got.ServingSize != "Family Pack" {
		t.Errorf("stored dish: %+v", got)
	}

	rr = doRequest(t, r, "PUT", "/dishes/ghost", map[string]interface{}{
		"name": "Ghost", "price": "1", "category": "Sides",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing dish: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDishSetAvailability(t *testing.T) {
	store := sampleMenu()
	r := setupDishRouter(store)

	rr := doRequest(t, r, "PATCH", "/dishes/pizza/availability", map[string]bool{"is_available": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if !store.dishes["pizza"].IsAvailable {
		t.Error("pizza should now be available")
	}

	rr = doRequest(t, r, "PATCH", "/dishes/pizza/availability", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing field: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDishDelete(t *testing.T) {
	store := sampleMenu()
	r := setupDishRouter(store)

	rr := doRequest(t, r, "DELETE", "/dishes/burger", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if _, ok := store.dishes["burger"]; ok {
		t.Error("burger should be deleted")
	}

	rr = doRequest(t, r, "DELETE", "/dishes/burger", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Categories ---

func TestCategoryList_Counts(t *testing.T) {
	store := sampleMenu()
	store.put(testDish("cola", "Cola", "90", "Beverages", true))
	store.put(testDish("pepperoni", "Pepperoni Pizza", "950", "Pizza", true))

	h := handler.NewCategoryHandler(store)
	r := chi.NewRouter()
	r.Route("/categories", h.RegisterRoutes)

	rr := doRequest(t, r, "GET", "/categories", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeListResponse(t, rr)
	if len(resp) != 6 {
		t.Fatalf("categories: got %d, want 6", len(resp))
	}
	want := map[string][2]float64{
		"Pizza":     {2, 1},
		"Pasta":     {0, 0},
		"Burgers":   {1, 1},
		"Desserts":  {0, 0},
		"Beverages": {1, 1},
		"Sides":     {1, 1},
	}
	for _, c := range resp {
		name := c["name"].(string)
		w := want[name]
		if c["dish_count"] != w[0] || c["available_count"] != w[1] {
			t.Errorf("%s: got %v/%v, want %v/%v", name, c["dish_count"], c["available_count"], w[0], w[1])
		}
	}
	if resp[0]["name"] != "Pizza" || resp[5]["name"] != "Sides" {
		t.Error("categories should keep menu order")
	}
}
