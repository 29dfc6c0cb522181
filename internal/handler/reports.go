package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yourbite/pos-api/internal/analytics"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/export"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	ListOrders(ctx context.Context) ([]database.Order, error)
}

// ReportsHandler handles dashboard report endpoints. Day and hour buckets
// use loc.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore, loc *time.Location) *ReportsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ReportsHandler{store: store, loc: loc, now: time.Now}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/daily", h.Daily)
	r.Get("/hourly", h.Hourly)
	r.Get("/weekly", h.Weekly)
	r.Get("/top-items", h.TopItems)
	r.Get("/export.csv", h.ExportCSV)
}

// --- Response types ---

type summaryResponse struct {
	Window          string            `json:"window"`
	TotalOrders     int               `json:"total_orders"`
	TotalSales      string            `json:"total_sales"`
	TotalItems      int64             `json:"total_items"`
	AvgOrderValue   string            `json:"avg_order_value"`
	RevenueByStatus map[string]string `json:"revenue_by_status"`
	OrdersByStatus  map[string]int    `json:"orders_by_status"`
}

type dailyResponse struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Orders  int    `json:"orders"`
	Revenue string `json:"revenue"`
	Items   int64  `json:"items"`
}

type hourlyResponse struct {
	Hour    int    `json:"hour"`
	Label   string `json:"label"`
	Orders  int    `json:"orders"`
	Revenue string `json:"revenue"`
}

type weeklyResponse struct {
	Day     string `json:"day"`
	Orders  int    `json:"orders"`
	Revenue string `json:"revenue"`
	Items   int64  `json:"items"`
}

type topItemResponse struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Revenue  string `json:"revenue"`
	Orders   int    `json:"orders"`
}

// --- Helpers ---

// windowOrders loads all orders and keeps those inside ?window=. It writes
// the error response itself and returns false on failure.
func (h *ReportsHandler) windowOrders(w http.ResponseWriter, r *http.Request) (analytics.Window, []database.Order, bool) {
	win, err := analytics.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidWindow) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window must be one of today, week, month, all"})
			return "", nil, false
		}
		writeInternalError(w, "parse window", err)
		return "", nil, false
	}

	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		writeInternalError(w, "list orders for report", err)
		return "", nil, false
	}

	return win, analytics.FilterByWindow(orders, win, h.now().In(h.loc)), true
}

// --- Handlers ---

// Summary returns totals, average order value and per-status breakdowns.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	win, orders, ok := h.windowOrders(w, r)
	if !ok {
		return
	}

	s := analytics.Summarize(orders)
	resp := summaryResponse{
		Window:          string(win),
		TotalOrders:     s.TotalOrders,
		TotalSales:      money(s.TotalSales),
		TotalItems:      s.TotalItems,
		AvgOrderValue:   money(s.AvgOrderValue),
		RevenueByStatus: make(map[string]string, len(s.RevenueByStatus)),
		OrdersByStatus:  s.OrdersByStatus,
	}
	for st, rev := range s.RevenueByStatus {
		resp.RevenueByStatus[st] = money(rev)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Daily returns per-day totals for the most recent active days.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	_, orders, ok := h.windowOrders(w, r)
	if !ok {
		return
	}

	days := analytics.Daily(orders, h.loc)
	resp := make([]dailyResponse, len(days))
	for i, d := range days {
		resp[i] = dailyResponse{
			Date:    d.Date.Format(time.DateOnly),
			Label:   d.Label,
			Orders:  d.Orders,
			Revenue: money(d.Revenue),
			Items:   d.Items,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Hourly returns per-hour totals for hours that had orders.
func (h *ReportsHandler) Hourly(w http.ResponseWriter, r *http.Request) {
	_, orders, ok := h.windowOrders(w, r)
	if !ok {
		return
	}

	hours := analytics.Hourly(orders, h.loc)
	resp := make([]hourlyResponse, len(hours))
	for i, hs := range hours {
		resp[i] = hourlyResponse{
			Hour:    hs.Hour,
			Label:   hs.Label,
			Orders:  hs.Orders,
			Revenue: money(hs.Revenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Weekly returns per-weekday totals, Sunday first.
func (h *ReportsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	_, orders, ok := h.windowOrders(w, r)
	if !ok {
		return
	}

	days := analytics.Weekly(orders, h.loc)
	resp := make([]weeklyResponse, len(days))
	for i, d := range days {
		resp[i] = weeklyResponse{
			Day:     d.Day,
			Orders:  d.Orders,
			Revenue: money(d.Revenue),
			Items:   d.Items,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// TopItems returns dishes ranked by revenue.
func (h *ReportsHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	_, orders, ok := h.windowOrders(w, r)
	if !ok {
		return
	}

	items := analytics.TopItems(orders)
	resp := make([]topItemResponse, len(items))
	for i, it := range items {
		resp[i] = topItemResponse{
			Name:     it.Name,
			Quantity: it.Quantity,
			Revenue:  money(it.Revenue),
			Orders:   it.Orders,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExportCSV streams every order as a CSV attachment, newest first.
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		writeInternalError(w, "list orders for export", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.now().In(h.loc))+`"`)
	w.WriteHeader(http.StatusOK)
	if err := export.WriteOrdersCSV(w, orders, h.loc); err != nil {
		log.Printf("ERROR: write orders csv: %v", err)
	}
}
