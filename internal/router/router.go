package router

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yourbite/pos-api/internal/checkout"
	"github.com/yourbite/pos-api/internal/config"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
	"github.com/yourbite/pos-api/internal/handler"
	"github.com/yourbite/pos-api/internal/metrics"
	mw "github.com/yourbite/pos-api/internal/middleware"
	"github.com/yourbite/pos-api/internal/service"
	"github.com/yourbite/pos-api/internal/ws"
)

// Deps are the long-lived components the routes are served from.
type Deps struct {
	Queries     *database.Queries
	Credentials handler.CredentialVerifier
	Orders      *service.OrderService
	Board       *service.Board
	Sessions    *checkout.Registry
	Hub         *ws.Hub
	Metrics     *metrics.ServerMetrics
	Gatherer    prometheus.Gatherer
	Location    *time.Location
}

// New creates a Chi router with all application routes wired up.
// Everything except /health, /metrics, /auth/* and the WebSocket endpoint
// requires a bearer token.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})
	if d.Gatherer != nil {
		r.Method("GET", "/metrics", metrics.Handler(d.Gatherer))
	}

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(d.Credentials, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireRole(enum.RoleAdmin))

		dishHandler := handler.NewDishHandler(d.Queries)
		r.Route("/dishes", dishHandler.RegisterRoutes)

		categoryHandler := handler.NewCategoryHandler(d.Queries)
		r.Route("/categories", categoryHandler.RegisterRoutes)

		checkoutHandler := handler.NewCheckoutHandler(d.Sessions, d.Queries, d.Orders)
		r.Route("/checkout/sessions", checkoutHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(d.Orders, d.Board, d.Queries)
		r.Route("/orders", orderHandler.RegisterRoutes)

		customerHandler := handler.NewCustomerHandler(d.Queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		reportsHandler := handler.NewReportsHandler(d.Queries, d.Location)
		r.Route("/reports", reportsHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
