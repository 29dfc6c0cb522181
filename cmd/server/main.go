package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yourbite/pos-api/internal/auth"
	"github.com/yourbite/pos-api/internal/checkout"
	"github.com/yourbite/pos-api/internal/config"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/docstore"
	"github.com/yourbite/pos-api/internal/events"
	"github.com/yourbite/pos-api/internal/handler"
	"github.com/yourbite/pos-api/internal/metrics"
	"github.com/yourbite/pos-api/internal/router"
	"github.com/yourbite/pos-api/internal/service"
	"github.com/yourbite/pos-api/internal/ws"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the document store
	store, err := docstore.Open(ctx, cfg.StoreDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer store.Close()
	log.Printf("Connected to %s store", cfg.StoreDriver)

	queries := database.New(store)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg)

	publisher := metrics.NewCountingPublisher(events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), m)
	defer publisher.Close()

	creds, err := auth.NewCredentials(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin credentials: %w", err)
	}

	orders := service.NewOrderService(queries, publisher)
	board := service.NewBoard(queries, publisher, service.BoardOptions{StrictStatusFlow: cfg.StrictStatusFlow})
	sessions := checkout.NewRegistry()
	hub := ws.NewHub(ws.TopicOrders, ws.TopicDishes, ws.TopicCustomers)

	board.OnChange(func(list []database.Order) {
		if err := hub.Publish(ws.TopicOrders, handler.RenderOrders(list)); err != nil {
			log.Printf("ERROR: publish orders snapshot: %v", err)
		}
	})

	dishFeed, err := queries.WatchDishes(ctx)
	if err != nil {
		return err
	}
	customerFeed, err := queries.WatchCustomers(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		if err := board.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ws.Relay(ctx, hub, ws.TopicDishes, dishFeed, handler.RenderDishes)
		return nil
	})
	g.Go(func() error {
		ws.Relay(ctx, hub, ws.TopicCustomers, customerFeed, func(list []database.Customer) any {
			sorted := append([]database.Customer(nil), list...)
			database.SortCustomersByLastOrder(sorted)
			return handler.RenderCustomers(sorted)
		})
		return nil
	})
	g.Go(func() error {
		sessions.RunSweeper(ctx, sweepInterval, cfg.SessionIdleTimeout)
		return nil
	})

	r := router.New(cfg, router.Deps{
		Queries:     queries,
		Credentials: creds,
		Orders:      orders,
		Board:       board,
		Sessions:    sessions,
		Hub:         hub,
		Metrics:     m,
		Gatherer:    reg,
		Location:    loc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
