package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/fulfillment"
	"github.com/ariefcatur/go-retail-orders/internal/httpx"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/memstore"
	"github.com/ariefcatur/go-retail-orders/internal/observability"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/outbox"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/ariefcatur/go-retail-orders/internal/pricing"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		log.Fatal("otel init", "error", err)
	}

	var (
		store     orders.Store
		cache     redisx.Cache
		outboxSrc orders.OutboxStore
		cleanup   []func()
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = memstore.NewSeeded()
		cache = redisx.NewMemory()
		log.Warn("memory store in use; data is lost on exit and events are not relayed")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("db connect", "error", err)
		}
		cleanup = append(cleanup, db.Close)
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, db, log); err != nil {
				log.Fatal("migrate", "error", err)
			}
		}
		repo := &orders.Repo{DB: db}
		store, outboxSrc = repo, repo

		rc := redisx.NewCache(redisx.New(cfg.RedisAddr))
		cleanup = append(cleanup, func() { _ = rc.Close() })
		cache = rc
	}
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	coord := fulfillment.NewCoordinator(
		store,
		inventory.NewLedger(log),
		pricing.NewCalculator(cfg.TaxRate),
		log,
		fulfillment.WithProducerName(cfg.ServiceName),
	)

	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{
		Placer:  coord,
		Orders:  store,
		Cache:   cache,
		Log:     log,
		Timeout: cfg.OrderTimeout,
	}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "order-api"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if outboxSrc != nil {
		prod := kafkax.NewProducer(cfg.KafkaBrokers, log)
		relay := outbox.NewRelay(outboxSrc, prod, cfg.OutboxBatchSize, cfg.OutboxPollInterval, log)
		g.Go(func() error {
			defer prod.Close()
			return relay.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("api exited", "error", err)
	}

	otelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownOTel(otelCtx); err != nil {
		log.Warn("otel shutdown", "error", err)
	}
}
