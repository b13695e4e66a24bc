package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-retail-orders/internal/config"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/observability"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/projector"
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
		ServiceName: cfg.ServiceName + "-projector",
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		log.Fatal("otel init", "error", err)
	}

	cache := redisx.NewCache(redisx.New(cfg.RedisAddr))
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Fatal("redis ping", "addr", cfg.RedisAddr, "error", err)
	}

	p := projector.New(cache, cfg.ProjectorGroup, log)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.TopicOrderPlaced, cfg.ProjectorWorkers, log)

	log.Info("projector started",
		"group", cfg.ProjectorGroup, "topic", orders.TopicOrderPlaced, "workers", cfg.ProjectorWorkers)
	if err := cons.Start(ctx, p.HandleOrderPlaced); err != nil {
		log.Error("consumer exit", "error", err)
	}
	log.Info("projector stopped")

	otelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownOTel(otelCtx); err != nil {
		log.Warn("otel shutdown", "error", err)
	}
}
