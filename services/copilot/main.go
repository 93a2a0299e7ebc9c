// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/samhanoun/finalround-clone-sub001/pkg/logging"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/config"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/handlers"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/latency"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/lifecycle"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/middleware"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/observability"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/report"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/routes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/store"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/suggest"
	"github.com/samhanoun/finalround-clone-sub001/services/llm"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("copilot-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "copilot",
	})
	if err != nil {
		log.Fatalf("FATAL: could not initialize logging: %v", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	if cfg.OTLPEndpoint != "" {
		cleanup, err := initTracer(cfg.OTLPEndpoint)
		if err != nil {
			log.Fatalf("FATAL: failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
	}

	db, err := store.Open(store.Config{
		Path:       cfg.DataDir,
		SyncWrites: true,
		Logger:     logger.Logger,
	})
	if err != nil {
		log.Fatalf("FATAL: could not open event store: %v", err)
	}
	defer db.Close()

	chain := llm.NewChainFromEnv()
	if !chain.IsAvailable() {
		slog.Warn("no LLM provider configured, suggestions will use fallbacks")
	}

	tracker := latency.NewTracker()
	metrics := observability.New(prometheus.DefaultRegisterer)
	manager := lifecycle.NewManager(db, cfg.HeartbeatTimeout(), logger.Logger)
	suggester := suggest.NewOrchestrator(db, chain, suggest.Config{
		TranscriptWindow: cfg.TranscriptWindow,
		Timeout:          cfg.LLMTimeout(),
	}, tracker, logger.Logger)
	reports := report.NewGenerator(db, chain, cfg.LLMTimeout(), logger.Logger)

	handler := handlers.New(db, manager, suggester, reports, tracker, metrics,
		logger.Logger, handlers.Config{PollInterval: cfg.StreamPollInterval()})

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("copilot-service"))
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	routes.Register(router, handler, middleware.NopVerifier{}, limiter)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("copilot service listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
