// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator runs the TeaDesk HTTP server.
//
// The orchestrator wires the referral engine and the chat router into
// HTTP routes, and owns the process-level concerns around them: tracing,
// the idle-session scheduler and graceful shutdown.
//
// # Usage
//
//	svc, err := orchestrator.New(orchestrator.Config{Port: 12310}, orchestrator.Deps{
//	    Engine:  engine,
//	    Router:  rt,
//	    Metrics: metrics,
//	})
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
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
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/handlers"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/observability"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/routes"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/ttl"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/router"
)

// serviceName is the OpenTelemetry service name.
const serviceName = "teadesk"

// =============================================================================
// Interface
// =============================================================================

// Service is a runnable TeaDesk server.
type Service interface {
	// Run serves until ctx is cancelled, then shuts down gracefully.
	Run(ctx context.Context) error

	// Router returns the Gin engine for tests.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds server settings. Zero fields take defaults.
//
// # Fields
//
//   - Host, Port: Listen address. Default: 127.0.0.1:12310.
//   - GinMode: gin.ReleaseMode, gin.DebugMode or gin.TestMode.
//   - OTelEndpoint: OTLP gRPC collector. Empty disables tracing export.
//   - APIToken: Bearer token for /v1. Empty leaves the API open.
//   - MaxConcurrentChats: Chat messages handled at once. Default: 8.
//   - Sessions: Idle chat-session expiry.
//   - ShutdownTimeout: Grace period for in-flight requests. Default: 10s.
type Config struct {
	Host               string
	Port               int
	GinMode            string
	OTelEndpoint       string
	APIToken           string
	MaxConcurrentChats int
	Sessions           ttl.SchedulerConfig
	ShutdownTimeout    time.Duration
}

// Deps are the domain services the server exposes.
type Deps struct {
	Engine  *referral.Engine
	Router  *router.Router
	Metrics *observability.Metrics

	// Gatherer backs /metrics. Nil selects prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.GinMode == "" {
		cfg.GinMode = gin.ReleaseMode
	}
	if cfg.MaxConcurrentChats <= 0 {
		cfg.MaxConcurrentChats = handlers.DefaultMaxConcurrentChats
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	def := ttl.DefaultSchedulerConfig()
	if cfg.Sessions.Interval <= 0 {
		cfg.Sessions.Interval = def.Interval
	}
	if cfg.Sessions.IdleTTL <= 0 {
		cfg.Sessions.IdleTTL = def.IdleTTL
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	deps          Deps
	router        *gin.Engine
	scheduler     *ttl.Scheduler
	tracerCleanup func(context.Context)
}

// New builds the server.
//
// # Description
//
// Sets up tracing (when an OTLP endpoint is configured), the Gin router
// with otelgin middleware, and the idle-session scheduler. Nothing
// listens until Run.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Missing dependencies or tracer setup failure.
func New(cfg Config, deps Deps) (Service, error) {
	if deps.Engine == nil || deps.Router == nil {
		return nil, errors.New("orchestrator: engine and router are required")
	}

	s := &service{
		config: applyConfigDefaults(cfg),
		deps:   deps,
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	s.scheduler = ttl.NewScheduler(deps.Router.Sessions(), s.config.Sessions, slog.Default())
	s.initRouter()
	return s, nil
}

// Run serves HTTP until ctx is cancelled.
//
// # Description
//
// Starts the session scheduler, then the HTTP server. On cancellation the
// server stops accepting connections and gives in-flight requests
// ShutdownTimeout to finish before the scheduler and tracer stop.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting TeaDesk server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down TeaDesk server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// initTracer exports spans to the configured OTLP collector.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close OTLP connection", "error", err)
		}
	}

	slog.Info("Tracing enabled", "endpoint", s.config.OTelEndpoint)
	return cleanup, nil
}

func (s *service) initRouter() {
	gin.SetMode(s.config.GinMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	if s.config.GinMode == gin.DebugMode {
		s.router.Use(gin.Logger())
	}
	s.router.Use(otelgin.Middleware(serviceName))

	routes.SetupRoutes(s.router, routes.Deps{
		Engine:   s.deps.Engine,
		Router:   s.deps.Router,
		Gate:     handlers.NewChatGate(s.config.MaxConcurrentChats, s.deps.Metrics),
		Gatherer: s.deps.Gatherer,
		APIToken: s.config.APIToken,
	})
}

func (s *service) cleanup() {
	s.scheduler.Stop()
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// Compile-time interface check
var _ Service = (*service)(nil)
