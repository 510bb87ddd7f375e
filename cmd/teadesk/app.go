// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/TeaDesk/cmd/teadesk/config"
	"github.com/AleutianAI/TeaDesk/pkg/logging"
	"github.com/AleutianAI/TeaDesk/services/classifier"
	"github.com/AleutianAI/TeaDesk/services/events"
	"github.com/AleutianAI/TeaDesk/services/llm"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/observability"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/router"
	"github.com/AleutianAI/TeaDesk/services/store"
	"github.com/AleutianAI/TeaDesk/services/store/badgerstore"
	"github.com/AleutianAI/TeaDesk/services/store/sqlitestore"
)

// app holds everything a command needs, built once from the config.
type app struct {
	cfg      config.TeaDeskConfig
	logger   *logging.Logger
	store    store.Store
	events   events.Publisher
	engine   *referral.Engine
	router   *router.Router
	metrics  *observability.Metrics
	registry *prometheus.Registry
}

// appOptions tweak buildApp for the command being run.
type appOptions struct {
	// registry receives the metrics. Nil uses a private registry.
	registry *prometheus.Registry

	// withBackend connects the conversational backend. Commands that
	// never chat skip it.
	withBackend bool
}

// buildApp opens the store, the event publisher and, when asked, the
// backend. Callers must Close the app.
func buildApp(ctx context.Context, cfg config.TeaDeskConfig, opts appOptions) (*app, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "teadesk",
		Format:  logging.Format(cfg.Logging.Format),
	})
	slog.SetDefault(logger.Slog())

	a := &app{cfg: cfg, logger: logger}

	reg := opts.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	a.registry = reg
	a.metrics = observability.NewMetrics(reg)

	if a.store, err = openStore(cfg.Store, logger.Slog()); err != nil {
		a.Close()
		return nil, err
	}

	a.events = events.Nop{}
	if cfg.Events.URL != "" {
		mq, err := events.DialRabbitMQ(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			logger.Warn("event publishing disabled", "error", err)
		} else {
			a.events = mq
		}
	}
	publisher := events.Observe(a.events, func(kind events.Kind, err error) {
		a.metrics.RecordEvent(string(kind), err)
	})

	a.engine, err = referral.NewEngine(a.store, cfg.Referral,
		referral.WithPublisher(publisher),
		referral.WithLogger(logger.Slog()))
	if err != nil {
		a.Close()
		return nil, err
	}

	var backend llm.Backend = llm.Disabled{}
	if opts.withBackend {
		backend, err = openBackend(ctx, cfg.Backend, a.metrics, logger.Slog())
		if err != nil {
			logger.Warn("conversational backend disabled; data questions still work", "error", err)
			backend = llm.Disabled{}
		}
	}

	a.router = router.New(a.engine, classifier.New(), backend,
		router.WithConfig(cfg.Router),
		router.WithLogger(logger.Slog()),
		router.WithObserver(func(r router.Reply) {
			a.metrics.RecordReply(r.Intent.String(), string(r.Source))
		}))
	return a, nil
}

// Close releases the store, the publisher and the log file.
func (a *app) Close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.logger.Close())
	return errors.Join(errs...)
}

func openStore(cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	path := logging.ExpandPath(cfg.Path)
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using the in-memory store; records are lost on exit")
		return store.NewMemoryStore(), nil
	case config.DriverBadger:
		bc := badgerstore.DefaultConfig(path)
		bc.Logger = logger
		st, err := badgerstore.Open(bc)
		if err != nil {
			return nil, fmt.Errorf("open badger store at %s: %w", path, err)
		}
		return st, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		st, err := sqlitestore.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store at %s: %w", path, err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// openBackend builds the configured provider wrapped in llm.Resilient.
func openBackend(ctx context.Context, cfg config.BackendConfig, metrics *observability.Metrics, logger *slog.Logger) (llm.Backend, error) {
	var next llm.Backend
	switch cfg.Provider {
	case config.ProviderNone, "":
		return llm.Disabled{}, nil
	case config.ProviderOpenAI:
		oc, err := llm.OpenAIConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		oc.BaseURL = cfg.BaseURL
		oc.MaxTokens = cfg.MaxTokens
		oc.Temperature = cfg.Temperature
		client, err := llm.NewOpenAIClient(oc)
		if err != nil {
			return nil, err
		}
		next = client
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		next = client
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Provider)
	}

	logger.Info("conversational backend ready", "provider", cfg.Provider, "model", cfg.Model)
	return llm.NewResilient(next, llm.ResilientConfig{
		Timeout:       cfg.Timeout,
		MaxRetries:    cfg.MaxRetries,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
	}, metrics.RecordBackendCall, logger), nil
}
