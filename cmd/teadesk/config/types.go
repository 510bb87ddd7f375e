// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the TeaDesk YAML configuration.
//
// The file lives at ~/.teadesk/teadesk.yaml unless --config points
// elsewhere, and is created with defaults on first run. API keys are never
// stored in it: they come from the environment, after a .env file in the
// working directory has been loaded.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/ttl"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/router"
)

// CurrentConfigVersion is written to new config files.
const CurrentConfigVersion = "1"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Backend providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// TeaDeskConfig is the whole configuration file.
type TeaDeskConfig struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Referral  referral.Policy `yaml:"referral"`
	Router    router.Config   `yaml:"router"`
	Backend   BackendConfig   `yaml:"backend"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures `teadesk serve`.
type ServerConfig struct {
	Host               string              `yaml:"host"`
	Port               int                 `yaml:"port"`
	GinMode            string              `yaml:"gin_mode"`
	MaxConcurrentChats int                 `yaml:"max_concurrent_chats"`
	ShutdownTimeout    time.Duration       `yaml:"shutdown_timeout"`
	Sessions           ttl.SchedulerConfig `yaml:"sessions"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	// Driver is memory, badger or sqlite.
	Driver string `yaml:"driver"`

	// Path is the Badger directory or the SQLite file. ~ is expanded.
	Path string `yaml:"path"`
}

// BackendConfig selects and tunes the conversational backend.
type BackendConfig struct {
	// Provider is openai, gemini or none.
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model,omitempty"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float32       `yaml:"temperature"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// EventsConfig configures domain event publishing. An empty URL disables
// it. TEADESK_AMQP_URL overrides URL so credentials can stay out of the
// file.
type EventsConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is a gRPC collector address. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() TeaDeskConfig {
	return TeaDeskConfig{
		Version: CurrentConfigVersion,
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               12310,
			GinMode:            "release",
			MaxConcurrentChats: 8,
			ShutdownTimeout:    10 * time.Second,
			Sessions:           ttl.DefaultSchedulerConfig(),
		},
		Store: StoreConfig{
			Driver: DriverBadger,
			Path:   "~/.teadesk/data",
		},
		Referral: referral.DefaultPolicy(),
		Router:   router.DefaultConfig(),
		Backend: BackendConfig{
			Provider:      ProviderOpenAI,
			MaxTokens:     300,
			Temperature:   0.7,
			Timeout:       15 * time.Second,
			MaxRetries:    1,
			RatePerSecond: 3,
			Burst:         3,
		},
		Events: EventsConfig{
			Exchange: "teadesk",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Dir:    "~/.teadesk/logs",
			Format: "auto",
		},
	}
}

// Validate reports every invalid setting.
func (c TeaDeskConfig) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverBadger, DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %s driver", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want memory, badger or sqlite", c.Store.Driver))
	}
	switch c.Backend.Provider {
	case ProviderNone, ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("backend.provider %q: want openai, gemini or none", c.Backend.Provider))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if err := c.Referral.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("referral: %w", err))
	}
	return errors.Join(errs...)
}
