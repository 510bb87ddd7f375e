// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/TeaDesk/pkg/logging"
)

// DefaultPath returns ~/.teadesk/teadesk.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".teadesk", "teadesk.yaml"), nil
}

// Load reads the configuration at path, creating it with defaults when it
// does not exist. An empty path selects DefaultPath.
//
// # Description
//
// Settings missing from the file keep their default values, so an old
// file keeps working after new settings are added. A .env file in the
// working directory is loaded into the environment first; variables
// already set win over it.
//
// # Outputs
//
//   - TeaDeskConfig: Validated configuration.
//   - bool: True when the file was created by this call.
//   - error: Unreadable file, bad YAML or invalid settings.
func Load(path string) (TeaDeskConfig, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}

	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return TeaDeskConfig{}, false, err
		}
	}
	path = logging.ExpandPath(path)

	created := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return TeaDeskConfig{}, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return TeaDeskConfig{}, false, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return TeaDeskConfig{}, false, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if url := os.Getenv("TEADESK_AMQP_URL"); url != "" {
		cfg.Events.URL = url
	}
	if err := cfg.Validate(); err != nil {
		return TeaDeskConfig{}, false, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, created, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
