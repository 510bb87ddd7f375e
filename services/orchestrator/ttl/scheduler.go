// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl expires idle chat sessions in the background.
package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Interfaces
// =============================================================================

// Pruner drops sessions last used before cutoff and returns how many went.
// *router.Sessions implements it.
type Pruner interface {
	Prune(cutoff time.Time) int
}

// =============================================================================
// Scheduler
// =============================================================================

// SchedulerConfig holds configuration for the session cleanup scheduler.
//
// # Fields
//
//   - Interval: How often to run a cleanup cycle. Default: 5 minutes.
//   - IdleTTL: How long a session may sit unused. Default: 30 minutes.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
	IdleTTL  time.Duration `yaml:"idle_ttl"`
}

// DefaultSchedulerConfig returns the default cleanup cadence.
//
// # Examples
//
//	config := DefaultSchedulerConfig()
//	config.IdleTTL = 2 * time.Hour
//	scheduler := NewScheduler(rt.Sessions(), config, logger)
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 5 * time.Minute,
		IdleTTL:  30 * time.Minute,
	}
}

// Scheduler periodically prunes idle sessions.
//
// # Description
//
// Uses the ticker + done channel pattern. Start launches the loop; Stop
// or cancelling the Start context ends it.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Scheduler struct {
	pruner Pruner
	config SchedulerConfig
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// NewScheduler creates a scheduler. Zero config fields take their
// defaults. logger may be nil.
func NewScheduler(pruner Pruner, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pruner: pruner,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the background cleanup loop.
//
// # Outputs
//
//   - error: Non-nil if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	s.logger.Info("session cleanup scheduler starting",
		"interval", s.config.Interval.String(),
		"idle_ttl", s.config.IdleTTL.String(),
	)
	go s.runLoop(ctx, s.done, s.stopped)
	return nil
}

// Stop ends the loop and waits for it to exit. Safe to call multiple
// times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.done)
	stopped := s.stopped
	s.running = false
	s.mu.Unlock()

	<-stopped
	s.logger.Info("session cleanup scheduler stopped")
}

// RunNow runs one cleanup cycle immediately and returns the number of
// sessions removed.
func (s *Scheduler) RunNow() int {
	removed := s.pruner.Prune(s.now().Add(-s.config.IdleTTL))
	if removed > 0 {
		s.logger.Info("idle sessions pruned", "removed", removed)
	}
	return removed
}

func (s *Scheduler) runLoop(ctx context.Context, done, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.RunNow()
		}
	}
}
