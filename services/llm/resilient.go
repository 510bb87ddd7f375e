// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// ResilientConfig bounds calls to a Backend.
type ResilientConfig struct {
	// Timeout applies to each attempt. Default 15s.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transient
	// failure. Capped at 1.
	MaxRetries int

	// RatePerSecond and Burst configure the client-side limiter.
	// RatePerSecond <= 0 disables it.
	RatePerSecond float64
	Burst         int
}

// DefaultResilientConfig returns 15s per attempt, one retry, 3 req/s.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout:       15 * time.Second,
		MaxRetries:    1,
		RatePerSecond: 3,
		Burst:         3,
	}
}

// Observer is told the outcome of every attempt.
type Observer func(status string, elapsed time.Duration)

// Resilient wraps a Backend with a per-attempt timeout, a capped retry
// on transient errors and a rate limiter.
//
// # Thread Safety
//
// Safe for concurrent use if the wrapped Backend is.
type Resilient struct {
	next       Backend
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	observe    Observer
	logger     *slog.Logger
}

// NewResilient wraps next. observe may be nil.
func NewResilient(next Backend, cfg ResilientConfig, observe Observer, logger *slog.Logger) *Resilient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries > 1 {
		cfg.MaxRetries = 1
	}
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resilient{
		next:       next,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		observe:    observe,
		logger:     logger,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return r
}

// Complete implements Backend.
func (r *Resilient) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		reply, err := r.attempt(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !Retryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < r.maxRetries {
			r.logger.Warn("conversational backend failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
		}
	}
	return "", lastErr
}

func (r *Resilient) attempt(ctx context.Context, req Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if r.limiter != nil {
		if err := r.limiter.Wait(attemptCtx); err != nil {
			// Wait fails early when the deadline would pass before a token
			// frees up.
			err = fmt.Errorf("%w: waiting for rate limiter: %w", ErrBackendRateLimited, err)
			r.observe(Status(err), time.Since(start))
			return "", err
		}
	}

	reply, err := r.next.Complete(attemptCtx, req)
	if err != nil && !errors.Is(err, ErrBackendTimeout) && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: no reply within %s: %w", ErrBackendTimeout, r.timeout, err)
	}
	r.observe(Status(err), time.Since(start))
	return reply, err
}

var _ Backend = (*Resilient)(nil)
