// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ttl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	removed int
}

func (p *fakePruner) Prune(cutoff time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.removed
}

func (p *fakePruner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(&fakePruner{}, SchedulerConfig{}, nil)
	assert.Equal(t, DefaultSchedulerConfig(), s.config)
}

func TestRunNow_UsesIdleTTL(t *testing.T) {
	p := &fakePruner{removed: 2}
	s := NewScheduler(p, SchedulerConfig{IdleTTL: time.Hour}, quiet)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.Equal(t, 2, s.RunNow())
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, now.Add(-time.Hour), p.cutoffs[0])
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	p := &fakePruner{}
	s := NewScheduler(p, SchedulerConfig{Interval: 5 * time.Millisecond}, quiet)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return p.calls() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := p.calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, p.calls())
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(&fakePruner{}, SchedulerConfig{Interval: time.Hour}, quiet)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()
	s.Stop()
}
