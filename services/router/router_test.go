// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/classifier"
	"github.com/AleutianAI/TeaDesk/services/llm"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// countingBackend records every request it receives.
type countingBackend struct {
	mu       sync.Mutex
	requests []llm.Request
	reply    string
	err      error
	delay    time.Duration
}

func (b *countingBackend) Complete(ctx context.Context, req llm.Request) (string, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	if b.delay > 0 {
		timer := time.NewTimer(b.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if b.err != nil {
		return "", b.err
	}
	return b.reply, nil
}

func (b *countingBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *countingBackend) last() llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(t *testing.T, st store.Store) *referral.Engine {
	t.Helper()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e, err := referral.NewEngine(st, referral.DefaultPolicy(),
		referral.WithLogger(quiet),
		referral.WithClock(func() time.Time {
			at = at.Add(time.Hour)
			return at
		}))
	require.NoError(t, err)
	return e
}

// seed registers Sarah Lee (SA4567), Tom (TO1111, referred by Sarah) and
// Anna (AN2222).
func seed(t *testing.T, e *referral.Engine) {
	t.Helper()
	ctx := context.Background()
	for _, req := range []referral.RegisterRequest{
		{Name: "Sarah Lee", Phone: "0771234567"},
		{Name: "Tom", Phone: "0770001111", ReferralCode: "SA4567R1"},
		{Name: "Anna", Phone: "0770002222"},
	} {
		_, err := e.Register(ctx, req)
		require.NoError(t, err)
	}
}

func newRouter(t *testing.T, backend llm.Backend, opts ...Option) *Router {
	t.Helper()
	e := newEngine(t, store.NewMemoryStore())
	seed(t, e)
	opts = append([]Option{WithLogger(quiet)}, opts...)
	return New(e, classifier.New(), backend, opts...)
}

func TestHandle_EmptyMessageIsHelp(t *testing.T) {
	b := &countingBackend{reply: "unused"}
	r := newRouter(t, b)

	reply := r.Handle(context.Background(), "   ", "s1")
	assert.Equal(t, HelpText, reply.Text)
	assert.Equal(t, SourceRules, reply.Source)
	assert.Zero(t, b.calls())
}

func TestHandle_AggregateNeverCallsBackend(t *testing.T) {
	b := &countingBackend{reply: "unused"}
	r := newRouter(t, b)
	ctx := context.Background()

	tests := []struct {
		message string
		want    string
	}{
		{"How many customers do I have?", "You have 3 customers registered in your tea business database."},
		{"who are my top referrers", "Top 3 Referrers:\n\n1. Sarah Lee - 1/3 referrals (In Progress)\n2. Tom - 0/3 referrals (In Progress)\n3. Anna - 0/3 referrals (In Progress)"},
		{"Which customers with discount are there?", "No customers have earned discounts yet out of 3 total customers."},
		{"How are the referral codes doing?", "Referral Code Status:\n\n• Total referral codes: 9\n• Used codes: 1\n• Available codes: 8\n• Usage rate: 11.1%"},
	}
	for _, tt := range tests {
		reply := r.Handle(ctx, tt.message, "s1")
		assert.Equal(t, classifier.AggregateDataQuery, reply.Intent, tt.message)
		assert.Equal(t, SourceRules, reply.Source, tt.message)
		assert.Equal(t, tt.want, reply.Text, tt.message)
	}
	assert.Zero(t, b.calls())
	assert.Zero(t, r.Sessions().Len())
}

func TestHandle_CustomerLookupIsDeterministic(t *testing.T) {
	b := &countingBackend{reply: "unused"}
	r := newRouter(t, b)

	reply := r.Handle(context.Background(), "Tell me about customer Sarah", "s1")
	assert.Equal(t, classifier.CustomerSpecificQuery, reply.Intent)
	assert.Equal(t, SourceRules, reply.Source)
	assert.Equal(t, "SA4567", reply.CustomerID)
	assert.Contains(t, reply.Text, "Sarah Lee (ID: SA4567)")
	assert.Contains(t, reply.Text, "SA4567R1: used by Tom (TO1111)")
	assert.Contains(t, reply.Text, "SA4567R2: available")
	assert.NotContains(t, reply.Text, "0771234567")
	assert.Zero(t, b.calls())
}

func TestHandle_CustomerNotFound(t *testing.T) {
	b := &countingBackend{reply: "unused"}
	r := newRouter(t, b)

	reply := r.Handle(context.Background(), "Find customer named Zed", "s1")
	assert.Equal(t, classifier.CustomerSpecificQuery, reply.Intent)
	assert.Equal(t, "No customers found matching 'Zed'.", reply.Text)
	assert.Empty(t, reply.CustomerID)
	assert.Zero(t, b.calls())
}

func TestHandle_PossessiveAndLowerCaseNames(t *testing.T) {
	b := &countingBackend{reply: "Sarah is one referral in."}
	r := newRouter(t, b)
	ctx := context.Background()

	lookup := r.Handle(ctx, "Show customer Sarah's details", "s1")
	assert.Equal(t, SourceRules, lookup.Source)
	assert.Equal(t, "SA4567", lookup.CustomerID)
	assert.Zero(t, b.calls())

	tests := []string{
		"What is customer Sarah's referral count?",
		"what is customer sarah's referral count?",
		"does customer sarah lee deserve a thank-you gift?",
	}
	for _, msg := range tests {
		reply := r.Handle(ctx, msg, "s1")
		assert.Equal(t, classifier.CustomerSpecificQuery, reply.Intent, msg)
		assert.Equal(t, SourceAI, reply.Source, msg)
		assert.Equal(t, "SA4567", reply.CustomerID, msg)
	}
	assert.Equal(t, len(tests), b.calls())
}

func TestHandle_AmbiguousNameAsksForID(t *testing.T) {
	b := &countingBackend{reply: "unused"}
	e := newEngine(t, store.NewMemoryStore())
	seed(t, e)
	_, err := e.Register(context.Background(), referral.RegisterRequest{Name: "Sarah Khan", Phone: "0775559999"})
	require.NoError(t, err)
	r := New(e, classifier.New(), b, WithLogger(quiet))
	ctx := context.Background()

	for _, msg := range []string{"Tell me about customer Sarah", "should customer sarah get a sample?"} {
		reply := r.Handle(ctx, msg, "s1")
		assert.Equal(t, classifier.CustomerSpecificQuery, reply.Intent, msg)
		assert.Equal(t, SourceRules, reply.Source, msg)
		assert.Empty(t, reply.CustomerID, msg)
		assert.Equal(t, "Several customers match 'Sarah':\n"+
			"• Sarah Lee (ID: SA4567)\n"+
			"• Sarah Khan (ID: SA9999)\n"+
			"Please ask again using the customer ID.", reply.Text, msg)
	}
	assert.Zero(t, b.calls())

	// The full name still picks one customer.
	reply := r.Handle(ctx, "Tell me about customer Sarah Khan", "s1")
	assert.Equal(t, "SA9999", reply.CustomerID)
}

func TestHandle_CustomerContextHoldsOneCustomer(t *testing.T) {
	b := &countingBackend{reply: "A tin of jasmine pearls would be a lovely thank-you."}
	r := newRouter(t, b)
	ctx := context.Background()

	// Build some history first; it must not travel with the customer question.
	r.Handle(ctx, "What tea is good for winter?", "s1")

	reply := r.Handle(ctx, "Does customer Sarah Lee deserve a thank-you gift?", "s1")
	assert.Equal(t, SourceAI, reply.Source)
	assert.Equal(t, b.reply, reply.Text)
	require.Equal(t, 2, b.calls())

	req := b.last()
	assert.Empty(t, req.History)
	cc, ok := req.Context.(CustomerContext)
	require.True(t, ok)
	assert.Equal(t, "SA4567", cc.Customer.ID)
	assert.Equal(t, 1, cc.Customer.Referrals)
	assert.Equal(t, 2, cc.Customer.CodesAvailable)

	raw, err := json.Marshal(req.Context)
	require.NoError(t, err)
	for _, other := range []string{"TO1111", "Tom", "AN2222", "Anna", "0771234567"} {
		assert.NotContains(t, string(raw), other)
	}
}

func TestHandle_OpenConversationKeepsHistory(t *testing.T) {
	b := &countingBackend{reply: "Try a roasted oolong."}
	r := newRouter(t, b)
	ctx := context.Background()

	first := r.Handle(ctx, "What tea is good for winter?", "s1")
	assert.Equal(t, classifier.OpenConversation, first.Intent)
	assert.Equal(t, SourceAI, first.Source)
	assert.Empty(t, b.last().History)
	assert.Nil(t, b.last().Context)

	r.Handle(ctx, "And for summer?", "s1")
	history := b.last().History
	require.Len(t, history, 2)
	assert.Equal(t, llm.Turn{Role: llm.RoleUser, Content: "What tea is good for winter?"}, history[0])
	assert.Equal(t, llm.RoleAssistant, history[1].Role)

	// Another session starts clean.
	r.Handle(ctx, "Hello!", "s2")
	assert.Empty(t, b.last().History)
}

func TestHandle_HistoryWindow(t *testing.T) {
	b := &countingBackend{reply: "ok"}
	r := newRouter(t, b)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		r.Handle(ctx, "Hello!", "s1")
	}
	assert.Len(t, b.last().History, DefaultConfig().HistoryTurns)
	assert.Len(t, r.Sessions().History("s1", 0), DefaultMaxHistory)
}

func TestHandle_BackendTimeoutFallsBack(t *testing.T) {
	b := &countingBackend{reply: "too late", delay: time.Second}
	slow := llm.NewResilient(b, llm.ResilientConfig{Timeout: 20 * time.Millisecond, MaxRetries: 1}, nil, quiet)
	r := newRouter(t, slow)

	start := time.Now()
	reply := r.Handle(context.Background(), "What tea is good for winter?", "s1")
	assert.Equal(t, ApologyText, reply.Text)
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 2, b.calls())
	assert.Empty(t, r.Sessions().History("s1", 0))
}

func TestHandle_NoBackendKeepsDataPathsWorking(t *testing.T) {
	r := newRouter(t, nil)
	ctx := context.Background()

	assert.Equal(t, SourceRules, r.Handle(ctx, "How many customers?", "").Source)
	assert.Equal(t, SourceRules, r.Handle(ctx, "Show customer Anna", "").Source)

	open := r.Handle(ctx, "Any brewing tips?", "")
	assert.Equal(t, SourceFallback, open.Source)
	assert.Equal(t, ApologyText, open.Text)

	advice := r.Handle(ctx, "Should customer Anna get a sample?", "")
	assert.Equal(t, SourceFallback, advice.Source)
	assert.Contains(t, advice.Text, "Anna (ID: AN2222)")
}

func TestHandle_Observer(t *testing.T) {
	var seen []Reply
	r := newRouter(t, &countingBackend{reply: "hi"}, WithObserver(func(rep Reply) {
		seen = append(seen, rep)
	}))

	r.Handle(context.Background(), "How many customers?", "s1")
	r.Handle(context.Background(), "Hello!", "s1")
	require.Len(t, seen, 2)
	assert.Equal(t, SourceRules, seen[0].Source)
	assert.Equal(t, SourceAI, seen[1].Source)
}

type brokenStore struct {
	*store.MemoryStore
}

func (brokenStore) ListCustomers(context.Context) ([]store.Customer, error) {
	return nil, errors.New("disk on fire")
}

func TestHandle_StoreFailureFallsBack(t *testing.T) {
	e := newEngine(t, brokenStore{store.NewMemoryStore()})
	r := New(e, nil, &countingBackend{}, WithLogger(quiet))

	reply := r.Handle(context.Background(), "How many customers?", "s1")
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Equal(t, classifier.AggregateDataQuery, reply.Intent)
}
