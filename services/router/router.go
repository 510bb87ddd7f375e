// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router turns a chat message into a reply.
//
// # Description
//
// The Router classifies each message and picks one of three paths:
//
//   - Aggregate questions are answered from the store. No backend call.
//   - Customer questions resolve one customer. Lookup commands get the
//     deterministic profile; other questions go to the backend with a
//     context holding that customer only.
//   - Everything else goes to the backend with the recent history of the
//     session and no customer data.
//
// Backend failures never reach the caller: Handle degrades to a canned
// reply and the deterministic paths keep working without any backend.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/TeaDesk/services/classifier"
	"github.com/AleutianAI/TeaDesk/services/llm"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

var tracer = otel.Tracer("teadesk/router")

// =============================================================================
// Replies
// =============================================================================

// Source says how a reply was produced.
type Source string

const (
	SourceRules    Source = "rules"
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Reply is the outcome of Handle.
type Reply struct {
	Text      string
	Intent    classifier.Intent
	Aggregate classifier.Aggregate
	Source    Source

	// CustomerID is set when the reply is about one resolved customer.
	CustomerID string
}

// HelpText is the reply to an empty message.
const HelpText = `I can help you with your tea business! Here are some things you can ask:

Data & Statistics (fast and exact):
- "How many customers do I have?"
- "Show me general statistics"
- "What's my success rate?"
- "Who are my top referrers?"
- "Find customer named [name]"

General Chat (AI-powered):
- Ask about tea varieties and recommendations
- Get business advice and tips
- Discuss brewing techniques
- Customer service strategies`

// ApologyText replaces a conversation reply when the backend fails.
const ApologyText = "Sorry, I can't reach the assistant right now. " +
	`Data questions such as "How many customers do I have?" or "Find customer named Sarah" still work.`

// =============================================================================
// Router
// =============================================================================

// Config tunes the Router.
type Config struct {
	// TopN is the length of the top referrer list. Default 5.
	TopN int `yaml:"top_n"`

	// RecentN is the length of the recent customer list. Default 5.
	RecentN int `yaml:"recent_n"`

	// HistoryTurns is how many prior turns go to the backend. Default 6.
	HistoryTurns int `yaml:"history_turns"`

	// MaxHistory caps the turns kept per session. Default 20.
	MaxHistory int `yaml:"max_history"`
}

// DefaultConfig returns the defaults listed on Config.
func DefaultConfig() Config {
	return Config{TopN: 5, RecentN: 5, HistoryTurns: 6, MaxHistory: DefaultMaxHistory}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.RecentN <= 0 {
		c.RecentN = d.RecentN
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = d.HistoryTurns
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = d.MaxHistory
	}
	return c
}

// Option configures a Router.
type Option func(*Router)

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(r *Router) { r.cfg = cfg.withDefaults() }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithObserver registers a callback invoked with every reply.
func WithObserver(fn func(Reply)) Option {
	return func(r *Router) { r.observe = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// Router answers chat messages.
//
// # Thread Safety
//
// Safe for concurrent use.
type Router struct {
	engine     *referral.Engine
	policy     referral.Policy
	classifier *classifier.Classifier
	backend    llm.Backend
	sessions   *Sessions
	cfg        Config
	logger     *slog.Logger
	observe    func(Reply)
	now        func() time.Time
}

// New creates a Router. A nil backend behaves like llm.Disabled.
func New(engine *referral.Engine, cls *classifier.Classifier, backend llm.Backend, opts ...Option) *Router {
	if backend == nil {
		backend = llm.Disabled{}
	}
	if cls == nil {
		cls = classifier.New()
	}
	r := &Router{
		engine:     engine,
		policy:     engine.Policy(),
		classifier: cls,
		backend:    backend,
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
		observe:    func(Reply) {},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sessions = NewSessions(r.cfg.MaxHistory)
	return r
}

// Sessions returns the per-session history store.
func (r *Router) Sessions() *Sessions {
	return r.sessions
}

// Handle answers one message of a session.
//
// # Description
//
// Handle never fails: store errors and backend errors are logged and
// turned into a fallback reply. The message is classified first; see the
// package documentation for the three paths.
//
// # Inputs
//
//   - ctx: cancellation and tracing. The backend call has its own timeout.
//   - message: free text from the counter.
//   - sessionID: groups turns of one conversation. May be empty, in which
//     case no history is kept.
//
// # Outputs
//
//   - Reply: the text plus how it was produced.
func (r *Router) Handle(ctx context.Context, message, sessionID string) Reply {
	ctx, span := tracer.Start(ctx, "router.Handle",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	reply := r.route(ctx, message, sessionID)

	span.SetAttributes(
		attribute.String("intent", reply.Intent.String()),
		attribute.String("source", string(reply.Source)),
	)
	if reply.Source == SourceFallback {
		span.SetStatus(codes.Error, "fallback reply")
	}
	r.logger.Debug("message handled",
		slog.String("session_id", sessionID),
		slog.String("intent", reply.Intent.String()),
		slog.String("aggregate", reply.Aggregate.String()),
		slog.String("source", string(reply.Source)))
	r.observe(reply)
	return reply
}

func (r *Router) route(ctx context.Context, message, sessionID string) Reply {
	if strings.TrimSpace(message) == "" {
		return Reply{Text: HelpText, Intent: classifier.OpenConversation, Source: SourceRules}
	}

	c := r.classifier.Classify(ctx, message)
	switch c.Intent {
	case classifier.AggregateDataQuery:
		return r.aggregate(ctx, c)
	case classifier.CustomerSpecificQuery:
		return r.customer(ctx, message, c)
	case classifier.OpenConversation:
		return r.conversation(ctx, message, sessionID)
	default:
		r.logger.Error("unhandled intent", slog.Int("intent", int(c.Intent)))
		return Reply{Text: ApologyText, Intent: c.Intent, Source: SourceFallback}
	}
}

func (r *Router) aggregate(ctx context.Context, c classifier.Classification) Reply {
	reply := Reply{Intent: c.Intent, Aggregate: c.Aggregate, Source: SourceRules}
	customers, err := r.engine.Store().ListCustomers(ctx)
	if err != nil {
		r.logger.Error("list customers failed", slog.String("error", err.Error()))
		reply.Text = "Sorry, I couldn't read the customer records right now."
		reply.Source = SourceFallback
		return reply
	}
	reply.Text = r.answerAggregate(c.Aggregate, customers)
	return reply
}

func (r *Router) customer(ctx context.Context, message string, c classifier.Classification) Reply {
	reply := Reply{Intent: c.Intent, Source: SourceRules}

	found, err := r.resolve(ctx, c)
	if errors.Is(err, store.ErrCustomerNotFound) {
		reply.Text = fmt.Sprintf("No customers found matching '%s'.", c.Subject())
		return reply
	}
	var amb *store.AmbiguousError
	if errors.As(err, &amb) {
		reply.Text = ambiguous(amb)
		return reply
	}
	if err == nil {
		var rep referral.Report
		rep, err = r.engine.ReportFor(ctx, found)
		if err == nil {
			reply.CustomerID = found.ID
			if c.Lookup {
				reply.Text = profile(rep)
				return reply
			}
			return r.askAboutCustomer(ctx, message, rep, reply)
		}
	}

	r.logger.Error("customer lookup failed",
		slog.String("subject", c.Subject()),
		slog.String("error", err.Error()))
	reply.Text = "Sorry, I couldn't read the customer records right now."
	reply.Source = SourceFallback
	return reply
}

// askAboutCustomer forwards a question about one customer. No session
// history goes with it, so nothing but this customer reaches the prompt.
func (r *Router) askAboutCustomer(ctx context.Context, message string, rep referral.Report, reply Reply) Reply {
	text, err := r.backend.Complete(ctx, llm.Request{
		Message: message,
		Context: newCustomerContext(rep, r.now()),
	})
	if err != nil {
		r.logBackendFailure(err, reply.Intent)
		reply.Text = ApologyText + "\n\nHere is what I have on file:\n" + profile(rep)
		reply.Source = SourceFallback
		return reply
	}
	reply.Text = text
	reply.Source = SourceAI
	return reply
}

func (r *Router) conversation(ctx context.Context, message, sessionID string) Reply {
	reply := Reply{Intent: classifier.OpenConversation}

	var history []llm.Turn
	if sessionID != "" {
		history = r.sessions.History(sessionID, r.cfg.HistoryTurns)
	}
	text, err := r.backend.Complete(ctx, llm.Request{Message: message, History: history})
	if err != nil {
		r.logBackendFailure(err, reply.Intent)
		reply.Text = ApologyText
		reply.Source = SourceFallback
		return reply
	}

	if sessionID != "" {
		r.sessions.Append(sessionID,
			llm.Turn{Role: llm.RoleUser, Content: message},
			llm.Turn{Role: llm.RoleAssistant, Content: text})
	}
	reply.Text = text
	reply.Source = SourceAI
	return reply
}

func (r *Router) logBackendFailure(err error, intent classifier.Intent) {
	r.logger.Warn("conversational backend failed, using fallback",
		slog.String("intent", intent.String()),
		slog.String("status", llm.Status(err)),
		slog.String("error", err.Error()))
}
