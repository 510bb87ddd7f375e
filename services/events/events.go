// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package events publishes referral domain events for downstream consumers
// (loyalty mailers, the till, reporting).
//
// Publishing is best effort. The referral engine logs publish failures and
// never rolls back a committed registration or redemption because of one.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the event type. It doubles as the AMQP routing key.
type Kind string

const (
	KindCustomerRegistered Kind = "customer.registered"
	KindReferralRedeemed   Kind = "referral.redeemed"
	KindDiscountEarned     Kind = "discount.earned"
)

// Event is one domain event.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`

	// CustomerID is the customer the event is about: the new customer for
	// customer.registered, the code owner otherwise.
	CustomerID string `json:"customer_id"`

	// Code and RedeemedBy are set for referral.redeemed.
	Code       string `json:"code,omitempty"`
	RedeemedBy string `json:"redeemed_by,omitempty"`

	// ReferralCount is the owner's count after the event.
	ReferralCount int `json:"referral_count"`
}

// New returns an event with a fresh id.
func New(kind Kind, customerID string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: at.UTC(),
		CustomerID: customerID,
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// Observe wraps p and calls hook after every publish attempt.
func Observe(p Publisher, hook func(kind Kind, err error)) Publisher {
	return observed{Publisher: p, hook: hook}
}

type observed struct {
	Publisher
	hook func(Kind, error)
}

func (o observed) Publish(ctx context.Context, ev Event) error {
	err := o.Publisher.Publish(ctx, ev)
	o.hook(ev.Kind, err)
	return err
}
