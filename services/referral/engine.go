// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package referral implements the referral program: customer registration,
// referral code validation and redemption, and discount eligibility.
//
// # Description
//
// Every customer receives Policy.CodesPerCustomer single-use codes derived
// from its id (SA4567 → SA4567R1, SA4567R2, SA4567R3). Each time another
// customer redeems one of them, the owner's referral count goes up by one.
// Reaching Policy.Threshold earns the discount. Eligibility is always
// derived from the count and never stored.
//
// The Engine validates input and formats, then delegates the
// check-and-write to a store.Store in a single atomic call. Events are
// published after the store commits.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/TeaDesk/services/events"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// Engine runs the referral state machine over a store.
//
// # Thread Safety
//
// Safe for concurrent use. Serialisation of mutations is the store's job.
type Engine struct {
	store     store.Store
	policy    Policy
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPublisher sets the event publisher. Default: events.Nop.
func WithPublisher(p events.Publisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. Returns an error if policy is invalid.
func NewEngine(st store.Store, policy Policy, opts ...EngineOption) (*Engine, error) {
	if st == nil {
		return nil, errors.New("store must not be nil")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("referral policy: %w", err)
	}
	e := &Engine{
		store:     st,
		policy:    policy,
		publisher: events.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store {
	return e.store
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Name  string
	Phone string

	// ReferralCode is optional.
	ReferralCode string
}

// Registration is the outcome of a successful Register.
type Registration struct {
	Customer store.Customer
	Standing Standing

	// Credit is set when a referral code was redeemed.
	Credit *Credit
}

// Credit describes the owner side of one redemption.
type Credit struct {
	Code       string
	RedeemedBy string
	Owner      store.Customer
	Standing   Standing

	// DiscountEarned is true only for the redemption that crossed the
	// threshold.
	DiscountEarned bool
}

// CodeCheck is the result of ValidateCode for an available code.
type CodeCheck struct {
	Code  string
	Owner store.Customer
}

// Register creates a customer, optionally redeeming a referral code.
//
// # Description
//
// Name and phone are normalised first; problems are reported together as
// an *InputError. The code, when given, must be well formed. The store then
// checks uniqueness and the code's state and writes everything at once.
//
// # Outputs
//
//   - Registration: the new customer and, when a code was used, the credit.
//   - error: ErrInvalidInput, store.ErrDuplicatePhone,
//     store.ErrDuplicateCustomer or store.ErrInvalidReferralCode wrapping
//     the reason.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Registration, error) {
	name, phone, err := NormalizeRegistration(req.Name, req.Phone)
	if err != nil {
		return Registration{}, err
	}

	var code string
	if strings.TrimSpace(req.ReferralCode) != "" {
		code, err = e.policy.ParseCode(req.ReferralCode)
		if err != nil {
			return Registration{}, fmt.Errorf("%w: %w", store.ErrInvalidReferralCode, err)
		}
	}

	// The store may append a letter to id when another phone already holds
	// it; created.Customer.ID is authoritative.
	id := CustomerID(name, phone)
	now := e.now().UTC()
	created, err := e.store.CreateCustomer(ctx, store.NewCustomer{
		ID:           id,
		Name:         name,
		Phone:        phone,
		Codes:        e.policy.Codes(id),
		RegisteredAt: now,
		ReferredBy:   code,
	})
	if err != nil {
		e.logger.Info("registration rejected",
			slog.String("customer_id", id),
			slog.String("phone", MaskPhone(phone)),
			slog.String("reason", err.Error()))
		return Registration{}, err
	}

	id = created.Customer.ID
	reg := Registration{
		Customer: created.Customer,
		Standing: e.policy.Standing(created.Customer.ReferralCount),
	}
	e.logger.Info("customer registered",
		slog.String("customer_id", id),
		slog.String("referred_by", code))

	registered := events.New(events.KindCustomerRegistered, id, now)
	registered.Code = code
	e.publish(ctx, registered)

	if created.Redemption != nil {
		credit := e.credited(*created.Redemption)
		reg.Credit = &credit
		e.announce(ctx, credit, now)
	}
	return reg, nil
}

// Redeem redeems code on behalf of an existing customer who registered
// without one.
//
// Errors: store.ErrUnknownCode (also for malformed codes),
// store.ErrSelfReferral, store.ErrCodeAlreadyUsed, store.ErrCustomerNotFound,
// store.ErrAlreadyReferred.
func (e *Engine) Redeem(ctx context.Context, code, redeemerID string) (Credit, error) {
	code, err := e.policy.ParseCode(code)
	if err != nil {
		return Credit{}, err
	}
	redeemerID = strings.ToUpper(strings.TrimSpace(redeemerID))

	now := e.now().UTC()
	r, err := e.store.RecordRedemption(ctx, code, redeemerID, now)
	if err != nil {
		e.logger.Info("redemption rejected",
			slog.String("code", code),
			slog.String("redeemer", redeemerID),
			slog.String("reason", err.Error()))
		return Credit{}, err
	}

	credit := e.credited(r)
	e.announce(ctx, credit, now)
	return credit, nil
}

// ValidateCode reports whether code can be redeemed.
//
// Errors: ErrInvalidInput for an empty code, store.ErrUnknownCode,
// store.ErrCodeAlreadyUsed.
func (e *Engine) ValidateCode(ctx context.Context, code string) (CodeCheck, error) {
	if strings.TrimSpace(code) == "" {
		return CodeCheck{}, &InputError{Problems: []string{"referral code is required"}}
	}
	code, err := e.policy.ParseCode(code)
	if err != nil {
		return CodeCheck{}, err
	}
	rc, err := e.store.FindCode(ctx, code)
	if err != nil {
		return CodeCheck{}, err
	}
	if rc.Used() {
		return CodeCheck{}, fmt.Errorf("%w by %s", store.ErrCodeAlreadyUsed, rc.UsedBy)
	}
	owner, err := e.store.FindCustomer(ctx, store.FieldID, rc.OwnerID)
	if err != nil {
		return CodeCheck{}, fmt.Errorf("owner of %s: %w", code, err)
	}
	return CodeCheck{Code: code, Owner: owner}, nil
}

// Lookup resolves a free-form search term to one customer: by id when it
// looks like one, then by phone digits, then by name fragment.
func (e *Engine) Lookup(ctx context.Context, query string) (store.Customer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return store.Customer{}, &InputError{Problems: []string{"search term is required"}}
	}

	if LooksLikeID(query) {
		c, err := e.store.FindCustomer(ctx, store.FieldID, query)
		if !errors.Is(err, store.ErrCustomerNotFound) {
			return c, err
		}
	}
	if !strings.ContainsFunc(query, isLetter) && len(store.DigitsOnly(query)) >= 4 {
		c, err := e.store.FindCustomer(ctx, store.FieldPhone, query)
		if !errors.Is(err, store.ErrCustomerNotFound) {
			return c, err
		}
	}
	return e.store.FindCustomer(ctx, store.FieldName, query)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// CodeStatus is one of a customer's codes with the redeemer's name.
type CodeStatus struct {
	store.ReferralCode
	UsedByName string `json:"used_by_name,omitempty"`
}

// Report is everything the counter needs to know about one customer.
type Report struct {
	Customer store.Customer
	Standing Standing
	Codes    []CodeStatus
}

// Report looks up a customer and collects its codes and standing.
func (e *Engine) Report(ctx context.Context, query string) (Report, error) {
	c, err := e.Lookup(ctx, query)
	if err != nil {
		return Report{}, err
	}
	return e.ReportFor(ctx, c)
}

// ReportFor builds the report of an already resolved customer.
func (e *Engine) ReportFor(ctx context.Context, c store.Customer) (Report, error) {
	codes, err := e.store.CodesFor(ctx, c.ID)
	if err != nil {
		return Report{}, err
	}
	statuses := make([]CodeStatus, 0, len(codes))
	for _, rc := range codes {
		st := CodeStatus{ReferralCode: rc}
		if rc.Used() {
			if u, err := e.store.FindCustomer(ctx, store.FieldID, rc.UsedBy); err == nil {
				st.UsedByName = u.Name
			}
		}
		statuses = append(statuses, st)
	}
	return Report{
		Customer: c,
		Standing: e.policy.Standing(c.ReferralCount),
		Codes:    statuses,
	}, nil
}

func (e *Engine) credited(r store.Redemption) Credit {
	return Credit{
		Code:           r.Usage.Code,
		RedeemedBy:     r.Usage.UsedBy,
		Owner:          r.Owner,
		Standing:       e.policy.Standing(r.Owner.ReferralCount),
		DiscountEarned: !e.policy.Eligible(r.PreviousCount) && e.policy.Eligible(r.Owner.ReferralCount),
	}
}

func (e *Engine) announce(ctx context.Context, c Credit, at time.Time) {
	e.logger.Info("referral redeemed",
		slog.String("code", c.Code),
		slog.String("owner", c.Owner.ID),
		slog.String("redeemer", c.RedeemedBy),
		slog.Int("referral_count", c.Standing.Count))

	redeemed := events.New(events.KindReferralRedeemed, c.Owner.ID, at)
	redeemed.Code = c.Code
	redeemed.RedeemedBy = c.RedeemedBy
	redeemed.ReferralCount = c.Standing.Count
	e.publish(ctx, redeemed)

	if c.DiscountEarned {
		e.logger.Info("discount earned", slog.String("customer_id", c.Owner.ID))
		earned := events.New(events.KindDiscountEarned, c.Owner.ID, at)
		earned.ReferralCount = c.Standing.Count
		e.publish(ctx, earned)
	}
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("event publish failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("customer_id", ev.CustomerID),
			slog.String("error", err.Error()))
	}
}
