// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

func customer(id string, count int, registered time.Time, seq uint64) store.Customer {
	return store.Customer{
		ID:            id,
		Name:          id,
		RegisteredAt:  registered,
		Seq:           seq,
		Codes:         []string{id + "R1", id + "R2", id + "R3"},
		ReferralCount: count,
	}
}

func ids(customers []store.Customer) []string {
	out := make([]string, len(customers))
	for i, c := range customers {
		out[i] = c.ID
	}
	return out
}

func TestTopReferrers_TieBreakByRegistration(t *testing.T) {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	customers := []store.Customer{
		customer("LATE", 2, day.Add(72*time.Hour), 4),
		customer("EARLY", 2, day.Add(24*time.Hour), 2),
		customer("TOP", 3, day.Add(96*time.Hour), 5),
		customer("ZERO", 0, day, 1),
		customer("SAMEB", 1, day.Add(48*time.Hour), 3),
		customer("SAMEA", 1, day.Add(48*time.Hour), 6),
	}

	assert.Equal(t, []string{"TOP", "EARLY", "LATE", "SAMEB", "SAMEA"}, ids(TopReferrers(customers, 5)))
	assert.Equal(t, []string{"TOP", "EARLY"}, ids(TopReferrers(customers, 2)))
	// Input order is untouched.
	assert.Equal(t, "LATE", customers[0].ID)
}

func TestRecentCustomers(t *testing.T) {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var customers []store.Customer
	for i := 1; i <= 7; i++ {
		customers = append(customers, customer(fmt.Sprintf("C%d", i), 0, day.Add(time.Duration(i)*time.Hour), uint64(i)))
	}
	assert.Equal(t, []string{"C7", "C6", "C5", "C4", "C3"}, ids(RecentCustomers(customers, 5)))
	assert.Equal(t, []string{"C2", "C1"}, ids(RecentCustomers(customers[:2], 5)))
}

func TestSummarize(t *testing.T) {
	policy := referral.DefaultPolicy()
	now := time.Now()
	s := Summarize([]store.Customer{
		customer("A", 3, now, 1),
		customer("B", 1, now, 2),
		customer("C", 0, now, 3),
		customer("D", 0, now, 4),
	}, policy)

	assert.Equal(t, Stats{Customers: 4, WithDiscount: 1, TotalCodes: 12, UsedCodes: 4, AvailableCodes: 8}, s)
	assert.InDelta(t, 25.0, s.DiscountRate(), 0.001)
	assert.InDelta(t, 33.333, s.UsageRate(), 0.001)
	assert.Zero(t, Stats{}.UsageRate())
}

func TestAggregate_EmptyStore(t *testing.T) {
	r := New(newEngine(t, store.NewMemoryStore()), nil, &countingBackend{}, WithLogger(quiet))
	ctx := context.Background()

	assert.Equal(t, "You have no customers registered yet.", r.Handle(ctx, "How many customers do I have?", "").Text)
	assert.Equal(t, "No customers registered yet.", r.Handle(ctx, "top referrers", "").Text)
	assert.Equal(t, "No referral codes generated yet.", r.Handle(ctx, "referral codes", "").Text)
	assert.Contains(t, r.Handle(ctx, "stats", "").Text, "Total Customers: 0")
}

func TestAggregate_DiscountAndSuccess(t *testing.T) {
	e := newEngine(t, store.NewMemoryStore())
	ctx := context.Background()
	_, err := e.Register(ctx, referral.RegisterRequest{Name: "Sarah", Phone: "0771234567"})
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := e.Register(ctx, referral.RegisterRequest{
			Name:         fmt.Sprintf("Friend %d", i),
			Phone:        fmt.Sprintf("07700%05d", i),
			ReferralCode: fmt.Sprintf("SA4567R%d", i),
		})
		require.NoError(t, err)
	}
	r := New(e, nil, &countingBackend{}, WithLogger(quiet))

	assert.Equal(t,
		"Customers with discounts (1 out of 4):\n\n• Sarah (ID: SA4567) - 3/3 referrals completed",
		r.Handle(ctx, "Which customers with discount are there?", "").Text)

	assert.Equal(t,
		"Success Rates:\n\n• Discount Achievement Rate: 25.0%\n• Referral Code Usage Rate: 25.0%\n• Customers with Discounts: 1/4",
		r.Handle(ctx, "What's my success rate?", "").Text)

	top := r.Handle(ctx, "best referrer", "").Text
	assert.Contains(t, top, "1. Sarah - 3/3 referrals (DISCOUNT EARNED)")
}
