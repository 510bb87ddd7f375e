// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/TeaDesk/services/classifier"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// Stats summarises the customer population.
type Stats struct {
	Customers      int
	WithDiscount   int
	TotalCodes     int
	UsedCodes      int
	AvailableCodes int
}

// DiscountRate is the share of customers with a discount, in percent.
func (s Stats) DiscountRate() float64 {
	return percent(s.WithDiscount, s.Customers)
}

// UsageRate is the share of issued codes already redeemed, in percent.
func (s Stats) UsageRate() float64 {
	return percent(s.UsedCodes, s.TotalCodes)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// Summarize computes Stats. customers must satisfy the store invariant
// that ReferralCount equals the number of the customer's used codes.
func Summarize(customers []store.Customer, policy referral.Policy) Stats {
	var s Stats
	s.Customers = len(customers)
	for _, c := range customers {
		if policy.Eligible(c.ReferralCount) {
			s.WithDiscount++
		}
		s.TotalCodes += len(c.Codes)
		s.UsedCodes += c.ReferralCount
	}
	s.AvailableCodes = s.TotalCodes - s.UsedCodes
	return s
}

// TopReferrers returns up to n customers ordered by referral count,
// highest first. Ties go to the earlier registration.
func TopReferrers(customers []store.Customer, n int) []store.Customer {
	ranked := make([]store.Customer, len(customers))
	copy(ranked, customers)
	store.SortByRegistration(ranked)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ReferralCount > ranked[j].ReferralCount
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// RecentCustomers returns the last n registrations, newest first.
func RecentCustomers(customers []store.Customer, n int) []store.Customer {
	ordered := make([]store.Customer, len(customers))
	copy(ordered, customers)
	store.SortByRegistration(ordered)
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}

// answerAggregate renders the deterministic reply for kind.
func (r *Router) answerAggregate(kind classifier.Aggregate, customers []store.Customer) string {
	policy := r.policy
	if len(customers) == 0 {
		switch kind {
		case classifier.CustomerCount:
			return "You have no customers registered yet."
		case classifier.ReferralStatus:
			return "No referral codes generated yet."
		case classifier.SuccessRates:
			return "No data available for rate calculations."
		case classifier.GeneralStats:
		default:
			return "No customers registered yet."
		}
	}

	stats := Summarize(customers, policy)
	var b strings.Builder

	switch kind {
	case classifier.CustomerCount:
		if stats.Customers == 1 {
			return "You have 1 customer registered in your tea business database."
		}
		return fmt.Sprintf("You have %d customers registered in your tea business database.", stats.Customers)

	case classifier.DiscountCustomers:
		if stats.WithDiscount == 0 {
			return fmt.Sprintf("No customers have earned discounts yet out of %d total customers.", stats.Customers)
		}
		fmt.Fprintf(&b, "Customers with discounts (%d out of %d):\n\n", stats.WithDiscount, stats.Customers)
		for _, c := range customers {
			if policy.Eligible(c.ReferralCount) {
				fmt.Fprintf(&b, "• %s (ID: %s) - %d/%d referrals completed\n", c.Name, c.ID, c.ReferralCount, policy.Threshold)
			}
		}

	case classifier.TopReferrers:
		top := TopReferrers(customers, r.cfg.TopN)
		fmt.Fprintf(&b, "Top %d Referrers:\n\n", len(top))
		for i, c := range top {
			status := "In Progress"
			if policy.Eligible(c.ReferralCount) {
				status = "DISCOUNT EARNED"
			}
			fmt.Fprintf(&b, "%d. %s - %d/%d referrals (%s)\n", i+1, c.Name, c.ReferralCount, policy.Threshold, status)
		}

	case classifier.RecentCustomers:
		recent := RecentCustomers(customers, r.cfg.RecentN)
		fmt.Fprintf(&b, "Recent customers (last %d):\n\n", len(recent))
		for _, c := range recent {
			fmt.Fprintf(&b, "• %s (ID: %s) - Registered: %s\n", c.Name, c.ID, formatDate(c))
		}

	case classifier.ReferralStatus:
		b.WriteString("Referral Code Status:\n\n")
		fmt.Fprintf(&b, "• Total referral codes: %d\n", stats.TotalCodes)
		fmt.Fprintf(&b, "• Used codes: %d\n", stats.UsedCodes)
		fmt.Fprintf(&b, "• Available codes: %d\n", stats.AvailableCodes)
		fmt.Fprintf(&b, "• Usage rate: %.1f%%\n", stats.UsageRate())

	case classifier.SuccessRates:
		b.WriteString("Success Rates:\n\n")
		fmt.Fprintf(&b, "• Discount Achievement Rate: %.1f%%\n", stats.DiscountRate())
		if stats.TotalCodes > 0 {
			fmt.Fprintf(&b, "• Referral Code Usage Rate: %.1f%%\n", stats.UsageRate())
		}
		fmt.Fprintf(&b, "• Customers with Discounts: %d/%d\n", stats.WithDiscount, stats.Customers)

	default:
		b.WriteString("Tea Business Statistics:\n\n")
		fmt.Fprintf(&b, "Total Customers: %d\n", stats.Customers)
		fmt.Fprintf(&b, "Total Referral Codes: %d\n", stats.TotalCodes)
		fmt.Fprintf(&b, "Used Referral Codes: %d\n", stats.UsedCodes)
		fmt.Fprintf(&b, "Customers with Discounts: %d\n", stats.WithDiscount)
		if stats.Customers > 0 {
			fmt.Fprintf(&b, "Discount Rate: %.1f%%\n", stats.DiscountRate())
		}
		if stats.TotalCodes > 0 {
			fmt.Fprintf(&b, "Code Usage Rate: %.1f%%\n", stats.UsageRate())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDate(c store.Customer) string {
	if c.RegisteredAt.IsZero() {
		return "Unknown"
	}
	return c.RegisteredAt.Format("2006-01-02")
}
