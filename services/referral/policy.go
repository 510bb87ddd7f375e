// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package referral

import (
	"errors"
	"fmt"
)

// Policy holds the tunable constants of the referral program.
//
// # Description
//
// A customer's standing moves 0 → 1 → … → Threshold, one step per
// redemption of one of its own codes. Threshold is absorbing: the customer
// owns exactly CodesPerCustomer single-use codes, so the count can never
// pass CodesPerCustomer.
//
// Eligible is the only place discount eligibility is computed.
type Policy struct {
	// Threshold is the number of redemptions that earns the discount.
	Threshold int `yaml:"threshold" json:"threshold"`

	// CodesPerCustomer is how many codes are issued at registration.
	CodesPerCustomer int `yaml:"codes_per_customer" json:"codes_per_customer"`
}

// DefaultPolicy is three codes, discount after all three are used.
func DefaultPolicy() Policy {
	return Policy{Threshold: 3, CodesPerCustomer: 3}
}

// Validate rejects policies whose threshold can never be reached.
func (p Policy) Validate() error {
	if p.CodesPerCustomer < 1 || p.CodesPerCustomer > 9 {
		return fmt.Errorf("codes per customer must be between 1 and 9, got %d", p.CodesPerCustomer)
	}
	if p.Threshold < 1 {
		return errors.New("threshold must be at least 1")
	}
	if p.Threshold > p.CodesPerCustomer {
		return fmt.Errorf("threshold %d is unreachable with %d codes", p.Threshold, p.CodesPerCustomer)
	}
	return nil
}

// Eligible reports whether count redemptions earn the discount.
func (p Policy) Eligible(count int) bool {
	return count >= p.Threshold
}

// Standing derives a customer's position from its referral count.
func (p Policy) Standing(count int) Standing {
	remaining := p.Threshold - count
	if remaining < 0 {
		remaining = 0
	}
	return Standing{
		Count:     count,
		Threshold: p.Threshold,
		Eligible:  p.Eligible(count),
		Remaining: remaining,
	}
}

// Standing is a customer's progress toward the discount.
type Standing struct {
	Count     int  `json:"referral_count"`
	Threshold int  `json:"threshold"`
	Eligible  bool `json:"discount_earned"`
	Remaining int  `json:"remaining"`
}

// Progress is the counter-staff message for the standing.
func (s Standing) Progress() string {
	switch {
	case s.Eligible:
		return "CONGRATULATIONS! This customer has earned a discount!"
	case s.Remaining == 1:
		return "Almost there! Just 1 more referral needed for discount."
	case s.Count == 0:
		return "Encourage customer to share referral codes with friends."
	default:
		return fmt.Sprintf("Good progress! %d more referrals needed for discount.", s.Remaining)
	}
}
