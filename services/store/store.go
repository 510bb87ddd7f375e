// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Store is the record store used by the referral engine and the router.
//
// # Description
//
// Store exposes lookups by unique key, insert-if-absent for customers and
// append-only redemption. Every mutation is atomic: either the customer,
// its codes, the usage record and the owner's counter are all committed,
// or nothing is.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// FindCustomer returns the customer matching value on field.
	//
	// Returns ErrCustomerNotFound when nothing matches and, for FieldName,
	// an *AmbiguousError when several customers do.
	FindCustomer(ctx context.Context, field Field, value string) (Customer, error)

	// ListCustomers returns all customers in registration order.
	ListCustomers(ctx context.Context) ([]Customer, error)

	// FindCode returns a code record. Returns ErrUnknownCode if absent.
	FindCode(ctx context.Context, code string) (ReferralCode, error)

	// CodesFor returns a customer's codes in slot order.
	CodesFor(ctx context.Context, customerID string) ([]ReferralCode, error)

	// CreateCustomer inserts a customer with its codes and, optionally,
	// redeems NewCustomer.ReferredBy in the same transaction.
	//
	// Errors: ErrDuplicatePhone, ErrDuplicateCustomer, and
	// ErrInvalidReferralCode wrapping ErrUnknownCode, ErrCodeAlreadyUsed
	// or ErrSelfReferral.
	CreateCustomer(ctx context.Context, nc NewCustomer) (Created, error)

	// RecordRedemption marks code as used by usedBy and credits the owner.
	//
	// Errors: ErrUnknownCode, ErrCustomerNotFound, ErrSelfReferral,
	// ErrCodeAlreadyUsed, ErrAlreadyReferred.
	RecordRedemption(ctx context.Context, code, usedBy string, at time.Time) (Redemption, error)

	// Close releases the underlying resources.
	Close() error
}

// SortByRegistration orders customers by registration time, then by
// creation sequence.
func SortByRegistration(customers []Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		a, b := customers[i], customers[j]
		if !a.RegisteredAt.Equal(b.RegisteredAt) {
			return a.RegisteredAt.Before(b.RegisteredAt)
		}
		return a.Seq < b.Seq
	})
}

// MatchName resolves a name fragment to exactly one customer, ignoring
// case. A customer whose whole name equals fragment wins; otherwise the
// fragment must be contained in exactly one name. customers must already
// be in registration order.
//
// Errors: ErrCustomerNotFound, or an *AmbiguousError listing every match.
func MatchName(customers []Customer, fragment string) (Customer, error) {
	needle := strings.ToLower(strings.Join(strings.Fields(fragment), " "))
	if needle == "" {
		return Customer{}, ErrCustomerNotFound
	}

	var exact, partial []Customer
	for _, c := range customers {
		name := strings.ToLower(c.Name)
		switch {
		case name == needle:
			exact = append(exact, c)
		case strings.Contains(name, needle):
			partial = append(partial, c)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return Customer{}, ErrCustomerNotFound
	case 1:
		return matches[0], nil
	default:
		return Customer{}, &AmbiguousError{Fragment: strings.TrimSpace(fragment), Matches: matches}
	}
}

// DigitsOnly strips everything except ASCII digits from a phone number.
func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCode trims and upper-cases a referral code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
