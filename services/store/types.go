// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the record store for customers and referral codes.
//
// The store owns the uniqueness and referential invariants of the referral
// program:
//
//   - phone numbers and customer ids are unique
//   - every referral code has exactly one owner
//   - a code is redeemed at most once, and never by its owner
//   - a customer's ReferralCount equals the number of its codes in use
//
// Three implementations share the same mutation rules (see apply.go):
//
//	┌──────────────┬─────────────────────────────────────────────┐
//	│ MemoryStore  │ tests and throwaway sessions                │
//	│ badgerstore  │ default durable store (embedded KV)         │
//	│ sqlitestore  │ relational store for spreadsheet-style use  │
//	└──────────────┴─────────────────────────────────────────────┘
//
// # Thread Safety
//
// All implementations are safe for concurrent use. Mutations are serialised
// by a store-wide lock around the read-check-write sequence.
package store

import (
	"time"
)

// StatusActive is the status of every registered customer.
// Customers are archived, never deleted.
const StatusActive = "active"

// Customer is a registered customer of the shop.
//
// Discount eligibility is deliberately absent: it is derived from
// ReferralCount by the referral policy and never stored.
type Customer struct {
	// ID is derived from the name and phone at registration. Immutable.
	ID string `json:"customer_id"`

	// Name is trimmed and title-cased.
	Name string `json:"name"`

	// Phone holds digits only. Unique across all customers.
	Phone string `json:"phone"`

	// RegisteredAt is the UTC registration time.
	RegisteredAt time.Time `json:"registration_date"`

	// Seq is the store-assigned creation sequence, starting at 1.
	// Breaks ties between customers registered in the same instant.
	Seq uint64 `json:"seq"`

	// Codes are the customer's own referral codes, in slot order.
	Codes []string `json:"referral_codes"`

	// ReferredBy is the code this customer used, if any.
	ReferredBy string `json:"referred_by,omitempty"`

	// ReferralCount is how many of Codes other customers have redeemed.
	ReferralCount int `json:"referral_count"`

	Status string `json:"status"`
}

// ReferralCode is one issued code together with its usage, if any.
type ReferralCode struct {
	Code    string    `json:"code"`
	OwnerID string    `json:"owner_id"`
	Slot    int       `json:"slot"`
	UsedBy  string    `json:"used_by,omitempty"`
	UsedAt  time.Time `json:"used_at,omitempty"`
}

// Used reports whether the code has been redeemed.
func (rc ReferralCode) Used() bool {
	return rc.UsedBy != ""
}

// Usage is the append-only record of a single redemption.
type Usage struct {
	Code   string    `json:"code"`
	UsedBy string    `json:"used_by"`
	UsedAt time.Time `json:"used_at"`
}

// NewCustomer is the input to Store.CreateCustomer.
//
// The caller derives ID and Codes. When ID belongs to another customer the
// store appends the first free IDSuffixes letter to ID and to every code.
type NewCustomer struct {
	ID           string
	Name         string
	Phone        string
	Codes        []string
	RegisteredAt time.Time

	// ReferredBy is an optional code to redeem in the same transaction.
	ReferredBy string
}

// Redemption is the result of a successful redemption.
type Redemption struct {
	Usage Usage

	// Owner is the code owner after the increment.
	Owner Customer

	// PreviousCount is the owner's ReferralCount before the increment.
	PreviousCount int
}

// Created is the result of a successful registration.
type Created struct {
	Customer Customer

	// Redemption is set when NewCustomer.ReferredBy was supplied.
	Redemption *Redemption
}

// Field selects the key used by Store.FindCustomer.
type Field int

const (
	// FieldID matches the customer id exactly (case-insensitive).
	FieldID Field = iota

	// FieldPhone matches the digits-only phone exactly.
	FieldPhone

	// FieldName matches a case-insensitive name fragment that identifies
	// one customer; see MatchName.
	FieldName
)

// String returns the field name used in logs.
func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldPhone:
		return "phone"
	case FieldName:
		return "name"
	default:
		return "unknown"
	}
}
