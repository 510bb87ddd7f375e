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
	"fmt"
	"strings"
	"time"
)

// Tx is the read/write view a backend exposes for one atomic mutation.
//
// # Description
//
// ApplyCreate and ApplyRedemption implement the referral invariants once,
// against this interface. Backends wrap their native transaction (a map
// under lock, a badger.Txn, an *sql.Tx) and commit only when the Apply
// function returns nil.
//
// Get methods return found=false, not an error, for missing records.
type Tx interface {
	Customer(id string) (c Customer, found bool, err error)
	CustomerIDByPhone(phone string) (id string, found bool, err error)
	Code(code string) (rc ReferralCode, found bool, err error)

	// NextSeq reserves the next creation sequence number.
	NextSeq() (uint64, error)

	// PutCustomer inserts or replaces a customer and its phone index.
	PutCustomer(c Customer) error

	// PutCode inserts or replaces a code record.
	PutCode(rc ReferralCode) error
}

// ApplyCreate registers nc inside tx.
//
// # Description
//
// All checks run before the first write, so a rejected registration
// leaves tx untouched even for backends without rollback:
//
//  1. phone free                       → ErrDuplicatePhone
//  2. id free; when another phone holds
//     nc.ID, the first free of nc.ID+"A",
//     nc.ID+"B", ... is used instead and
//     the codes are renamed to match     → ErrDuplicateCustomer when all taken
//  3. issued codes free                → ErrDuplicateCustomer
//  4. referral code (optional) exists,
//     unused, not owned by the new id  → ErrInvalidReferralCode wrapping cause
//
// # Outputs
//
//   - Created: the stored customer and, when a code was redeemed, the
//     redemption with the credited owner.
func ApplyCreate(tx Tx, nc NewCustomer) (Created, error) {
	nc.ReferredBy = NormalizeCode(nc.ReferredBy)

	if _, taken, err := tx.CustomerIDByPhone(nc.Phone); err != nil {
		return Created{}, err
	} else if taken {
		return Created{}, ErrDuplicatePhone
	}

	id, err := freeID(tx, nc.ID)
	if err != nil {
		return Created{}, err
	}
	if id != nc.ID {
		codes := make([]string, len(nc.Codes))
		for i, code := range nc.Codes {
			codes[i] = id + strings.TrimPrefix(code, nc.ID)
		}
		nc.ID, nc.Codes = id, codes
	}

	for _, code := range nc.Codes {
		if _, taken, err := tx.Code(code); err != nil {
			return Created{}, err
		} else if taken {
			return Created{}, fmt.Errorf("%w: code %s already issued", ErrDuplicateCustomer, code)
		}
	}

	var (
		refCode ReferralCode
		owner   Customer
	)
	if nc.ReferredBy != "" {
		refCode, owner, err = checkRedeemable(tx, nc.ReferredBy, nc.ID)
		if err != nil {
			return Created{}, fmt.Errorf("%w: %w", ErrInvalidReferralCode, err)
		}
	}

	seq, err := tx.NextSeq()
	if err != nil {
		return Created{}, err
	}

	customer := Customer{
		ID:           nc.ID,
		Name:         nc.Name,
		Phone:        nc.Phone,
		RegisteredAt: nc.RegisteredAt,
		Seq:          seq,
		Codes:        append([]string(nil), nc.Codes...),
		ReferredBy:   nc.ReferredBy,
		Status:       StatusActive,
	}
	if err := tx.PutCustomer(customer); err != nil {
		return Created{}, err
	}
	for i, code := range nc.Codes {
		if err := tx.PutCode(ReferralCode{Code: code, OwnerID: nc.ID, Slot: i + 1}); err != nil {
			return Created{}, err
		}
	}

	created := Created{Customer: customer}
	if nc.ReferredBy != "" {
		r, err := credit(tx, refCode, owner, nc.ID, nc.RegisteredAt)
		if err != nil {
			return Created{}, err
		}
		created.Redemption = &r
	}
	return created, nil
}

// IDSuffixes disambiguate customer ids derived from the same name prefix
// and phone digits. R is left out so an id never ends like a code slot.
const IDSuffixes = "ABCDEFGHIJKLMNOPQSTUVWXYZ"

// freeID returns base when no customer holds it, else base plus the first
// free suffix.
func freeID(tx Tx, base string) (string, error) {
	candidates := make([]string, 0, len(IDSuffixes)+1)
	candidates = append(candidates, base)
	for _, s := range IDSuffixes {
		candidates = append(candidates, base+string(s))
	}
	for _, id := range candidates {
		_, taken, err := tx.Customer(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s and every variant", ErrDuplicateCustomer, base)
}

// ApplyRedemption redeems code for an existing customer inside tx.
//
// # Description
//
// Used for customers who registered without a code. Check order:
// unknown code, self referral, code already used, unknown redeemer,
// redeemer already referred. Nothing is written unless every check passes.
func ApplyRedemption(tx Tx, code, usedBy string, at time.Time) (Redemption, error) {
	rc, owner, err := checkRedeemable(tx, NormalizeCode(code), usedBy)
	if err != nil {
		return Redemption{}, err
	}

	redeemer, found, err := tx.Customer(usedBy)
	if err != nil {
		return Redemption{}, err
	}
	if !found {
		return Redemption{}, ErrCustomerNotFound
	}
	if redeemer.ReferredBy != "" {
		return Redemption{}, fmt.Errorf("%w: used %s", ErrAlreadyReferred, redeemer.ReferredBy)
	}

	r, err := credit(tx, rc, owner, usedBy, at)
	if err != nil {
		return Redemption{}, err
	}

	redeemer.ReferredBy = rc.Code
	if err := tx.PutCustomer(redeemer); err != nil {
		return Redemption{}, err
	}
	return r, nil
}

// checkRedeemable resolves code and its owner without writing anything.
// redeemerID may name a customer that does not exist yet (registration).
func checkRedeemable(tx Tx, code, redeemerID string) (ReferralCode, Customer, error) {
	rc, found, err := tx.Code(code)
	if err != nil {
		return ReferralCode{}, Customer{}, err
	}
	if !found {
		return ReferralCode{}, Customer{}, ErrUnknownCode
	}

	owner, found, err := tx.Customer(rc.OwnerID)
	if err != nil {
		return ReferralCode{}, Customer{}, err
	}
	if !found {
		// A code without an owner means the store is corrupt.
		return ReferralCode{}, Customer{}, fmt.Errorf("owner %s of code %s missing", rc.OwnerID, rc.Code)
	}

	if rc.OwnerID == redeemerID {
		return ReferralCode{}, Customer{}, ErrSelfReferral
	}
	if rc.Used() {
		return ReferralCode{}, Customer{}, ErrCodeAlreadyUsed
	}
	return rc, owner, nil
}

func credit(tx Tx, rc ReferralCode, owner Customer, usedBy string, at time.Time) (Redemption, error) {
	rc.UsedBy = usedBy
	rc.UsedAt = at
	if err := tx.PutCode(rc); err != nil {
		return Redemption{}, err
	}

	previous := owner.ReferralCount
	owner.ReferralCount++
	if err := tx.PutCustomer(owner); err != nil {
		return Redemption{}, err
	}

	return Redemption{
		Usage:         Usage{Code: rc.Code, UsedBy: usedBy, UsedAt: at},
		Owner:         owner,
		PreviousCount: previous,
	}, nil
}
