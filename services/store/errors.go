// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors. None of these are transient; callers surface them
// to the user and never retry.
var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrDuplicatePhone      = errors.New("phone number already registered")
	ErrDuplicateCustomer   = errors.New("customer id already registered")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrUnknownCode         = errors.New("referral code not found")
	ErrCodeAlreadyUsed     = errors.New("referral code already used")
	ErrSelfReferral        = errors.New("customers cannot redeem their own referral code")
	ErrAlreadyReferred     = errors.New("customer was already referred")
	ErrAmbiguousCustomer   = errors.New("several customers match")
)

// AmbiguousError lists the customers a name fragment matched. It matches
// ErrAmbiguousCustomer.
type AmbiguousError struct {
	Fragment string
	Matches  []Customer
}

func (e *AmbiguousError) Error() string {
	names := make([]string, len(e.Matches))
	for i, c := range e.Matches {
		names[i] = c.Name + " (" + c.ID + ")"
	}
	return fmt.Sprintf("%d customers match %q: %s", len(e.Matches), e.Fragment, strings.Join(names, ", "))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguousCustomer
}
