// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backed by maps.
//
// Data is lost when the process exits. Used by tests and by
// `teadesk serve --store memory`.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]Customer
	phones    map[string]string
	codes     map[string]ReferralCode
	seq       uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]Customer),
		phones:    make(map[string]string),
		codes:     make(map[string]ReferralCode),
	}
}

func (s *MemoryStore) FindCustomer(ctx context.Context, field Field, value string) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch field {
	case FieldID:
		if c, ok := s.customers[strings.ToUpper(strings.TrimSpace(value))]; ok {
			return cloneCustomer(c), nil
		}
	case FieldPhone:
		if id, ok := s.phones[DigitsOnly(value)]; ok {
			return cloneCustomer(s.customers[id]), nil
		}
	case FieldName:
		return MatchName(s.sortedLocked(), value)
	}
	return Customer{}, ErrCustomerNotFound
}

func (s *MemoryStore) ListCustomers(ctx context.Context) ([]Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(), nil
}

func (s *MemoryStore) FindCode(ctx context.Context, code string) (ReferralCode, error) {
	if err := ctx.Err(); err != nil {
		return ReferralCode{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.codes[NormalizeCode(code)]
	if !ok {
		return ReferralCode{}, ErrUnknownCode
	}
	return rc, nil
}

func (s *MemoryStore) CodesFor(ctx context.Context, customerID string) ([]ReferralCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	out := make([]ReferralCode, 0, len(c.Codes))
	for _, code := range c.Codes {
		out = append(out, s.codes[code])
	}
	return out, nil
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, nc NewCustomer) (Created, error) {
	if err := ctx.Err(); err != nil {
		return Created{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return ApplyCreate(memTx{s}, nc)
}

func (s *MemoryStore) RecordRedemption(ctx context.Context, code, usedBy string, at time.Time) (Redemption, error) {
	if err := ctx.Err(); err != nil {
		return Redemption{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return ApplyRedemption(memTx{s}, NormalizeCode(code), usedBy, at)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sortedLocked() []Customer {
	out := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, cloneCustomer(c))
	}
	SortByRegistration(out)
	return out
}

// memTx writes straight into the maps. ApplyCreate and ApplyRedemption
// finish every check before the first write, and map writes cannot fail,
// so no rollback is needed.
type memTx struct{ s *MemoryStore }

func (t memTx) Customer(id string) (Customer, bool, error) {
	c, ok := t.s.customers[id]
	return cloneCustomer(c), ok, nil
}

func (t memTx) CustomerIDByPhone(phone string) (string, bool, error) {
	id, ok := t.s.phones[phone]
	return id, ok, nil
}

func (t memTx) Code(code string) (ReferralCode, bool, error) {
	rc, ok := t.s.codes[code]
	return rc, ok, nil
}

func (t memTx) NextSeq() (uint64, error) {
	t.s.seq++
	return t.s.seq, nil
}

func (t memTx) PutCustomer(c Customer) error {
	t.s.customers[c.ID] = cloneCustomer(c)
	t.s.phones[c.Phone] = c.ID
	return nil
}

func (t memTx) PutCode(rc ReferralCode) error {
	t.s.codes[rc.Code] = rc
	return nil
}

func cloneCustomer(c Customer) Customer {
	c.Codes = append([]string(nil), c.Codes...)
	return c
}

var _ Store = (*MemoryStore)(nil)
