// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storetest holds the behavioural suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Customer builds a NewCustomer with the standard three codes.
func Customer(id, name, phone string, at time.Time) store.NewCustomer {
	return store.NewCustomer{
		ID:           id,
		Name:         name,
		Phone:        phone,
		Codes:        []string{id + "R1", id + "R2", id + "R3"},
		RegisteredAt: at,
	}
}

// Run executes the contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	open := func(t *testing.T) store.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("create and find", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah Lee", "0771234567", epoch))
		require.NoError(t, err)
		assert.Nil(t, created.Redemption)
		assert.Equal(t, store.StatusActive, created.Customer.Status)
		assert.Equal(t, []string{"SA4567R1", "SA4567R2", "SA4567R3"}, created.Customer.Codes)

		byID, err := s.FindCustomer(ctx, store.FieldID, "sa4567")
		require.NoError(t, err)
		assert.Equal(t, "Sarah Lee", byID.Name)
		assert.True(t, byID.RegisteredAt.Equal(epoch))

		byPhone, err := s.FindCustomer(ctx, store.FieldPhone, "077-123-4567")
		require.NoError(t, err)
		assert.Equal(t, "SA4567", byPhone.ID)

		byName, err := s.FindCustomer(ctx, store.FieldName, "SARAH")
		require.NoError(t, err)
		assert.Equal(t, "SA4567", byName.ID)

		_, err = s.FindCustomer(ctx, store.FieldName, "nobody")
		assert.ErrorIs(t, err, store.ErrCustomerNotFound)
		_, err = s.FindCustomer(ctx, store.FieldID, "ZZ0000")
		assert.ErrorIs(t, err, store.ErrCustomerNotFound)
	})

	t.Run("codes resolve to owner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)

		codes, err := s.CodesFor(ctx, "SA4567")
		require.NoError(t, err)
		require.Len(t, codes, 3)
		for i, rc := range codes {
			assert.Equal(t, fmt.Sprintf("SA4567R%d", i+1), rc.Code)
			assert.Equal(t, i+1, rc.Slot)
			assert.Equal(t, "SA4567", rc.OwnerID)
			assert.False(t, rc.Used())
		}

		rc, err := s.FindCode(ctx, " sa4567r2 ")
		require.NoError(t, err)
		assert.Equal(t, "SA4567", rc.OwnerID)

		_, err = s.FindCode(ctx, "SA4567R9")
		assert.ErrorIs(t, err, store.ErrUnknownCode)

		_, err = s.CodesFor(ctx, "NO0000")
		assert.ErrorIs(t, err, store.ErrCustomerNotFound)
	})

	t.Run("duplicate phone creates nothing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)

		_, err = s.CreateCustomer(ctx, Customer("TO4567", "Tom", "0771234567", epoch.Add(time.Hour)))
		assert.ErrorIs(t, err, store.ErrDuplicatePhone)

		all, err := s.ListCustomers(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		_, err = s.FindCode(ctx, "TO4567R1")
		assert.ErrorIs(t, err, store.ErrUnknownCode)
	})

	t.Run("shared base id gets a suffix", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)

		sam, err := s.CreateCustomer(ctx, Customer("SA4567", "Sam", "0991234567", epoch.Add(time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, "SA4567A", sam.Customer.ID)
		assert.Equal(t, []string{"SA4567AR1", "SA4567AR2", "SA4567AR3"}, sam.Customer.Codes)

		sage, err := s.CreateCustomer(ctx, Customer("SA4567", "Sage", "0881234567", epoch.Add(2*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, "SA4567B", sage.Customer.ID)

		rc, err := s.FindCode(ctx, "SA4567AR2")
		require.NoError(t, err)
		assert.Equal(t, "SA4567A", rc.OwnerID)

		byPhone, err := s.FindCustomer(ctx, store.FieldPhone, "0991234567")
		require.NoError(t, err)
		assert.Equal(t, "SA4567A", byPhone.ID)

		original, err := s.FindCustomer(ctx, store.FieldID, "SA4567")
		require.NoError(t, err)
		assert.Equal(t, "Sarah", original.Name)
	})

	t.Run("suffixed customer can use a code of the base id", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)

		nc := Customer("SA4567", "Sam", "0991234567", epoch.Add(time.Minute))
		nc.ReferredBy = "SA4567R1"
		created, err := s.CreateCustomer(ctx, nc)
		require.NoError(t, err)
		assert.Equal(t, "SA4567A", created.Customer.ID)
		require.NotNil(t, created.Redemption)
		assert.Equal(t, 1, created.Redemption.Owner.ReferralCount)
		assert.Equal(t, "SA4567A", created.Redemption.Usage.UsedBy)
	})

	t.Run("create with code credits owner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)

		nc := Customer("TO1111", "Tom", "0770001111", epoch.Add(time.Hour))
		nc.ReferredBy = "sa4567r1"
		created, err := s.CreateCustomer(ctx, nc)
		require.NoError(t, err)
		require.NotNil(t, created.Redemption)
		assert.Equal(t, "SA4567R1", created.Customer.ReferredBy)
		assert.Equal(t, "SA4567", created.Redemption.Owner.ID)
		assert.Equal(t, 1, created.Redemption.Owner.ReferralCount)
		assert.Equal(t, 0, created.Redemption.PreviousCount)
		assert.Equal(t, "TO1111", created.Redemption.Usage.UsedBy)

		owner, err := s.FindCustomer(ctx, store.FieldID, "SA4567")
		require.NoError(t, err)
		assert.Equal(t, 1, owner.ReferralCount)

		rc, err := s.FindCode(ctx, "SA4567R1")
		require.NoError(t, err)
		assert.Equal(t, "TO1111", rc.UsedBy)
		assert.True(t, rc.UsedAt.Equal(epoch.Add(time.Hour)))
	})

	t.Run("create with bad code creates nothing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)
		first := Customer("TO1111", "Tom", "0770001111", epoch)
		first.ReferredBy = "SA4567R1"
		_, err = s.CreateCustomer(ctx, first)
		require.NoError(t, err)

		cases := []struct {
			name  string
			code  string
			cause error
		}{
			{"unknown", "ZZ9999R1", store.ErrUnknownCode},
			{"used", "SA4567R1", store.ErrCodeAlreadyUsed},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				nc := Customer("AN2222", "Anna", "0770002222", epoch)
				nc.ReferredBy = tc.code
				_, err := s.CreateCustomer(ctx, nc)
				assert.ErrorIs(t, err, store.ErrInvalidReferralCode)
				assert.ErrorIs(t, err, tc.cause)

				_, err = s.FindCustomer(ctx, store.FieldID, "AN2222")
				assert.ErrorIs(t, err, store.ErrCustomerNotFound)
			})
		}

		owner, err := s.FindCustomer(ctx, store.FieldID, "SA4567")
		require.NoError(t, err)
		assert.Equal(t, 1, owner.ReferralCount)
	})

	t.Run("redeem twice", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)
		_, err = s.CreateCustomer(ctx, Customer("TO1111", "Tom", "0770001111", epoch))
		require.NoError(t, err)
		_, err = s.CreateCustomer(ctx, Customer("AN2222", "Anna", "0770002222", epoch))
		require.NoError(t, err)

		r, err := s.RecordRedemption(ctx, "SA4567R2", "TO1111", epoch.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, r.Owner.ReferralCount)

		_, err = s.RecordRedemption(ctx, "SA4567R2", "AN2222", epoch.Add(2*time.Minute))
		assert.ErrorIs(t, err, store.ErrCodeAlreadyUsed)

		owner, err := s.FindCustomer(ctx, store.FieldID, "SA4567")
		require.NoError(t, err)
		assert.Equal(t, 1, owner.ReferralCount)

		redeemer, err := s.FindCustomer(ctx, store.FieldID, "TO1111")
		require.NoError(t, err)
		assert.Equal(t, "SA4567R2", redeemer.ReferredBy)
	})

	t.Run("self referral changes nothing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)

		_, err = s.RecordRedemption(ctx, "SA4567R1", "SA4567", epoch)
		assert.ErrorIs(t, err, store.ErrSelfReferral)

		owner, err := s.FindCustomer(ctx, store.FieldID, "SA4567")
		require.NoError(t, err)
		assert.Equal(t, 0, owner.ReferralCount)
		assert.Empty(t, owner.ReferredBy)
		rc, err := s.FindCode(ctx, "SA4567R1")
		require.NoError(t, err)
		assert.False(t, rc.Used())
	})

	t.Run("redeem errors", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)
		_, err = s.CreateCustomer(ctx, Customer("TO1111", "Tom", "0770001111", epoch))
		require.NoError(t, err)

		_, err = s.RecordRedemption(ctx, "ZZ0000R1", "TO1111", epoch)
		assert.ErrorIs(t, err, store.ErrUnknownCode)

		_, err = s.RecordRedemption(ctx, "SA4567R1", "GH0000", epoch)
		assert.ErrorIs(t, err, store.ErrCustomerNotFound)

		_, err = s.RecordRedemption(ctx, "SA4567R1", "TO1111", epoch)
		require.NoError(t, err)
		_, err = s.RecordRedemption(ctx, "SA4567R3", "TO1111", epoch)
		assert.ErrorIs(t, err, store.ErrAlreadyReferred)

		owner, err := s.FindCustomer(ctx, store.FieldID, "SA4567")
		require.NoError(t, err)
		assert.Equal(t, 1, owner.ReferralCount)
	})

	t.Run("list in registration order", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("CC3333", "Cleo", "0770003333", epoch.Add(2*time.Hour)))
		require.NoError(t, err)
		_, err = s.CreateCustomer(ctx, Customer("AA1111", "Abe", "0770001111", epoch))
		require.NoError(t, err)
		_, err = s.CreateCustomer(ctx, Customer("BB2222", "Bea", "0770002222", epoch))
		require.NoError(t, err)

		all, err := s.ListCustomers(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, c := range all {
			ids = append(ids, c.ID)
		}
		assert.Equal(t, []string{"AA1111", "BB2222", "CC3333"}, ids)

		byName, err := s.FindCustomer(ctx, store.FieldName, "bea")
		require.NoError(t, err)
		assert.Equal(t, "BB2222", byName.ID)

		// Abe and Bea both contain "b"; matches come in registration order.
		_, err = s.FindCustomer(ctx, store.FieldName, "b")
		var amb *store.AmbiguousError
		require.ErrorAs(t, err, &amb)
		require.Len(t, amb.Matches, 2)
		assert.Equal(t, "AA1111", amb.Matches[0].ID)
		assert.Equal(t, "BB2222", amb.Matches[1].ID)
	})

	t.Run("concurrent redemption of one code", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		require.NoError(t, err)

		const n = 8
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("RD%04d", i)
			_, err := s.CreateCustomer(ctx, Customer(id, "Redeemer", fmt.Sprintf("07799%05d", i), epoch))
			require.NoError(t, err)
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.RecordRedemption(ctx, "SA4567R1", fmt.Sprintf("RD%04d", i), epoch)
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, store.ErrCodeAlreadyUsed)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		owner, err := s.FindCustomer(ctx, store.FieldID, "SA4567")
		require.NoError(t, err)
		assert.Equal(t, 1, owner.ReferralCount)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.CreateCustomer(ctx, Customer("SA4567", "Sarah", "0771234567", epoch))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
