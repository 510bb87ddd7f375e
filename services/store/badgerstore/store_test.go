// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/store"
	"github.com/AleutianAI/TeaDesk/services/store/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := OpenInMemory()
		require.NoError(t, err)
		return s
	})
}

// TestStore_Persists verifies customers and redemptions survive a reopen.
func TestStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false
	s, err := Open(cfg)
	require.NoError(t, err)

	_, err = s.CreateCustomer(ctx, storetest.Customer("SA4567", "Sarah", "0771234567", at))
	require.NoError(t, err)
	nc := storetest.Customer("TO1111", "Tom", "0770001111", at.Add(time.Hour))
	nc.ReferredBy = "SA4567R3"
	_, err = s.CreateCustomer(ctx, nc)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	owner, err := s.FindCustomer(ctx, store.FieldPhone, "0771234567")
	require.NoError(t, err)
	assert.Equal(t, 1, owner.ReferralCount)

	rc, err := s.FindCode(ctx, "SA4567R3")
	require.NoError(t, err)
	assert.Equal(t, "TO1111", rc.UsedBy)

	// The sequence counter continues after reopen.
	created, err := s.CreateCustomer(ctx, storetest.Customer("AN2222", "Anna", "0770002222", at))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), created.Customer.Seq)
}

func TestOpenDB_RequiresDir(t *testing.T) {
	_, err := OpenDB(Config{})
	assert.Error(t, err)
}

func TestDB_WithTxn_DiscardsOnError(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("k"))
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestDB_WithTxn_CancelledContext(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err = db.WithTxn(ctx, func(*badger.Txn) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestOpenDB_GCLoopStopsOnClose(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.GCInterval = 10 * time.Millisecond

	db, err := OpenDB(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Dir, db.Dir())
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, db.Close())
}
