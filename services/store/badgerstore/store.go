// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/TeaDesk/services/store"
)

const (
	prefixCustomer = "customer/"
	prefixPhone    = "phone/"
	prefixCode     = "code/"
	keySeq         = "meta/seq"
)

// Store implements store.Store on BadgerDB.
//
// Mutations hold mu for the whole read-check-write sequence and run in a
// single badger transaction, so a failed check or commit leaves nothing
// behind.
type Store struct {
	db *DB
	mu sync.Mutex
}

// Open opens a Store with cfg.
func Open(cfg Config) (*Store, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an empty, non-persistent Store.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

func (s *Store) FindCustomer(ctx context.Context, field store.Field, value string) (store.Customer, error) {
	var (
		c     store.Customer
		found bool
	)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		tx := kvTx{txn}
		switch field {
		case store.FieldID:
			var err error
			c, found, err = tx.Customer(strings.ToUpper(strings.TrimSpace(value)))
			return err
		case store.FieldPhone:
			id, ok, err := tx.CustomerIDByPhone(store.DigitsOnly(value))
			if err != nil || !ok {
				return err
			}
			c, found, err = tx.Customer(id)
			return err
		case store.FieldName:
			all, err := scanCustomers(txn)
			if err != nil {
				return err
			}
			c, err = store.MatchName(all, value)
			found = err == nil
			if errors.Is(err, store.ErrCustomerNotFound) {
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return store.Customer{}, err
	}
	if !found {
		return store.Customer{}, store.ErrCustomerNotFound
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]store.Customer, error) {
	var out []store.Customer
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = scanCustomers(txn)
		return err
	})
	return out, err
}

func (s *Store) FindCode(ctx context.Context, code string) (store.ReferralCode, error) {
	var (
		rc    store.ReferralCode
		found bool
	)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		rc, found, err = kvTx{txn}.Code(store.NormalizeCode(code))
		return err
	})
	if err != nil {
		return store.ReferralCode{}, err
	}
	if !found {
		return store.ReferralCode{}, store.ErrUnknownCode
	}
	return rc, nil
}

func (s *Store) CodesFor(ctx context.Context, customerID string) ([]store.ReferralCode, error) {
	var out []store.ReferralCode
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		tx := kvTx{txn}
		c, found, err := tx.Customer(customerID)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrCustomerNotFound
		}
		out = make([]store.ReferralCode, 0, len(c.Codes))
		for _, code := range c.Codes {
			rc, ok, err := tx.Code(code)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("code %s of customer %s missing", code, customerID)
			}
			out = append(out, rc)
		}
		return nil
	})
	return out, err
}

func (s *Store) CreateCustomer(ctx context.Context, nc store.NewCustomer) (store.Created, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created store.Created
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var err error
		created, err = store.ApplyCreate(kvTx{txn}, nc)
		return err
	})
	if err != nil {
		return store.Created{}, err
	}
	return created, nil
}

func (s *Store) RecordRedemption(ctx context.Context, code, usedBy string, at time.Time) (store.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r store.Redemption
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var err error
		r, err = store.ApplyRedemption(kvTx{txn}, code, usedBy, at)
		return err
	})
	if err != nil {
		return store.Redemption{}, err
	}
	return r, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanCustomers(txn *badger.Txn) ([]store.Customer, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixCustomer)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []store.Customer
	for it.Rewind(); it.Valid(); it.Next() {
		var c store.Customer
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		}); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		out = append(out, c)
	}
	store.SortByRegistration(out)
	return out, nil
}

// kvTx adapts a badger transaction to store.Tx.
type kvTx struct {
	txn *badger.Txn
}

func (t kvTx) getJSON(key string, v any) (bool, error) {
	item, err := t.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, v) }); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (t kvTx) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.txn.Set([]byte(key), data)
}

func (t kvTx) Customer(id string) (store.Customer, bool, error) {
	var c store.Customer
	found, err := t.getJSON(prefixCustomer+id, &c)
	return c, found, err
}

func (t kvTx) CustomerIDByPhone(phone string) (string, bool, error) {
	item, err := t.txn.Get([]byte(prefixPhone + phone))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(id), true, nil
}

func (t kvTx) Code(code string) (store.ReferralCode, bool, error) {
	var rc store.ReferralCode
	found, err := t.getJSON(prefixCode+code, &rc)
	return rc, found, err
}

func (t kvTx) NextSeq() (uint64, error) {
	var seq uint64
	item, err := t.txn.Get([]byte(keySeq))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		if len(raw) != 8 {
			return 0, fmt.Errorf("corrupt %s: %d bytes", keySeq, len(raw))
		}
		seq = binary.BigEndian.Uint64(raw)
	}
	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return seq, t.txn.Set([]byte(keySeq), buf)
}

func (t kvTx) PutCustomer(c store.Customer) error {
	if err := t.putJSON(prefixCustomer+c.ID, c); err != nil {
		return err
	}
	return t.txn.Set([]byte(prefixPhone+c.Phone), []byte(c.ID))
}

func (t kvTx) PutCode(rc store.ReferralCode) error {
	return t.putJSON(prefixCode+rc.Code, rc)
}

var _ store.Store = (*Store)(nil)
