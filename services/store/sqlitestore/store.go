// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sqlitestore implements store.Store on a single SQLite file using
// the pure-Go modernc.org/sqlite driver.
//
// The tables mirror the sheets the shop kept by hand (customers, referral
// codes), so the file can be opened with any SQLite browser.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/TeaDesk/services/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	phone          TEXT NOT NULL UNIQUE,
	registered_at  TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	codes          TEXT NOT NULL,
	referred_by    TEXT NOT NULL DEFAULT '',
	referral_count INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS referral_codes (
	code     TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL REFERENCES customers(id),
	slot     INTEGER NOT NULL,
	used_by  TEXT NOT NULL DEFAULT '',
	used_at  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_referral_codes_owner ON referral_codes(owner_id);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// Store is a SQLite-backed store.Store.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open creates or opens the database file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; readers queue behind it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const customerColumns = `id, name, phone, registered_at, seq, codes, referred_by, referral_count, status`

func (s *Store) FindCustomer(ctx context.Context, field store.Field, value string) (store.Customer, error) {
	var row *sql.Row
	switch field {
	case store.FieldID:
		row = s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`,
			strings.ToUpper(strings.TrimSpace(value)))
	case store.FieldPhone:
		row = s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = ?`,
			store.DigitsOnly(value))
	case store.FieldName:
		all, err := s.ListCustomers(ctx)
		if err != nil {
			return store.Customer{}, err
		}
		return store.MatchName(all, value)
	default:
		return store.Customer{}, store.ErrCustomerNotFound
	}

	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Customer{}, store.ErrCustomerNotFound
	}
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context) ([]store.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []store.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortByRegistration(out)
	return out, nil
}

func (s *Store) FindCode(ctx context.Context, code string) (store.ReferralCode, error) {
	rc, err := scanCode(s.db.QueryRowContext(ctx,
		`SELECT code, owner_id, slot, used_by, used_at FROM referral_codes WHERE code = ?`,
		store.NormalizeCode(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ReferralCode{}, store.ErrUnknownCode
	}
	return rc, err
}

func (s *Store) CodesFor(ctx context.Context, customerID string) ([]store.ReferralCode, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE id = ?`, customerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, owner_id, slot, used_by, used_at FROM referral_codes WHERE owner_id = ? ORDER BY slot`,
		customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ReferralCode
	for rows.Next() {
		rc, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, nc store.NewCustomer) (store.Created, error) {
	var created store.Created
	err := s.withTx(ctx, func(tx sqlTx) error {
		var err error
		created, err = store.ApplyCreate(tx, nc)
		return err
	})
	if err != nil {
		return store.Created{}, err
	}
	return created, nil
}

func (s *Store) RecordRedemption(ctx context.Context, code, usedBy string, at time.Time) (store.Redemption, error) {
	var r store.Redemption
	err := s.withTx(ctx, func(tx sqlTx) error {
		var err error
		r, err = store.ApplyRedemption(tx, code, usedBy, at)
		return err
	})
	if err != nil {
		return store.Redemption{}, err
	}
	return r, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx sqlTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(sqlTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row scanner) (store.Customer, error) {
	var (
		c          store.Customer
		registered string
		codes      string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &registered, &c.Seq, &codes,
		&c.ReferredBy, &c.ReferralCount, &c.Status); err != nil {
		return store.Customer{}, err
	}
	if registered != "" {
		at, err := time.Parse(time.RFC3339Nano, registered)
		if err != nil {
			return store.Customer{}, fmt.Errorf("customer %s registered_at: %w", c.ID, err)
		}
		c.RegisteredAt = at
	}
	if codes != "" {
		c.Codes = strings.Split(codes, ",")
	}
	return c, nil
}

func scanCode(row scanner) (store.ReferralCode, error) {
	var (
		rc     store.ReferralCode
		usedAt string
	)
	if err := row.Scan(&rc.Code, &rc.OwnerID, &rc.Slot, &rc.UsedBy, &usedAt); err != nil {
		return store.ReferralCode{}, err
	}
	if usedAt != "" {
		at, err := time.Parse(time.RFC3339Nano, usedAt)
		if err != nil {
			return store.ReferralCode{}, fmt.Errorf("code %s used_at: %w", rc.Code, err)
		}
		rc.UsedAt = at
	}
	return rc, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// sqlTx adapts *sql.Tx to store.Tx.
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t sqlTx) Customer(id string) (store.Customer, bool, error) {
	c, err := scanCustomer(t.tx.QueryRowContext(t.ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Customer{}, false, nil
	}
	return c, err == nil, err
}

func (t sqlTx) CustomerIDByPhone(phone string) (string, bool, error) {
	var id string
	err := t.tx.QueryRowContext(t.ctx, `SELECT id FROM customers WHERE phone = ?`, phone).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return id, err == nil, err
}

func (t sqlTx) Code(code string) (store.ReferralCode, bool, error) {
	rc, err := scanCode(t.tx.QueryRowContext(t.ctx,
		`SELECT code, owner_id, slot, used_by, used_at FROM referral_codes WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ReferralCode{}, false, nil
	}
	return rc, err == nil, err
}

func (t sqlTx) NextSeq() (uint64, error) {
	var seq uint64
	err := t.tx.QueryRowContext(t.ctx,
		`INSERT INTO meta (key, value) VALUES ('seq', 1)
		 ON CONFLICT(key) DO UPDATE SET value = value + 1
		 RETURNING value`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

func (t sqlTx) PutCustomer(c store.Customer) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			referred_by = excluded.referred_by,
			referral_count = excluded.referral_count,
			status = excluded.status`,
		c.ID, c.Name, c.Phone, formatTime(c.RegisteredAt), c.Seq, strings.Join(c.Codes, ","),
		c.ReferredBy, c.ReferralCount, c.Status)
	if err != nil {
		return fmt.Errorf("put customer %s: %w", c.ID, err)
	}
	return nil
}

func (t sqlTx) PutCode(rc store.ReferralCode) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO referral_codes (code, owner_id, slot, used_by, used_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET used_by = excluded.used_by, used_at = excluded.used_at`,
		rc.Code, rc.OwnerID, rc.Slot, rc.UsedBy, formatTime(rc.UsedAt))
	if err != nil {
		return fmt.Errorf("put code %s: %w", rc.Code, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
