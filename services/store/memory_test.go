// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/store"
	"github.com/AleutianAI/TeaDesk/services/store/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.NewMemoryStore()
	})
}

func TestSortByRegistration(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	customers := []store.Customer{
		{ID: "C", RegisteredAt: at.Add(time.Minute), Seq: 1},
		{ID: "B", RegisteredAt: at, Seq: 3},
		{ID: "A", RegisteredAt: at, Seq: 2},
	}
	store.SortByRegistration(customers)
	assert.Equal(t, "A", customers[0].ID)
	assert.Equal(t, "B", customers[1].ID)
	assert.Equal(t, "C", customers[2].ID)
}

func TestMatchName(t *testing.T) {
	customers := []store.Customer{
		{ID: "SA4567", Name: "Sarah Lee"},
		{ID: "LE2222", Name: "Lee Chan"},
		{ID: "SA9999", Name: "Sarah Khan"},
		{ID: "SA1111", Name: "Sarah"},
	}

	tests := []struct {
		name     string
		fragment string
		wantID   string
		wantErr  error
		matches  []string
	}{
		{name: "unique fragment", fragment: " chan ", wantID: "LE2222"},
		{name: "full name", fragment: "sarah  LEE", wantID: "SA4567"},
		{name: "exact name beats fragments", fragment: "Sarah", wantID: "SA1111"},
		{name: "ambiguous fragment", fragment: "lee", wantErr: store.ErrAmbiguousCustomer, matches: []string{"SA4567", "LE2222"}},
		{name: "no match", fragment: "tom", wantErr: store.ErrCustomerNotFound},
		{name: "blank", fragment: "   ", wantErr: store.ErrCustomerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := store.MatchName(customers, tt.fragment)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				if tt.matches != nil {
					var amb *store.AmbiguousError
					require.ErrorAs(t, err, &amb)
					ids := make([]string, 0, len(amb.Matches))
					for _, m := range amb.Matches {
						ids = append(ids, m.ID)
					}
					assert.Equal(t, tt.matches, ids)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, c.ID)
		})
	}
}

func TestDigitsOnlyAndNormalizeCode(t *testing.T) {
	assert.Equal(t, "0771234567", store.DigitsOnly("+(077) 123-4567"))
	assert.Equal(t, "", store.DigitsOnly("n/a"))
	assert.Equal(t, "SA4567R1", store.NormalizeCode("  sa4567r1\n"))
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "id", store.FieldID.String())
	assert.Equal(t, "phone", store.FieldPhone.String())
	assert.Equal(t, "name", store.FieldName.String())
	assert.Equal(t, "unknown", store.Field(42).String())
}
