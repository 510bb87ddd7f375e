// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// writeTestConfig points a sqlite store and the log directory at a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "teadesk.yaml")
	content := fmt.Sprintf(`store:
  driver: sqlite
  path: %s
backend:
  provider: none
logging:
  level: error
  dir: %s
  format: json
`, filepath.Join(dir, "teadesk.db"), filepath.Join(dir, "logs"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCLI executes one command line and returns what it printed.
func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--config", configPath, "--output", "machine"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_RegisterLookupValidate(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, cfg, "register", "--name", "Sarah Lee", "--phone", "0771234567")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: Registered Sarah Lee (ID: SA4567)")
	assert.Contains(t, out, "REFERRAL_CODES: SA4567R1, SA4567R2, SA4567R3")

	out, err = runCLI(t, cfg, "register", "--name", "Tom", "--phone", "0770001111", "--code", "SA4567R1")
	require.NoError(t, err)
	assert.Contains(t, out, "Referral code SA4567R1 credited to Sarah Lee: 1/3")

	out, err = runCLI(t, cfg, "lookup", "SA4567")
	require.NoError(t, err)
	assert.Contains(t, out, "REFERRALS: 1/3")
	assert.Contains(t, out, "SA4567R1: used by Tom (TO1111)")
	assert.Contains(t, out, "SA4567R2: available")

	out, err = runCLI(t, cfg, "validate", "SA4567R2")
	require.NoError(t, err)
	assert.Contains(t, out, "Valid referral code from Sarah Lee")

	_, err = runCLI(t, cfg, "validate", "SA4567R1")
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.code)
	assert.ErrorIs(t, err, store.ErrCodeAlreadyUsed)
}

func TestCLI_AskAndStats(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := runCLI(t, cfg, "register", "--name", "Sarah Lee", "--phone", "0771234567")
	require.NoError(t, err)

	out, err := runCLI(t, cfg, "ask", "How", "many", "customers", "do", "I", "have?")
	require.NoError(t, err)
	assert.Contains(t, out, "SOURCE: rules")
	assert.Contains(t, out, "You have 1 customer registered in your tea business database.")

	out, err = runCLI(t, cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "CUSTOMERS: 1")
	assert.Contains(t, out, "REFERRAL_CODES: 3")
	assert.Contains(t, out, "CODES_AVAILABLE: 3")
}

func TestCLI_RegisterRejectsDuplicatePhone(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := runCLI(t, cfg, "register", "--name", "Sarah Lee", "--phone", "0771234567")
	require.NoError(t, err)

	_, err = runCLI(t, cfg, "register", "--name", "Sara Lin", "--phone", "0771234567")
	require.Error(t, err)
	assert.Equal(t, "That phone number is already registered.", describeError(err))
}

func TestConverse_ExitsOnCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader("show me general statistics\nexit\nhow many customers\n"))
	root.SetArgs([]string{"--config", cfg, "--output", "machine", "ask"})
	require.NoError(t, root.Execute())

	assert.Equal(t, 1, strings.Count(out.String(), "SOURCE: rules"))
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"input", &referral.InputError{Problems: []string{"name is required"}}, "Please check the details: name is required"},
		{"self referral", fmt.Errorf("redeem: %w", store.ErrSelfReferral), "Customers cannot use their own referral code."},
		{"unknown code", store.ErrUnknownCode, "That referral code does not exist."},
		{"not found", store.ErrCustomerNotFound, "No matching customer found."},
		{"already referred", store.ErrAlreadyReferred, "This customer has already used a referral code."},
		{
			"ambiguous name",
			&store.AmbiguousError{Fragment: "sarah", Matches: []store.Customer{{ID: "SA4567", Name: "Sarah Lee"}, {ID: "SA9999", Name: "Sarah Khan"}}},
			`2 customers match "sarah": Sarah Lee (SA4567), Sarah Khan (SA9999). Please search by customer ID or phone number.`,
		},
		{"other", errors.New("disk full"), "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeError(tt.err))
		})
	}
}

func TestExitError_Unwraps(t *testing.T) {
	err := &exitError{code: 2, err: store.ErrUnknownCode}
	assert.ErrorIs(t, err, store.ErrUnknownCode)
	assert.Equal(t, store.ErrUnknownCode.Error(), err.Error())
}
