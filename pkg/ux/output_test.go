// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPrinter(mode Mode) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinter(&out, &errOut, mode), &out, &errOut
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeRich, ParseMode("Rich"))
	assert.Equal(t, ModeMachine, ParseMode("machine"))
	assert.Equal(t, ModeMachine, ParseMode("q"))
	assert.Equal(t, ModeMinimal, ParseMode("minimal"))
	assert.Equal(t, ModeMinimal, ParseMode("sparkly"))
}

func TestDetectMode(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()

	t.Setenv("TEADESK_OUTPUT", "")
	t.Setenv("NO_COLOR", "")
	assert.Equal(t, ModeMinimal, DetectMode(f), "a regular file is not a terminal")

	t.Setenv("TEADESK_OUTPUT", "machine")
	assert.Equal(t, ModeMachine, DetectMode(f))
}

func TestPrinter_MachineMode(t *testing.T) {
	p, out, errOut := newTestPrinter(ModeMachine)

	p.Title("Customer")
	p.Success("registered")
	p.Error("phone number already registered")
	p.Fields(Field{"Customer ID", "SA4567"}, Field{"Referrals", p.Referrals(2, 3)})

	assert.Equal(t, "OK: registered\nCUSTOMER_ID: SA4567\nREFERRALS: 2/3\n", out.String())
	assert.Equal(t, "ERROR: phone number already registered\n", errOut.String())
}

func TestPrinter_MinimalMode(t *testing.T) {
	p, out, errOut := newTestPrinter(ModeMinimal)

	p.Success("registered")
	p.Warning("backend disabled")
	p.Fields(Field{"ID", "SA4567"}, Field{"Name", "Sarah Lee"})

	assert.Equal(t, "✓ registered\nID    SA4567\nName  Sarah Lee\n", out.String())
	assert.Equal(t, "⚠ backend disabled\n", errOut.String())
}

func TestPrinter_Referrals(t *testing.T) {
	p, _, _ := newTestPrinter(ModeMinimal)
	assert.Equal(t, "●●○ 2/3", p.Referrals(2, 3))
	assert.Equal(t, "●●● 4/3", p.Referrals(4, 3))
	assert.Equal(t, "0/0", p.Referrals(0, 0))
}

func TestPrinter_BoxAndReply(t *testing.T) {
	p, out, _ := newTestPrinter(ModeRich)
	p.Box("Sarah Lee", "Referrals: 1/3")
	p.Reply("rules", "You have 2 customers.")

	s := out.String()
	assert.Contains(t, s, "Sarah Lee")
	assert.Contains(t, s, "Referrals: 1/3")
	assert.Contains(t, s, "You have 2 customers.")
	assert.Contains(t, s, "rules")
}
