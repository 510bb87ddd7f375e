// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package referral

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/AleutianAI/TeaDesk/services/store"
)

// ErrInvalidInput is returned for registration input that fails
// normalisation. The concrete error is an *InputError.
var ErrInvalidInput = errors.New("invalid input")

// InputError lists every problem found in one request.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

var (
	codePattern = regexp.MustCompile(`^[A-Z]{2}\d{4}[A-QS-Z]?R([1-9])$`)
	idPattern   = regexp.MustCompile(`^[A-Z]{2}\d{4}[A-QS-Z]?$`)
	titleCaser  = cases.Title(language.Und)
)

// NormalizeRegistration trims and title-cases name and reduces phone to its
// digits. Both fields are checked and every problem is reported together.
func NormalizeRegistration(name, phone string) (string, string, error) {
	var problems []string

	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) < 2 {
		problems = append(problems, "name must be at least 2 characters")
	}
	digits := store.DigitsOnly(phone)
	if len(digits) < 4 {
		problems = append(problems, "phone number must have at least 4 digits")
	}
	if len(problems) > 0 {
		return "", "", &InputError{Problems: problems}
	}
	return titleCaser.String(name), digits, nil
}

// CustomerID derives the base customer id: the first two ASCII letters of
// the name, upper-cased and padded with X, followed by the last four phone
// digits. phone must already be digits only. When the base id is taken by
// another phone the store registers the customer under the base id plus
// one letter (SA4567A).
func CustomerID(name, phone string) string {
	var prefix []byte
	for i := 0; i < len(name) && len(prefix) < 2; i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			prefix = append(prefix, c-'a'+'A')
		case c >= 'A' && c <= 'Z':
			prefix = append(prefix, c)
		}
	}
	for len(prefix) < 2 {
		prefix = append(prefix, 'X')
	}

	suffix := phone
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	for len(suffix) < 4 {
		suffix += "0"
	}
	return string(prefix) + suffix
}

// LooksLikeID reports whether s has the shape of a customer id.
func LooksLikeID(s string) bool {
	return idPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// Codes returns the codes of customer id, slot 1 first.
func (p Policy) Codes(id string) []string {
	codes := make([]string, p.CodesPerCustomer)
	for i := range codes {
		codes[i] = id + "R" + strconv.Itoa(i+1)
	}
	return codes
}

// ParseCode normalises code and checks its format. The returned error wraps
// store.ErrUnknownCode: a malformed code can never resolve.
func (p Policy) ParseCode(code string) (string, error) {
	code = store.NormalizeCode(code)
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return "", fmt.Errorf("%w: malformed code %q", store.ErrUnknownCode, code)
	}
	if slot, _ := strconv.Atoi(m[1]); slot > p.CodesPerCustomer {
		return "", fmt.Errorf("%w: no slot %d", store.ErrUnknownCode, slot)
	}
	return code, nil
}

// MaskPhone hides all but the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("•", len(phone)-4) + phone[len(phone)-4:]
}
