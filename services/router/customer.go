// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/TeaDesk/services/classifier"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// CustomerContext is the payload sent to the backend for a
// customer-specific question. It holds exactly one customer.
type CustomerContext struct {
	BusinessType        string        `json:"business_type"`
	ReferralRequirement string        `json:"referral_requirement"`
	CurrentDate         string        `json:"current_date"`
	Customer            CustomerFacts `json:"customer"`
}

// CustomerFacts are the fields of one customer the backend may see. The
// phone number is left out.
type CustomerFacts struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	RegistrationDate string `json:"registration_date"`
	Referrals        int    `json:"referrals"`
	DiscountEarned   bool   `json:"discount_earned"`
	Remaining        int    `json:"referrals_until_discount"`
	CodesAvailable   int    `json:"codes_available"`
}

func newCustomerContext(rep referral.Report, now time.Time) CustomerContext {
	available := 0
	for _, c := range rep.Codes {
		if !c.Used() {
			available++
		}
	}
	return CustomerContext{
		BusinessType:        "Tea business with referral program",
		ReferralRequirement: fmt.Sprintf("%d referrals needed for discount", rep.Standing.Threshold),
		CurrentDate:         now.Format("2006-01-02"),
		Customer: CustomerFacts{
			ID:               rep.Customer.ID,
			Name:             rep.Customer.Name,
			RegistrationDate: formatDate(rep.Customer),
			Referrals:        rep.Standing.Count,
			DiscountEarned:   rep.Standing.Eligible,
			Remaining:        rep.Standing.Remaining,
			CodesAvailable:   available,
		},
	}
}

// resolve finds the customer a classification points at: by id, then by
// the name words from longest leading run to the first word alone, then by
// each later word. The first candidate that matches anything decides, so
// an ambiguous first name is reported rather than guessed.
func (r *Router) resolve(ctx context.Context, c classifier.Classification) (store.Customer, error) {
	st := r.engine.Store()
	if c.SubjectID != "" {
		return st.FindCustomer(ctx, store.FieldID, c.SubjectID)
	}

	candidates := make([]string, 0, 2*len(c.Names))
	for n := len(c.Names); n > 0; n-- {
		candidates = append(candidates, strings.Join(c.Names[:n], " "))
	}
	if len(c.Names) > 1 {
		candidates = append(candidates, c.Names[1:]...)
	}
	for _, name := range candidates {
		found, err := st.FindCustomer(ctx, store.FieldName, name)
		if !errors.Is(err, store.ErrCustomerNotFound) {
			return found, err
		}
	}
	return store.Customer{}, store.ErrCustomerNotFound
}

// ambiguous renders the customers a name matched and asks for an id.
func ambiguous(amb *store.AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Several customers match '%s':\n", amb.Fragment)
	for _, c := range amb.Matches {
		fmt.Fprintf(&b, "• %s (ID: %s)\n", c.Name, c.ID)
	}
	b.WriteString("Please ask again using the customer ID.")
	return b.String()
}

// profile renders a customer report for the counter.
func profile(rep referral.Report) string {
	var b strings.Builder
	c := rep.Customer
	discount := "No"
	if rep.Standing.Eligible {
		discount = "Yes"
	}

	fmt.Fprintf(&b, "%s (ID: %s)\n", c.Name, c.ID)
	fmt.Fprintf(&b, "  Phone: %s\n", referral.MaskPhone(c.Phone))
	fmt.Fprintf(&b, "  Registered: %s\n", formatDate(c))
	fmt.Fprintf(&b, "  Referrals: %d/%d\n", rep.Standing.Count, rep.Standing.Threshold)
	fmt.Fprintf(&b, "  Discount: %s\n", discount)
	if c.ReferredBy != "" {
		fmt.Fprintf(&b, "  Referred by code: %s\n", c.ReferredBy)
	}
	for _, code := range rep.Codes {
		switch {
		case !code.Used():
			fmt.Fprintf(&b, "  %s: available\n", code.Code)
		case code.UsedByName != "":
			fmt.Fprintf(&b, "  %s: used by %s (%s)\n", code.Code, code.UsedByName, code.UsedBy)
		default:
			fmt.Fprintf(&b, "  %s: used by %s\n", code.Code, code.UsedBy)
		}
	}
	b.WriteString("  " + rep.Standing.Progress())
	return b.String()
}
