// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/TeaDesk/pkg/ux"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

func newRegisterCmd(c *cli) *cobra.Command {
	var name, phone, code string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new customer",
		Example: `  teadesk register --name "Sarah Lee" --phone 0771234567
  teadesk register --name Tom --phone 0770001111 --code SA4567R1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			reg, err := a.engine.Register(cmd.Context(), referral.RegisterRequest{
				Name:         name,
				Phone:        phone,
				ReferralCode: code,
			})
			if err != nil {
				return err
			}

			p := c.printer
			p.Success(fmt.Sprintf("Registered %s (ID: %s)", reg.Customer.Name, reg.Customer.ID))
			p.Fields(
				ux.Field{Label: "Customer ID", Value: reg.Customer.ID},
				ux.Field{Label: "Referral codes", Value: strings.Join(reg.Customer.Codes, ", ")},
			)
			if cr := reg.Credit; cr != nil {
				p.Success(fmt.Sprintf("Referral code %s credited to %s: %s",
					cr.Code, cr.Owner.Name, p.Referrals(cr.Standing.Count, cr.Standing.Threshold)))
				if cr.DiscountEarned {
					p.Success(fmt.Sprintf("%s has earned the referral discount!", cr.Owner.Name))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "customer name")
	cmd.Flags().StringVar(&phone, "phone", "", "customer phone number")
	cmd.Flags().StringVar(&code, "code", "", "referral code the customer brought")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func newLookupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <id | phone | name>",
		Short: "Show a customer's referral status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.engine.Report(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			renderReport(c.printer, rep)
			return nil
		},
	}
}

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <code>",
		Short: "Check whether a referral code can be used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			check, err := a.engine.ValidateCode(cmd.Context(), args[0])
			switch {
			case err == nil:
				c.printer.Success(fmt.Sprintf("Valid referral code from %s (ID: %s)", check.Owner.Name, check.Owner.ID))
				return nil
			case errors.Is(err, store.ErrUnknownCode), errors.Is(err, store.ErrCodeAlreadyUsed):
				return &exitError{code: 2, err: err}
			}
			return err
		},
	}
}

func newRedeemCmd(c *cli) *cobra.Command {
	var customerID string
	cmd := &cobra.Command{
		Use:   "redeem <code>",
		Short: "Apply a referral code to an already registered customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			credit, err := a.engine.Redeem(cmd.Context(), args[0], customerID)
			if err != nil {
				return err
			}
			p := c.printer
			p.Success(fmt.Sprintf("Referral code %s credited to %s: %s",
				credit.Code, credit.Owner.Name, p.Referrals(credit.Standing.Count, credit.Standing.Threshold)))
			if credit.DiscountEarned {
				p.Success(fmt.Sprintf("%s has earned the referral discount!", credit.Owner.Name))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "", "ID of the customer who brought the code")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

// renderReport prints a customer's profile and codes.
func renderReport(p *ux.Printer, rep referral.Report) {
	c := rep.Customer
	p.Title(fmt.Sprintf("%s (ID: %s)", c.Name, c.ID))

	fields := []ux.Field{
		{Label: "Phone", Value: referral.MaskPhone(c.Phone)},
		{Label: "Registered", Value: c.RegisteredAt.Local().Format("2006-01-02")},
		{Label: "Referrals", Value: p.Referrals(rep.Standing.Count, rep.Standing.Threshold)},
		{Label: "Discount", Value: yesNo(rep.Standing.Eligible)},
	}
	if c.ReferredBy != "" {
		fields = append(fields, ux.Field{Label: "Referred by", Value: c.ReferredBy})
	}
	for _, code := range rep.Codes {
		status := "available"
		if code.Used() {
			status = "used by " + code.UsedBy
			if code.UsedByName != "" {
				status = fmt.Sprintf("used by %s (%s)", code.UsedByName, code.UsedBy)
			}
		}
		fields = append(fields, ux.Field{Label: code.Code, Value: status})
	}
	p.Fields(fields...)
	p.Muted(rep.Standing.Progress())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
