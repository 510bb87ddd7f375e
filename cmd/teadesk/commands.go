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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/TeaDesk/cmd/teadesk/config"
	"github.com/AleutianAI/TeaDesk/pkg/ux"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// cli carries the persistent flags and the loaded config.
type cli struct {
	configPath string
	output     string
	cfg        config.TeaDeskConfig
	printer    *ux.Printer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "teadesk",
		Short:         "Referral desk and assistant for a tea shop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.printer = ux.Stdout()
			if c.output != "" {
				c.printer = ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), ux.ParseMode(c.output))
			}
			cfg, created, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if created {
				c.printer.Muted("First run: wrote a default configuration file.")
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.teadesk/teadesk.yaml)")
	root.PersistentFlags().StringVar(&c.output, "output", "", "output style: rich, minimal or machine")

	root.AddCommand(
		newServeCmd(c),
		newRegisterCmd(c),
		newLookupCmd(c),
		newValidateCmd(c),
		newRedeemCmd(c),
		newAskCmd(c),
		newStatsCmd(c),
	)
	return root
}

// describeError turns domain errors into counter-friendly sentences.
func describeError(err error) string {
	var inputErr *referral.InputError
	switch {
	case errors.As(err, &inputErr):
		return "Please check the details: " + strings.Join(inputErr.Problems, "; ")
	case errors.Is(err, store.ErrDuplicatePhone):
		return "That phone number is already registered."
	case errors.Is(err, store.ErrDuplicateCustomer):
		return "A customer with the same ID already exists. Please check the name and phone number."
	case errors.Is(err, store.ErrSelfReferral):
		return "Customers cannot use their own referral code."
	case errors.Is(err, store.ErrCodeAlreadyUsed):
		return "That referral code has already been used."
	case errors.Is(err, store.ErrUnknownCode):
		return "That referral code does not exist."
	case errors.Is(err, store.ErrInvalidReferralCode):
		return fmt.Sprintf("Invalid referral code: %v", err)
	case errors.Is(err, store.ErrAlreadyReferred):
		return "This customer has already used a referral code."
	case errors.Is(err, store.ErrAmbiguousCustomer):
		return fmt.Sprintf("%v. Please search by customer ID or phone number.", err)
	case errors.Is(err, store.ErrCustomerNotFound):
		return "No matching customer found."
	default:
		return err.Error()
	}
}
