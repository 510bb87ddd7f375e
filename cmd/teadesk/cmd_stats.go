// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/TeaDesk/pkg/ux"
	"github.com/AleutianAI/TeaDesk/services/router"
)

func newStatsCmd(c *cli) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show customer and referral statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			customers, err := a.store.ListCustomers(cmd.Context())
			if err != nil {
				return err
			}
			renderStats(c.printer, router.Summarize(customers, a.engine.Policy()))

			ranked := router.TopReferrers(customers, top)
			if len(ranked) == 0 {
				return nil
			}
			p := c.printer
			p.Title(fmt.Sprintf("Top %d referrers", len(ranked)))
			fields := make([]ux.Field, 0, len(ranked))
			for i, cu := range ranked {
				fields = append(fields, ux.Field{
					Label: fmt.Sprintf("%d. %s", i+1, cu.Name),
					Value: p.Referrals(cu.ReferralCount, a.engine.Policy().Threshold),
				})
			}
			p.Fields(fields...)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "length of the top referrer list")
	return cmd
}

func renderStats(p *ux.Printer, s router.Stats) {
	p.Title("Tea business statistics")
	p.Fields(
		ux.Field{Label: "Customers", Value: strconv.Itoa(s.Customers)},
		ux.Field{Label: "With discount", Value: fmt.Sprintf("%d (%.1f%%)", s.WithDiscount, s.DiscountRate())},
		ux.Field{Label: "Referral codes", Value: strconv.Itoa(s.TotalCodes)},
		ux.Field{Label: "Codes used", Value: fmt.Sprintf("%d (%.1f%%)", s.UsedCodes, s.UsageRate())},
		ux.Field{Label: "Codes available", Value: strconv.Itoa(s.AvailableCodes)},
	)
}
