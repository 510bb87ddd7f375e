// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/TeaDesk/pkg/ux"
	"github.com/AleutianAI/TeaDesk/services/router"
)

func newAskCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant about customers, referrals or tea",
		Long: `With a question, prints one answer. Without one, starts a conversation
that reads questions from stdin until "exit" or end of input.`,
		Example: `  teadesk ask How many customers do I have?
  teadesk ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, appOptions{withBackend: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) > 0 {
				reply := a.router.Handle(cmd.Context(), strings.Join(args, " "), uuid.NewString())
				c.printer.Reply(string(reply.Source), reply.Text)
				return nil
			}
			return converse(cmd.Context(), a.router, c.printer, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// converse runs one chat session over in until EOF or an exit command.
func converse(ctx context.Context, rt *router.Router, p *ux.Printer, in io.Reader, out io.Writer) error {
	session := uuid.NewString()
	p.Title("TeaDesk assistant")
	p.Muted(`Ask about your customers or tea. Type "exit" to leave.`)

	scanner := bufio.NewScanner(in)
	for {
		if p.Mode() != ux.ModeMachine {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "exit", "quit", "bye":
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		reply := rt.Handle(ctx, line, session)
		p.Reply(string(reply.Source), reply.Text)
	}
}
