// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/TeaDesk/services/orchestrator"
)

func newServeCmd(c *cli) *cobra.Command {
	var port int
	var token string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Long: `Serves the referral API and the chat assistant.

The API token is read from TEADESK_API_TOKEN unless --token is given.
Without a token the API is open, so keep the default 127.0.0.1 host.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			a, err := buildApp(ctx, c.cfg, appOptions{registry: reg, withBackend: true})
			if err != nil {
				return err
			}
			defer a.Close()

			sc := c.cfg.Server
			if port != 0 {
				sc.Port = port
			}
			if token == "" {
				token = envOr("TEADESK_API_TOKEN", "")
			}

			svc, err := orchestrator.New(orchestrator.Config{
				Host:               sc.Host,
				Port:               sc.Port,
				GinMode:            sc.GinMode,
				OTelEndpoint:       c.cfg.Telemetry.OTLPEndpoint,
				APIToken:           token,
				MaxConcurrentChats: sc.MaxConcurrentChats,
				Sessions:           sc.Sessions,
				ShutdownTimeout:    sc.ShutdownTimeout,
			}, orchestrator.Deps{
				Engine:   a.engine,
				Router:   a.router,
				Metrics:  a.metrics,
				Gatherer: reg,
			})
			if err != nil {
				return err
			}
			c.printer.Success("TeaDesk is serving; press Ctrl+C to stop.")
			return svc.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	cmd.Flags().StringVar(&token, "token", "", "API bearer token")
	return cmd
}
