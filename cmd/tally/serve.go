// ABOUTME: The serve command: prints the banner and startup summary, then runs the HTTP API
// ABOUTME: Blocks until SIGINT or SIGTERM and shuts down gracefully

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/tally/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cyan := color.New(color.FgCyan)
			gray := color.New(color.FgHiBlack)
			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)

			cyan.Fprint(out, banner)
			gray.Fprintf(out, "    version: %s\n\n", version)

			cfg, configPath, logger, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.Server.HTTPAddr = httpAddr
			}

			green.Fprint(out, "    ▶ ")
			fmt.Fprintf(out, "Config:    %s\n", configPath)
			green.Fprint(out, "    ▶ ")
			fmt.Fprintf(out, "Database:  %s\n", cfg.Database.Path)
			green.Fprint(out, "    ▶ ")
			if cfg.Tailscale.Enabled {
				fmt.Fprint(out, "Tailscale: ")
				cyan.Fprint(out, cfg.Tailscale.Hostname)
				if cfg.Tailscale.HTTPS {
					yellow.Fprint(out, " [https]")
				}
				if cfg.Tailscale.Ephemeral {
					gray.Fprint(out, " (ephemeral)")
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
			}
			if cfg.Auth.JWTSecret == "" {
				yellow.Fprint(out, "    ! ")
				fmt.Fprintln(out, "Auth:      disabled (no auth.jwt_secret)")
			}
			fmt.Fprintln(out)

			logger.Info("starting tally",
				"config", configPath,
				"database", cfg.Database.Path,
				"http_addr", cfg.Server.HTTPAddr,
			)

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "override server.http_addr")
	return cmd
}
