// ABOUTME: Entry point for tally, an invoicing server and command-line toolbox
// ABOUTME: Builds the cobra command tree and the helpers shared by subcommands

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/tally/internal/config"
	"github.com/2389/tally/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// cliActor is recorded in audit entries written by CLI commands.
const cliActor = "cli"

const banner = `
  _        _ _
 | |_ __ _| | |_   _
 | __/ _' | | | | | |
 | || (_| | | | |_| |
  \__\__,_|_|_|\__, |
               |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tally",
		Short: "Invoicing for small companies",
		Long: `tally keeps companies, clients, and invoices in a single SQLite file.

It serves a JSON API for editors and can export invoices as PDF files
and ledgers as XLSX workbooks straight from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default $TALLY_CONFIG or ~/.config/tally/config.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newInitCmd(opts),
		newConfigCmd(opts),
		newUserCmd(opts),
		newTokenCmd(opts),
		newExportCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tally version %s\n", version)
		},
	}
}

// loadConfig loads the resolved config and installs its logger as the default.
// Log output goes to stderr so command output stays parseable.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, string, *slog.Logger, error) {
	cfg, path, err := config.LoadResolved(o.configPath)
	if err != nil {
		return nil, path, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, path, logger, nil
}

// openStore loads the config and opens its database. Callers close the store.
func (o *rootOptions) openStore(cmd *cobra.Command) (*config.Config, *store.SQLiteStore, *slog.Logger, error) {
	cfg, _, logger, err := o.loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, s, logger, nil
}

// audit records a CLI mutation. Failures are logged, not returned.
func audit(ctx context.Context, s store.AuditStore, logger *slog.Logger, entry *store.AuditEntry) {
	entry.Actor = cliActor
	if err := s.AppendAuditLog(ctx, entry); err != nil {
		logger.Error("failed to append audit log", "action", entry.Action, "error", err)
	}
}

func closeStore(s io.Closer, logger *slog.Logger) {
	if err := s.Close(); err != nil {
		logger.Warn("closing database", "error", err)
	}
}
