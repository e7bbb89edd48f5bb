// ABOUTME: Commands that set up state: create or open a database, write a config, manage users, mint tokens
// ABOUTME: Passwords are read from stdin so they never appear in shell history

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/tally/internal/auth"
	"github.com/2389/tally/internal/config"
	"github.com/2389/tally/internal/store"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new database or open an existing one",
		Long: `init creates the database file and its schema when missing, or opens an
existing file and reports what it holds. Without --db the configured
database.path is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			path := cfg.Database.Path
			if dbPath != "" {
				path = config.ExpandHome(dbPath)
			}

			s, err := store.NewSQLiteStore(path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer closeStore(s, logger)

			companies, err := s.ListCompanies(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing companies: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "  ✓ Database: %s\n", path)
			fmt.Fprintf(out, "  Companies: %d\n", len(companies))
			for _, c := range companies {
				fmt.Fprintf(out, "    %d  %s\n", c.ID, c.Name)
			}
			if dbPath != "" && dbPath != cfg.Database.Path {
				fmt.Fprintf(out, "\nTo serve this database set database.path or %s=%s\n", config.EnvDBPath, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database file to create or open")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := config.ResolvePath(opts.configPath)
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "  ✓ Created config: %s\n", path)
			fmt.Fprintln(out, "  Set auth.jwt_secret to require logins on the API.")
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}

	var username, displayName string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user; the password is read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return errors.New("--username is required")
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			_, s, logger, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(s, logger)

			u := &store.User{Username: username, DisplayName: strings.TrimSpace(displayName), PasswordHash: hash}
			if err := s.CreateUser(cmd.Context(), u); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("user %q already exists", username)
				}
				return fmt.Errorf("creating user: %w", err)
			}
			audit(cmd.Context(), s, logger, &store.AuditEntry{
				Action:     store.AuditCreateUser,
				TargetType: store.TargetUser,
				TargetID:   u.ID,
				Detail:     map[string]any{"username": u.Username},
			})

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ Created user %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&username, "username", "", "login name")
	addCmd.Flags().StringVar(&displayName, "display-name", "", "name shown in the UI")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, logger, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(s, logger)

			users, err := s.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tDISPLAY NAME\tID\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.DisplayName, u.ID, u.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(addCmd, listCmd)
	return cmd
}

// readPassword reads the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required on stdin")
	}
	return password, nil
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var username string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				return errors.New("--username is required")
			}
			cfg, s, logger, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(s, logger)

			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			u, err := s.GetUserByUsername(cmd.Context(), strings.TrimSpace(username))
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("user %q not found", username)
				}
				return err
			}

			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, _, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Issue(u, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "user the token authenticates")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	return cmd
}
