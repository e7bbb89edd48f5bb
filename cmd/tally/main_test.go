// ABOUTME: Tests for the tally command tree, run in-process against temp configs and databases
// ABOUTME: Exercises config init, database init, users, tokens, exports, and the color log handler

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tally/internal/auth"
	"github.com/2389/tally/internal/config"
	"github.com/2389/tally/internal/store"
)

// testEnv points config and database resolution at a temp directory.
type testEnv struct {
	dir        string
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T, configYAML string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		dbPath:     filepath.Join(dir, "tally.db"),
	}
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvDBPath, env.dbPath)
	if configYAML == "" {
		configYAML = "logging:\n  level: warn\n"
	}
	require.NoError(t, os.WriteFile(env.configPath, []byte(configYAML), 0o600))
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil))) })
	return env
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// run executes the command tree with args and returns stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) seed(t *testing.T) (companyID, invoiceID int64) {
	t.Helper()
	s, err := store.NewSQLiteStore(e.dbPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	c := &store.Company{Name: "Acme"}
	require.NoError(t, s.CreateCompany(ctx, c))
	cl := &store.Client{Name: "Buyer"}
	require.NoError(t, s.CreateClient(ctx, c.ID, cl))

	var first int64
	for n := 1; n <= 2; n++ {
		inv := &store.Invoice{
			CompanyID: c.ID, ClientID: cl.ID, Number: n, FiscalYear: 2024,
			IssueDate: "2024-05-01", Currency: "EUR", Status: "Sent",
			Subtotal: decimal.NewFromInt(10), Total: decimal.NewFromInt(10),
			Items: []store.InvoiceItem{{
				Description: "Work", Quantity: decimal.NewFromInt(1),
				UnitPrice: decimal.NewFromInt(10), Total: decimal.NewFromInt(10),
			}},
		}
		require.NoError(t, s.CreateInvoice(ctx, inv))
		if first == 0 {
			first = inv.ID
		}
	}
	return c.ID, first
}

func auditActions(t *testing.T, dbPath string) []store.AuditAction {
	t.Helper()
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.ListAuditLog(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	var actions []store.AuditAction
	for _, e := range entries {
		assert.Equal(t, cliActor, e.Actor)
		actions = append(actions, e.Action)
	}
	return actions
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t, "")
	out, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "tally version dev\n", out)
}

func TestConfigInit(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, os.Remove(env.configPath))

	out, err := env.run(t, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, env.configPath)

	cfg, err := config.Load(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8420", cfg.Server.HTTPAddr)

	_, err = env.run(t, "", "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = env.run(t, "", "config", "init", "--force")
	assert.NoError(t, err)
}

func TestInitCommand(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, env.dbPath)
	assert.Contains(t, out, "Companies: 0")
	_, err = os.Stat(env.dbPath)
	require.NoError(t, err)

	env.seed(t)
	out, err = env.run(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Companies: 1")
	assert.Contains(t, out, "Acme")

	other := filepath.Join(env.dir, "nested", "other.db")
	out, err = env.run(t, "", "init", "--db", other)
	require.NoError(t, err)
	assert.Contains(t, out, other)
	assert.Contains(t, out, config.EnvDBPath)
	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestUserCommands(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "s3cret-password\n", "user", "add", "--username", "alice", "--display-name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user alice")

	_, err = env.run(t, "another-password\n", "user", "add", "--username", "alice")
	assert.ErrorContains(t, err, "already exists")

	_, err = env.run(t, "short\n", "user", "add", "--username", "bob")
	assert.Error(t, err)

	_, err = env.run(t, "", "user", "add", "--username", "carol")
	assert.ErrorContains(t, err, "password is required")

	_, err = env.run(t, "whatever-pass\n", "user", "add")
	assert.ErrorContains(t, err, "--username is required")

	out, err = env.run(t, "", "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "bob")

	s, err := store.NewSQLiteStore(env.dbPath)
	require.NoError(t, err)
	defer s.Close()
	u, err := auth.Authenticate(context.Background(), s, "alice", "s3cret-password")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.DisplayName)

	assert.Equal(t, []store.AuditAction{store.AuditCreateUser}, auditActions(t, env.dbPath))
}

func TestTokenCommand(t *testing.T) {
	const secret = "cli-test-secret-cli-test-secret"
	env := newTestEnv(t, "auth:\n  jwt_secret: \""+secret+"\"\n")

	_, err := env.run(t, "s3cret-password\n", "user", "add", "--username", "alice")
	require.NoError(t, err)

	out, err := env.run(t, "", "token", "--username", "alice", "--ttl", "1h")
	require.NoError(t, err)
	token := strings.TrimSpace(out)

	claims, err := auth.NewJWTVerifier([]byte(secret)).Verify(token)
	require.NoError(t, err)

	s, err := store.NewSQLiteStore(env.dbPath)
	require.NoError(t, err)
	defer s.Close()
	u, err := s.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID())
	assert.Equal(t, "alice", claims.Username)

	_, err = env.run(t, "", "token", "--username", "nobody")
	assert.ErrorContains(t, err, "not found")
}

func TestTokenCommand_NoSecret(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.run(t, "", "token", "--username", "alice")
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestExportPDFCommand(t *testing.T) {
	env := newTestEnv(t, "")
	_, invoiceID := env.seed(t)

	out := filepath.Join(env.dir, "pdfs", "first")
	stdout, err := env.run(t, "", "export", "pdf", "--invoice", itoa(invoiceID), "--out", out, "--lang", "it")
	require.NoError(t, err)
	assert.Contains(t, stdout, out+".pdf")

	data, err := os.ReadFile(out + ".pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = env.run(t, "", "export", "pdf", "--invoice", "999", "--out", out)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = env.run(t, "", "export", "pdf")
	assert.ErrorContains(t, err, "--invoice is required")

	assert.Equal(t, []store.AuditAction{store.AuditExportPDF}, auditActions(t, env.dbPath))
}

func TestExportXLSXCommand(t *testing.T) {
	env := newTestEnv(t, "export:\n  dir: \""+filepath.ToSlash(filepath.Join(t.TempDir(), "exports"))+"\"\n")
	companyID, _ := env.seed(t)

	stdout, err := env.run(t, "", "export", "xlsx", "--company", itoa(companyID), "--fiscal-year", "2024")
	require.NoError(t, err)

	path := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(stdout), "✓"))
	assert.Equal(t, "invoices-"+itoa(companyID)+"-2024.xlsx", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))

	_, err = env.run(t, "", "export", "xlsx", "--company", "999", "--out", filepath.Join(env.dir, "x.xlsx"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExportBatchCommand(t *testing.T) {
	env := newTestEnv(t, "")
	companyID, _ := env.seed(t)
	dir := filepath.Join(env.dir, "batch")

	stdout, err := env.run(t, "", "export", "batch", "--company", itoa(companyID), "--fiscal-year", "2024", "--dir", dir, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 invoice(s) exported")

	for _, name := range []string{"invoice-2024-1.pdf", "invoice-2024-2.pdf"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	_, err = env.run(t, "", "export", "batch", "--company", itoa(companyID))
	assert.ErrorContains(t, err, "--fiscal-year is required")
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.With("component", "pdf").WithGroup("req").Warn("slow render", "ms", 1200)

	line := buf.String()
	assert.NotContains(t, line, "hidden")
	assert.Contains(t, line, "WRN")
	assert.Contains(t, line, "slow render")
	assert.Contains(t, line, "component=")
	assert.Contains(t, line, "req.ms=")
	assert.Contains(t, line, "1200")
	assert.Equal(t, 1, strings.Count(line, "\n"))
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("ready", "port", 8420, "at", time.Unix(0, 0).UTC())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ready", rec["msg"])
	assert.EqualValues(t, 8420, rec["port"])
}
