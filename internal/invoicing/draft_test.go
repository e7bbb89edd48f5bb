// ABOUTME: Tests for draft invoice prefill
// ABOUTME: Uses a real SQLite store to check numbering, defaults, and client selection

package invoicing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tally/internal/store"
)

func setupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewDraft_EmptyCompany(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := &store.Company{Name: "Acme"}
	require.NoError(t, s.CreateCompany(ctx, c))

	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	draft, err := NewDraft(ctx, s, c.ID, DraftOptions{Now: now})
	require.NoError(t, err)

	assert.Equal(t, c.ID, draft.CompanyID)
	assert.Zero(t, draft.ClientID)
	assert.Equal(t, 1, draft.Number)
	assert.Equal(t, 2025, draft.FiscalYear)
	assert.Equal(t, "2025-06-15", draft.IssueDate)
	assert.Equal(t, "2025-06-15", draft.DueDate)
	assert.Equal(t, "USD", draft.Currency)
	assert.True(t, draft.TaxRate.IsZero())
	assert.Equal(t, StatusDraft, draft.Status)
	assert.Empty(t, draft.Items)
	assert.Zero(t, draft.ID, "drafts are never persisted")
}

func TestNewDraft_UsesDefaultsAndFilters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := &store.Company{Name: "Acme"}
	require.NoError(t, s.CreateCompany(ctx, c))
	require.NoError(t, s.UpdateCompanyDefaults(ctx, &store.CompanyDefaults{
		CompanyID:         c.ID,
		DefaultCurrency:   "EUR",
		DefaultTaxRate:    d("21"),
		DefaultFooterText: "IBAN ES00",
	}))

	first := &store.Client{Name: "First"}
	second := &store.Client{Name: "Second"}
	require.NoError(t, s.CreateClient(ctx, c.ID, first))
	require.NoError(t, s.CreateClient(ctx, c.ID, second))

	inv := &store.Invoice{CompanyID: c.ID, ClientID: first.ID, Number: 41, Currency: "EUR", Status: StatusDraft}
	require.NoError(t, s.CreateInvoice(ctx, inv))

	draft, err := NewDraft(ctx, s, c.ID, DraftOptions{ClientID: first.ID, FiscalYear: 2023})
	require.NoError(t, err)
	assert.Equal(t, 42, draft.Number)
	assert.Equal(t, 2023, draft.FiscalYear)
	assert.Equal(t, first.ID, draft.ClientID)
	assert.Equal(t, "EUR", draft.Currency)
	assert.True(t, draft.TaxRate.Equal(d("21")))
	assert.Equal(t, "IBAN ES00", draft.FooterText)

	// Without a client filter the first client created is picked
	draft, err = NewDraft(ctx, s, c.ID, DraftOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, draft.ClientID)
}

func TestNewDraft_Errors(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := NewDraft(ctx, s, 99, DraftOptions{})
	assert.ErrorIs(t, err, store.ErrNotFound)

	a := &store.Company{Name: "A"}
	b := &store.Company{Name: "B"}
	require.NoError(t, s.CreateCompany(ctx, a))
	require.NoError(t, s.CreateCompany(ctx, b))
	foreign := &store.Client{Name: "B's client"}
	require.NoError(t, s.CreateClient(ctx, b.ID, foreign))

	_, err = NewDraft(ctx, s, a.ID, DraftOptions{ClientID: foreign.ID})
	assert.ErrorIs(t, err, store.ErrClientCompanyMismatch)
}
