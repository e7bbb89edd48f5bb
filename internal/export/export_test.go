// ABOUTME: Tests for XLSX ledger and batch PDF export
// ABOUTME: Reads generated workbooks back with excelize and checks written PDF files

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/2389/tally/internal/pdf"
	"github.com/2389/tally/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestWriteInvoiceLedger(t *testing.T) {
	company := &store.Company{Name: "Acme"}
	invoices := []store.Invoice{
		{Number: 1, FiscalYear: 2024, IssueDate: "2024-01-02", ClientID: 7, Status: "Paid", Currency: "EUR",
			Subtotal: d("200"), TaxAmount: d("42"), DiscountAmount: d("10"), Total: d("232")},
		{Number: 2, FiscalYear: 2024, ClientID: 99, Status: "Draft", Currency: "USD",
			Subtotal: d("10.5"), TaxAmount: decimal.Zero, Total: d("10.5")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInvoiceLedger(&buf, company, invoices, map[int64]string{7: "Buyer"}, "es"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Facturas"}, f.GetSheetList())

	rows, err := f.GetRows("Facturas")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Número", rows[0][0])
	assert.Equal(t, "Total", rows[0][10])
	assert.Equal(t, "Buyer", rows[1][4])
	assert.Equal(t, "Pagada", rows[1][5])
	assert.Equal(t, "#99", rows[2][4])

	raw, err := f.GetCellValue("Facturas", "K2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "232", raw)
	raw, err = f.GetCellValue("Facturas", "H3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "10.5", raw)
}

func TestWriteInvoiceLedger_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInvoiceLedger(&buf, &store.Company{Name: "Acme"}, nil, nil, "en"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func seedStore(t *testing.T) (*store.SQLiteStore, int64) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	c := &store.Company{Name: "Acme"}
	require.NoError(t, s.CreateCompany(ctx, c))
	cl := &store.Client{Name: "Buyer"}
	require.NoError(t, s.CreateClient(ctx, c.ID, cl))

	for _, tc := range []struct{ number, year int }{{1, 2024}, {2, 2024}, {3, 2024}, {4, 2023}} {
		inv := &store.Invoice{
			CompanyID: c.ID, ClientID: cl.ID, Number: tc.number, FiscalYear: tc.year,
			Currency: "EUR", Status: "Sent", Total: d("10"),
			Items: []store.InvoiceItem{{Description: "Work", Quantity: d("1"), UnitPrice: d("10"), Total: d("10")}},
		}
		require.NoError(t, s.CreateInvoice(ctx, inv))
	}
	return s, c.ID
}

func TestExportFiscalYearPDFs(t *testing.T) {
	s, companyID := seedStore(t)
	dir := filepath.Join(t.TempDir(), "out")
	r := pdf.NewRenderer(s, "en", nil)

	var mu sync.Mutex
	seen := 0
	paths, err := ExportFiscalYearPDFs(context.Background(), s, r, BatchOptions{
		CompanyID:  companyID,
		FiscalYear: 2024,
		Dir:        dir,
		Workers:    2,
	}, func(_ int64, _ string, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.NoError(t, err)
		seen++
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
	assert.Equal(t, []string{
		filepath.Join(dir, "invoice-2024-1.pdf"),
		filepath.Join(dir, "invoice-2024-2.pdf"),
		filepath.Join(dir, "invoice-2024-3.pdf"),
	}, paths)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestExportFiscalYearPDFs_NoDir(t *testing.T) {
	s, companyID := seedStore(t)
	r := pdf.NewRenderer(s, "en", nil)

	_, err := ExportFiscalYearPDFs(context.Background(), s, r, BatchOptions{CompanyID: companyID, Dir: " "}, nil)
	assert.ErrorIs(t, err, ErrNoDir)
}

func TestExportFiscalYearPDFs_NoFiscalYear(t *testing.T) {
	s, companyID := seedStore(t)
	dir := t.TempDir()
	r := pdf.NewRenderer(s, "en", nil)

	_, err := ExportFiscalYearPDFs(context.Background(), s, r, BatchOptions{CompanyID: companyID, Dir: dir}, nil)
	assert.ErrorIs(t, err, ErrNoFiscalYear)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportFiscalYearPDFs_DuplicateNumbers(t *testing.T) {
	s, companyID := seedStore(t)
	ctx := context.Background()

	clients, err := s.ListClients(ctx, companyID, store.ClientFilter{})
	require.NoError(t, err)
	dup := &store.Invoice{
		CompanyID: companyID, ClientID: clients.Items[0].ID, Number: 1, FiscalYear: 2024,
		Currency: "EUR", Status: "Draft", Total: d("20"),
		Items: []store.InvoiceItem{{Description: "Other", Quantity: d("2"), UnitPrice: d("10"), Total: d("20")}},
	}
	require.NoError(t, s.CreateInvoice(ctx, dup))

	page, err := s.ListInvoices(ctx, companyID, store.InvoiceFilter{FiscalYear: 2024})
	require.NoError(t, err)
	var numberOne []store.Invoice
	for _, inv := range page.Items {
		if inv.Number == 1 {
			numberOne = append(numberOne, inv)
		}
	}
	require.Len(t, numberOne, 2)

	dir := t.TempDir()
	r := pdf.NewRenderer(s, "en", nil)
	paths, err := ExportFiscalYearPDFs(ctx, s, r, BatchOptions{
		CompanyID:  companyID,
		FiscalYear: 2024,
		Dir:        dir,
		Workers:    4,
	}, nil)
	require.NoError(t, err)

	require.Len(t, paths, 4)
	for _, inv := range numberOne {
		assert.Contains(t, paths, filepath.Join(dir, fmt.Sprintf("invoice-2024-1-%d.pdf", inv.ID)))
	}
	assert.Contains(t, paths, filepath.Join(dir, "invoice-2024-2.pdf"))
	assert.Contains(t, paths, filepath.Join(dir, "invoice-2024-3.pdf"))
	assert.NotContains(t, paths, filepath.Join(dir, "invoice-2024-1.pdf"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestBatchFileNames(t *testing.T) {
	names := batchFileNames([]store.Invoice{
		{ID: 10, Number: 1, FiscalYear: 2024},
		{ID: 11, Number: 2, FiscalYear: 2024},
		{ID: 12, Number: 1, FiscalYear: 2024},
		{ID: 13, Number: 1, FiscalYear: 2023},
	})
	assert.Equal(t, []string{
		"invoice-2024-1-10.pdf",
		"invoice-2024-2.pdf",
		"invoice-2024-1-12.pdf",
		"invoice-2023-1.pdf",
	}, names)
}

type failingSource struct {
	BatchSource
	err error
}

func (f failingSource) GetInvoiceDocument(context.Context, int64) (*store.InvoiceDocument, error) {
	return nil, f.err
}

func TestExportFiscalYearPDFs_PropagatesError(t *testing.T) {
	s, companyID := seedStore(t)
	boom := errors.New("boom")
	r := pdf.NewRenderer(s, "en", nil)

	_, err := ExportFiscalYearPDFs(context.Background(), failingSource{BatchSource: s, err: boom}, r, BatchOptions{
		CompanyID:  companyID,
		FiscalYear: 2024,
		Dir:        t.TempDir(),
		Workers:    4,
	}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestWriteCompanyLedger(t *testing.T) {
	s, companyID := seedStore(t)

	var buf bytes.Buffer
	err := WriteCompanyLedger(context.Background(), s, companyID, store.InvoiceFilter{FiscalYear: 2024, Limit: 1}, &buf, "en")
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Buyer", rows[1][4])

	err = WriteCompanyLedger(context.Background(), s, 999, store.InvoiceFilter{}, &buf, "en")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLedgerFileName(t *testing.T) {
	assert.Equal(t, "invoices-3.xlsx", LedgerFileName(3, 0))
	assert.Equal(t, "invoices-3-2024.xlsx", LedgerFileName(3, 2024))
}
