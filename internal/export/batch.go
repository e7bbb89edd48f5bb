// ABOUTME: Renders every invoice of a fiscal year to PDF files concurrently
// ABOUTME: Bounded by an errgroup limit; the first failure cancels the remaining work

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/2389/tally/internal/pdf"
	"github.com/2389/tally/internal/store"
)

// Batch export errors
var (
	ErrNoDir        = errors.New("output directory is required")
	ErrNoFiscalYear = errors.New("fiscal year is required")
)

// BatchSource is the store surface a batch export reads from.
type BatchSource interface {
	ListInvoices(ctx context.Context, companyID int64, f store.InvoiceFilter) (*store.Page[store.Invoice], error)
	GetInvoiceDocument(ctx context.Context, id int64) (*store.InvoiceDocument, error)
}

// BatchOptions selects the invoices to export and where to put them.
type BatchOptions struct {
	CompanyID  int64
	FiscalYear int
	Dir        string
	Lang       string
	Workers    int // <= 0 means 1
}

// FileResult reports one rendered file; callers use it for metrics.
type FileResult func(invoiceID int64, path string, err error)

// ExportFiscalYearPDFs writes invoice-<year>-<number>.pdf for every invoice of
// the year into opts.Dir and returns the written paths, sorted. Invoices that
// share a number get their ID appended so no file overwrites another.
func ExportFiscalYearPDFs(ctx context.Context, src BatchSource, r *pdf.Renderer, opts BatchOptions, onFile FileResult) ([]string, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, ErrNoDir
	}
	if opts.FiscalYear <= 0 {
		return nil, ErrNoFiscalYear
	}
	workers := max(opts.Workers, 1)

	page, err := src.ListInvoices(ctx, opts.CompanyID, store.InvoiceFilter{FiscalYear: opts.FiscalYear})
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	lang := r.ResolveLanguage(ctx, opts.Lang)

	logger := slog.Default().With("component", "export")
	logger.Info("starting batch pdf export",
		"company_id", opts.CompanyID,
		"fiscal_year", opts.FiscalYear,
		"invoices", len(page.Items),
		"workers", workers,
	)

	names := batchFileNames(page.Items)
	paths := make([]string, len(page.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, inv := range page.Items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := exportOne(gctx, src, r, inv.ID, filepath.Join(dir, names[i]), lang)
			if onFile != nil {
				onFile(inv.ID, path, err)
			}
			if err != nil {
				return fmt.Errorf("invoice %d: %w", inv.Number, err)
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("batch pdf export failed", "error", err)
		return nil, err
	}

	sort.Strings(paths)
	logger.Info("batch pdf export finished", "files", len(paths), "dir", dir)
	return paths, nil
}

// batchFileNames names each invoice's PDF. Names that would collide carry
// the invoice ID: invoice-<year>-<number>-<id>.pdf.
func batchFileNames(invoices []store.Invoice) []string {
	seen := make(map[string]int, len(invoices))
	for i := range invoices {
		seen[pdf.FileName(&invoices[i])]++
	}

	names := make([]string, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		name := pdf.FileName(inv)
		if seen[name] > 1 {
			name = fmt.Sprintf("invoice-%d-%d-%d.pdf", inv.FiscalYear, inv.Number, inv.ID)
		}
		names[i] = name
	}
	return names
}

func exportOne(ctx context.Context, src BatchSource, r *pdf.Renderer, invoiceID int64, path, lang string) (string, error) {
	doc, err := src.GetInvoiceDocument(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	return r.ExportFile(ctx, doc, path, lang)
}
