// ABOUTME: Builds prefilled, unsaved invoices for the editor
// ABOUTME: Number, dates, currency, tax, and client come from existing data

package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/2389/tally/internal/store"
)

// DraftSource is the read-only store surface NewDraft needs.
type DraftSource interface {
	GetCompanyDefaults(ctx context.Context, companyID int64) (*store.CompanyDefaults, error)
	GetMaxInvoiceNumber(ctx context.Context, companyID int64) (int, error)
	GetClient(ctx context.Context, id int64) (*store.Client, error)
	ListClients(ctx context.Context, companyID int64, f store.ClientFilter) (*store.Page[store.Client], error)
}

// DraftOptions carries the listing filters the draft should inherit.
type DraftOptions struct {
	ClientID   int64
	FiscalYear int
	Now        time.Time // zero means time.Now()
}

// NewDraft returns an invoice prefilled for companyID. It is not persisted.
func NewDraft(ctx context.Context, src DraftSource, companyID int64, opts DraftOptions) (*store.Invoice, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	def, err := src.GetCompanyDefaults(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading company defaults: %w", err)
	}

	maxNumber, err := src.GetMaxInvoiceNumber(ctx, companyID)
	if err != nil {
		return nil, err
	}

	clientID, err := draftClient(ctx, src, companyID, opts.ClientID)
	if err != nil {
		return nil, err
	}

	year := opts.FiscalYear
	if year <= 0 {
		year = now.Year()
	}

	currency := def.DefaultCurrency
	if currency == "" {
		currency = DefaultCurrency
	}
	taxRate := def.DefaultTaxRate
	if taxRate.IsNegative() {
		taxRate = decimal.Zero
	}

	today := now.Format(DateLayout)
	return &store.Invoice{
		CompanyID:  companyID,
		ClientID:   clientID,
		Number:     maxNumber + 1,
		IssueDate:  today,
		DueDate:    today,
		FiscalYear: year,
		Currency:   currency,
		TaxRate:    taxRate,
		Status:     StatusDraft,
		FooterText: def.DefaultFooterText,
		Items:      []store.InvoiceItem{},
	}, nil
}

// draftClient picks the filtered client when it belongs to the company,
// otherwise the company's first client, otherwise 0.
func draftClient(ctx context.Context, src DraftSource, companyID, wanted int64) (int64, error) {
	if wanted > 0 {
		c, err := src.GetClient(ctx, wanted)
		if err != nil {
			return 0, fmt.Errorf("loading client %d: %w", wanted, err)
		}
		if c.CompanyID != companyID {
			return 0, store.ErrClientCompanyMismatch
		}
		return c.ID, nil
	}

	page, err := src.ListClients(ctx, companyID, store.ClientFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(page.Items) == 0 {
		return 0, nil
	}
	return page.Items[0].ID, nil
}
