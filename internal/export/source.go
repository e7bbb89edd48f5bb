// ABOUTME: Loads a company's invoices and client names from the store, then writes the ledger
// ABOUTME: Shared by the HTTP download and the CLI export command

package export

import (
	"context"
	"fmt"
	"io"

	"github.com/2389/tally/internal/store"
)

// LedgerSource is the store surface a ledger export reads from.
type LedgerSource interface {
	GetCompany(ctx context.Context, id int64) (*store.Company, error)
	ListInvoices(ctx context.Context, companyID int64, f store.InvoiceFilter) (*store.Page[store.Invoice], error)
	ListClients(ctx context.Context, companyID int64, f store.ClientFilter) (*store.Page[store.Client], error)
}

// WriteCompanyLedger writes the ledger of companyID, narrowed by f, to w.
// Pagination in f is ignored; the ledger always holds every matching invoice.
func WriteCompanyLedger(ctx context.Context, src LedgerSource, companyID int64, f store.InvoiceFilter, w io.Writer, lang string) error {
	company, err := src.GetCompany(ctx, companyID)
	if err != nil {
		return err
	}
	f.Limit, f.Offset = 0, 0
	invoices, err := src.ListInvoices(ctx, companyID, f)
	if err != nil {
		return fmt.Errorf("listing invoices: %w", err)
	}
	clients, err := src.ListClients(ctx, companyID, store.ClientFilter{})
	if err != nil {
		return fmt.Errorf("listing clients: %w", err)
	}

	names := make(map[int64]string, len(clients.Items))
	for _, c := range clients.Items {
		names[c.ID] = c.Name
	}
	return WriteInvoiceLedger(w, company, invoices.Items, names, lang)
}

// LedgerFileName is the conventional file name of a ledger download.
func LedgerFileName(companyID int64, fiscalYear int) string {
	if fiscalYear > 0 {
		return fmt.Sprintf("invoices-%d-%d.xlsx", companyID, fiscalYear)
	}
	return fmt.Sprintf("invoices-%d.xlsx", companyID)
}
