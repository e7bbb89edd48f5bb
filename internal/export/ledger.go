// ABOUTME: Writes a company's invoices as an XLSX ledger using excelize
// ABOUTME: One header row of translated labels, one row per invoice, numeric amount cells

// Package export produces bulk outputs: spreadsheet ledgers and batches of invoice PDFs.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/2389/tally/internal/i18n"
	"github.com/2389/tally/internal/store"
)

// ledgerColumns are the i18n keys of the ledger header, in column order.
var ledgerColumns = []string{
	"ledger.number",
	"ledger.fiscalYear",
	"ledger.issueDate",
	"ledger.dueDate",
	"ledger.client",
	"ledger.status",
	"ledger.currency",
	"ledger.subtotal",
	"ledger.tax",
	"ledger.discount",
	"ledger.total",
}

// first amount column (H) and last (K), 1-based
const (
	firstAmountCol = 8
	lastAmountCol  = 11
)

// WriteInvoiceLedger writes invoices to w as an XLSX workbook. clientNames maps
// client IDs to display names; unknown IDs are written as "#<id>".
func WriteInvoiceLedger(w io.Writer, company *store.Company, invoices []store.Invoice, clientNames map[int64]string, lang string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := i18n.Tr(lang, "ledger.sheet")
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: company.Name, Creator: "tally"}); err != nil {
		return fmt.Errorf("setting document properties: %w", err)
	}

	header := make([]any, len(ledgerColumns))
	for i, key := range ledgerColumns {
		header[i] = i18n.Tr(lang, key)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(ledgerColumns), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, inv := range invoices {
		client, ok := clientNames[inv.ClientID]
		if !ok {
			client = fmt.Sprintf("#%d", inv.ClientID)
		}
		row := []any{
			inv.Number,
			inv.FiscalYear,
			inv.IssueDate,
			inv.DueDate,
			client,
			i18n.TranslateStatus(lang, inv.Status),
			inv.Currency,
			inv.Subtotal.InexactFloat64(),
			inv.TaxAmount.InexactFloat64(),
			inv.DiscountAmount.InexactFloat64(),
			inv.Total.InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing invoice %d: %w", inv.Number, err)
		}
	}

	if len(invoices) > 0 {
		// 0.00 number format
		money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
		if err != nil {
			return fmt.Errorf("creating amount style: %w", err)
		}
		from, _ := excelize.CoordinatesToCellName(firstAmountCol, 2)
		to, _ := excelize.CoordinatesToCellName(lastAmountCol, len(invoices)+1)
		if err := f.SetCellStyle(sheet, from, to, money); err != nil {
			return fmt.Errorf("styling amounts: %w", err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "K", 14); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetColWidth(sheet, "E", "E", 28); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
