// ABOUTME: Renders an invoice document to an A4 PDF using go-pdf/fpdf
// ABOUTME: Layout: logo and company header, invoice meta, bill-to, items table, totals, footer

// Package pdf renders invoices as printable documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/2389/tally/internal/i18n"
	"github.com/2389/tally/internal/invoicing"
	"github.com/2389/tally/internal/store"
)

// ErrEmptyPath is returned when an export is asked to write to a blank path.
var ErrEmptyPath = errors.New("output path is required")

const (
	fontFamily = "Helvetica"
	margin     = 15.0
	logoSize   = 20.0
)

// Item table columns: description, quantity, unit price, total (mm).
var colW = []float64{95, 20, 35, 25}

// LanguageSource supplies the persisted language when a caller passes none.
type LanguageSource interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Renderer lays out invoice documents.
type Renderer struct {
	settings        LanguageSource
	defaultLanguage string
	Compress        bool
	logger          *slog.Logger
}

// NewRenderer creates a renderer. settings may be nil; defaultLanguage is used
// when neither the caller nor the settings table names a language.
func NewRenderer(settings LanguageSource, defaultLanguage string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		settings:        settings,
		defaultLanguage: defaultLanguage,
		Compress:        true,
		logger:          logger.With("component", "pdf"),
	}
}

// ResolveLanguage picks the language for a document: the explicit value, then
// the persisted language setting, then the configured default.
func (r *Renderer) ResolveLanguage(ctx context.Context, lang string) string {
	if strings.TrimSpace(lang) != "" {
		return i18n.Normalize(lang)
	}
	if r.settings != nil {
		if saved, err := r.settings.GetSetting(ctx, store.SettingLanguage); err == nil && strings.TrimSpace(saved) != "" {
			return i18n.Normalize(saved)
		}
	}
	return i18n.Normalize(r.defaultLanguage)
}

// Render writes doc as a PDF to w using lang for every label.
func (r *Renderer) Render(w io.Writer, doc *store.InvoiceDocument, lang string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetTitle(fmt.Sprintf("%s %d", i18n.Tr(lang, "pdf.invoice"), doc.Invoice.Number), true)
	pdf.SetCreator("tally", true)
	pdf.AddPage()

	l := &layout{
		pdf: pdf,
		tr:  i18n.T(lang),
		enc: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	l.header(&doc.Company)
	l.meta(&doc.Invoice)
	l.billTo(&doc.Client)
	l.items(doc.Invoice.Items)
	l.totals(&doc.Invoice)
	l.footer(doc.Invoice.FooterText)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

// ExportFile renders doc to outPath, appending ".pdf" when the extension is
// missing and creating parent directories. It returns the path written.
func (r *Renderer) ExportFile(ctx context.Context, doc *store.InvoiceDocument, outPath, lang string) (string, error) {
	outPath = strings.TrimSpace(outPath)
	if outPath == "" {
		return "", ErrEmptyPath
	}
	if !strings.EqualFold(filepath.Ext(outPath), ".pdf") {
		outPath += ".pdf"
	}
	lang = r.ResolveLanguage(ctx, lang)

	// Render before touching the filesystem; a failed render leaves no file behind
	var buf bytes.Buffer
	if err := r.Render(&buf, doc, lang); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", outPath, err)
	}

	r.logger.Info("exported invoice pdf", "invoice_id", doc.Invoice.ID, "path", outPath, "lang", lang)
	return outPath, nil
}

// FileName is the conventional file name for an invoice PDF.
func FileName(inv *store.Invoice) string {
	return fmt.Sprintf("invoice-%d-%d.pdf", inv.FiscalYear, inv.Number)
}

type layout struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	enc func(string) string
}

func (l *layout) header(c *store.Company) {
	pdf := l.pdf
	x0, y0 := pdf.GetXY()

	left := x0
	if c.IconB64 != "" {
		if data, kind, err := invoicing.DecodeLogo(c.IconB64); err == nil {
			opt := fpdf.ImageOptions{ImageType: kind, ReadDpi: true}
			pdf.RegisterImageOptionsReader("company_logo", opt, bytes.NewReader(data))
			if pdf.Ok() {
				pdf.ImageOptions("company_logo", x0, y0, logoSize, logoSize, false, opt, 0, "")
				left = x0 + logoSize + 5
			} else {
				// undecodable image body: drop the logo, keep the document
				pdf.ClearError()
			}
		}
	}

	pdf.SetXY(left, y0)
	pdf.SetFont(fontFamily, "B", 14)
	pdf.CellFormat(0, 7, l.enc(c.Name), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)

	pageW, _ := pdf.GetPageSize()
	_, _, rMargin, _ := pdf.GetMargins()
	const gutter = 6.0
	colWidth := (pageW - rMargin - left - gutter) / 2
	rightX := left + colWidth + gutter
	startY := pdf.GetY()

	pdf.SetXY(left, startY)
	if c.Address != "" {
		pdf.MultiCell(colWidth, 5, l.enc(c.Address), "", "L", false)
	}
	if c.TaxID != "" {
		pdf.SetX(left)
		pdf.CellFormat(colWidth, 5, l.enc(l.tr("pdf.taxID")+": "+c.TaxID), "", 1, "L", false, 0, "")
	}
	leftEnd := pdf.GetY()

	pdf.SetXY(rightX, startY)
	for _, f := range []struct {
		key string
		val *string
	}{
		{"pdf.email", c.Contact.Email},
		{"pdf.phone", c.Contact.Phone},
		{"pdf.website", c.Contact.Website},
	} {
		if f.val == nil || strings.TrimSpace(*f.val) == "" {
			continue
		}
		pdf.SetX(rightX)
		pdf.CellFormat(colWidth, 5, l.enc(l.tr(f.key)+": "+strings.TrimSpace(*f.val)), "", 1, "L", false, 0, "")
	}

	bottom := max(leftEnd, pdf.GetY())
	if left != x0 {
		bottom = max(bottom, y0+logoSize)
	}
	pdf.SetY(bottom)
	pdf.Ln(5)
}

func (l *layout) meta(inv *store.Invoice) {
	pdf := l.pdf
	pdf.SetFont(fontFamily, "B", 12)
	pdf.CellFormat(0, 6, l.enc(l.tr("pdf.invoice")), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(95, 5, l.enc(l.tr("pdf.invoiceNumber")+": "+strconv.Itoa(inv.Number)), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, l.enc(l.tr("pdf.date")+": "+inv.IssueDate), "", 1, "L", false, 0, "")
}

func (l *layout) billTo(c *store.Client) {
	pdf := l.pdf
	pdf.Ln(4)
	pdf.SetFont(fontFamily, "B", 11)
	pdf.CellFormat(0, 6, l.enc(l.tr("pdf.billTo")), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(0, 5, l.enc(c.Name), "", 1, "L", false, 0, "")
	if c.Address != "" {
		pdf.MultiCell(0, 5, l.enc(c.Address), "", "L", false)
	}
	if c.TaxID != "" {
		pdf.CellFormat(0, 5, l.enc(c.TaxID), "", 1, "L", false, 0, "")
	}
}

func (l *layout) items(items []store.InvoiceItem) {
	pdf := l.pdf
	pdf.Ln(4)
	pdf.SetFont(fontFamily, "B", 10)
	headers := []string{l.tr("pdf.description"), l.tr("pdf.qty"), l.tr("pdf.unitPrice"), l.tr("pdf.total")}
	for i, h := range headers {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(colW[i], 7, l.enc(h), "TB", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 10)
	for _, it := range items {
		pdf.CellFormat(colW[0], 6, l.enc(it.Description), "B", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 6, it.Quantity.String(), "B", 0, "R", false, 0, "")
		pdf.CellFormat(colW[2], 6, Amount(it.UnitPrice), "B", 0, "R", false, 0, "")
		pdf.CellFormat(colW[3], 6, Amount(it.Total), "B", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}

func (l *layout) totals(inv *store.Invoice) {
	pdf := l.pdf
	pdf.Ln(2)
	rightX := margin + colW[0] + colW[1] + colW[2]
	line := func(h float64, text string) {
		pdf.SetXY(rightX, pdf.GetY())
		pdf.CellFormat(colW[3], h, l.enc(text), "", 1, "R", false, 0, "")
	}

	line(6, l.tr("pdf.subtotal")+": "+Amount(inv.Subtotal))
	line(6, l.tr("pdf.tax")+" ("+inv.TaxRate.String()+"%): "+Amount(inv.TaxAmount))
	if inv.DiscountAmount.IsPositive() {
		line(6, l.tr("pdf.discount")+": -"+Amount(inv.DiscountAmount))
	}
	pdf.SetFont(fontFamily, "B", 11)
	line(7, l.tr("pdf.grandTotal")+": "+Money(inv.Currency, inv.Total))
	pdf.SetFont(fontFamily, "", 10)
}

func (l *layout) footer(text string) {
	ft := strings.TrimSpace(text)
	if ft == "" {
		return
	}
	l.pdf.Ln(6)
	l.pdf.MultiCell(0, 5, l.enc(ft), "", "C", false)
}

// Amount formats a value with two decimals and no currency.
func Amount(v decimal.Decimal) string {
	return v.StringFixed(invoicing.MoneyPlaces)
}

// Money formats a value with two decimals, prefixed by the currency code when set.
func Money(currency string, v decimal.Decimal) string {
	if strings.TrimSpace(currency) == "" {
		return Amount(v)
	}
	return currency + " " + Amount(v)
}
