// ABOUTME: Renders an HTML preview of an invoice with embedded templates
// ABOUTME: Notes are Markdown converted by goldmark; raw HTML in notes is never emitted

// Package preview renders invoices as standalone HTML pages.
package preview

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/tally/internal/i18n"
	"github.com/2389/tally/internal/invoicing"
	"github.com/2389/tally/internal/pdf"
	"github.com/2389/tally/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var invoiceTmpl = template.Must(template.ParseFS(templateFS, "templates/invoice.html"))

// goldmark without html.WithUnsafe drops raw HTML blocks and dangerous links
var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify))

type contactLine struct {
	Label string
	Value string
}

type itemRow struct {
	Description string
	Quantity    string
	UnitPrice   string
	Total       string
}

type invoicePage struct {
	Lang    string
	Company store.Company
	Client  store.Client
	Invoice store.Invoice
	LogoSrc template.URL
	Contact []contactLine
	Status  string
	Items   []itemRow

	Subtotal  string
	TaxAmount string
	Discount  string
	Total     string
	Notes     template.HTML

	tr func(string) string
}

// T translates a label; called from the template.
func (p invoicePage) T(key string) string { return p.tr(key) }

// Markdown converts Markdown to HTML. Raw HTML in the source is omitted.
func Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Render writes the HTML preview of doc to w.
func Render(w io.Writer, doc *store.InvoiceDocument, lang string) error {
	lang = i18n.Normalize(lang)
	tr := i18n.T(lang)
	inv := doc.Invoice

	page := invoicePage{
		Lang:      lang,
		Company:   doc.Company,
		Client:    doc.Client,
		Invoice:   inv,
		Status:    i18n.TranslateStatus(lang, inv.Status),
		Subtotal:  pdf.Amount(inv.Subtotal),
		TaxAmount: pdf.Amount(inv.TaxAmount),
		Total:     pdf.Money(inv.Currency, inv.Total),
		tr:        tr,
	}
	if inv.DiscountAmount.IsPositive() {
		page.Discount = pdf.Amount(inv.DiscountAmount)
	}

	if doc.Company.IconB64 != "" {
		if _, kind, err := invoicing.DecodeLogo(doc.Company.IconB64); err == nil {
			mime := "image/png"
			if kind == "JPG" {
				mime = "image/jpeg"
			}
			page.LogoSrc = template.URL("data:" + mime + ";base64," + strings.TrimSpace(doc.Company.IconB64))
		}
	}

	for _, f := range []struct {
		key string
		val *string
	}{
		{"pdf.email", doc.Company.Contact.Email},
		{"pdf.phone", doc.Company.Contact.Phone},
		{"pdf.website", doc.Company.Contact.Website},
	} {
		if f.val != nil && strings.TrimSpace(*f.val) != "" {
			page.Contact = append(page.Contact, contactLine{Label: tr(f.key), Value: strings.TrimSpace(*f.val)})
		}
	}

	for _, it := range inv.Items {
		page.Items = append(page.Items, itemRow{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   pdf.Amount(it.UnitPrice),
			Total:       pdf.Amount(it.Total),
		})
	}

	if inv.Notes != nil && strings.TrimSpace(*inv.Notes) != "" {
		notes, err := Markdown(*inv.Notes)
		if err != nil {
			return err
		}
		page.Notes = notes
	}

	if err := invoiceTmpl.Execute(w, page); err != nil {
		return fmt.Errorf("rendering preview: %w", err)
	}
	return nil
}
