// ABOUTME: Invoice money arithmetic on shopspring/decimal
// ABOUTME: subtotal = sum(qty*price), tax = subtotal*rate/100, total = subtotal+tax-discount

package invoicing

import (
	"github.com/shopspring/decimal"

	"github.com/2389/tally/internal/store"
)

// MoneyPlaces is the number of decimal places every stored amount is rounded to.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Totals are the computed amounts of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// ItemTotal returns qty*price rounded to cents, half away from zero.
func ItemTotal(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Round(MoneyPlaces)
}

// Calculate computes invoice totals from its items. The subtotal is the sum of
// the rounded item totals. A zero discount means none; the total is not clamped
// and may be negative when the discount exceeds subtotal plus tax.
func Calculate(items []store.InvoiceItem, taxRate, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(ItemTotal(it.Quantity, it.UnitPrice))
	}

	tax := subtotal.Mul(taxRate).Div(hundred).Round(MoneyPlaces)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax).Sub(discount),
	}
}

// Apply recomputes every item total and the invoice totals in place.
// Whatever totals the caller supplied are overwritten.
func Apply(inv *store.Invoice) {
	for i := range inv.Items {
		inv.Items[i].Total = ItemTotal(inv.Items[i].Quantity, inv.Items[i].UnitPrice)
	}
	t := Calculate(inv.Items, inv.TaxRate, inv.DiscountAmount)
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.Total = t.Total
}
