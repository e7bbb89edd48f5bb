// ABOUTME: Tests for invoice money arithmetic
// ABOUTME: Covers rounding, discounts, negative totals, and in-place recomputation

package invoicing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/2389/tally/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(qty, price string) store.InvoiceItem {
	return store.InvoiceItem{Description: "x", Quantity: d(qty), UnitPrice: d(price)}
}

func TestItemTotal_RoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.01", ItemTotal(d("1"), d("0.005")).StringFixed(2))
	assert.Equal(t, "3.33", ItemTotal(d("3"), d("1.111")).StringFixed(2))
	assert.Equal(t, "-0.01", ItemTotal(d("-1"), d("0.005")).StringFixed(2))
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		items    []store.InvoiceItem
		rate     string
		discount string
		subtotal string
		tax      string
		total    string
	}{
		{"empty", nil, "21", "0", "0.00", "0.00", "0.00"},
		{"simple", []store.InvoiceItem{item("2", "50"), item("1", "100")}, "21", "0", "200.00", "42.00", "242.00"},
		{"fractional hours", []store.InvoiceItem{item("1.5", "80")}, "10", "20", "120.00", "12.00", "112.00"},
		{"tax rounding", []store.InvoiceItem{item("1", "10.05")}, "5", "0", "10.05", "0.50", "10.55"},
		{"negative total", []store.InvoiceItem{item("1", "10")}, "0", "25", "10.00", "0.00", "-15.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.items, d(tt.rate), d(tt.discount))
			assert.Equal(t, tt.subtotal, got.Subtotal.StringFixed(2))
			assert.Equal(t, tt.tax, got.TaxAmount.StringFixed(2))
			assert.Equal(t, tt.total, got.Total.StringFixed(2))
		})
	}
}

func TestCalculate_SubtotalSumsRoundedItems(t *testing.T) {
	// 3 x 0.335 = 1.005 -> 1.01 per item; the subtotal sums rounded values
	items := []store.InvoiceItem{item("3", "0.335"), item("3", "0.335")}
	got := Calculate(items, decimal.Zero, decimal.Zero)
	assert.Equal(t, "2.02", got.Subtotal.StringFixed(2))
}

func TestApply_OverwritesClientTotals(t *testing.T) {
	inv := &store.Invoice{
		TaxRate:        d("20"),
		DiscountAmount: d("5"),
		Subtotal:       d("9999"),
		Total:          d("9999"),
		Items: []store.InvoiceItem{
			{Description: "a", Quantity: d("2"), UnitPrice: d("12.5"), Total: d("1")},
		},
	}

	Apply(inv)

	assert.Equal(t, "25.00", inv.Items[0].Total.StringFixed(2))
	assert.Equal(t, "25.00", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "25.00", inv.Total.StringFixed(2))
}
