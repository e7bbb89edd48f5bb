// ABOUTME: Invoice statuses, currency codes, and select-option helpers
// ABOUTME: Shared by validation, the options endpoint, and document rendering

package invoicing

import (
	"fmt"
	"slices"
	"strings"
)

// Invoice statuses
const (
	StatusDraft   = "Draft"
	StatusPending = "Pending"
	StatusSent    = "Sent"
	StatusPaid    = "Paid"
	StatusVoid    = "Void"

	// StatusOverdue appears in older databases. It is displayed but never accepted on write.
	StatusOverdue = "Overdue"
)

// Statuses lists the statuses an invoice may be saved with, in display order.
var Statuses = []string{StatusDraft, StatusPending, StatusSent, StatusPaid, StatusVoid}

// CommonCurrencies are the ISO 4217 codes offered by default.
var CommonCurrencies = []string{"EUR", "USD", "GBP", "JPY", "AUD", "CAD", "CHF", "CNY", "SEK", "NZD"}

// DefaultCurrency is used when a company has no defaults yet.
const DefaultCurrency = "USD"

// ValidStatus reports whether s may be written to an invoice.
func ValidStatus(s string) bool {
	return slices.Contains(Statuses, s)
}

// KnownStatus reports whether s is a status that may be found in storage.
func KnownStatus(s string) bool {
	return ValidStatus(s) || s == StatusOverdue
}

// NormalizeCurrency trims and uppercases a currency code and checks that it
// has the shape of an ISO 4217 code. Codes outside CommonCurrencies are allowed.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("currency %q must be a 3-letter code", code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency %q must be a 3-letter code", code)
		}
	}
	return c, nil
}

// WithCurrentFirst returns options with current prepended when it is not
// already present. Blank values leave the list unchanged. The input slice is
// never modified.
func WithCurrentFirst(options []string, current string) []string {
	out := slices.Clone(options)
	cur := strings.TrimSpace(current)
	if cur == "" || slices.Contains(options, cur) {
		return out
	}
	return append([]string{cur}, out...)
}
