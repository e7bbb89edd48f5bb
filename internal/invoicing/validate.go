// ABOUTME: Validation rules for companies, clients, and invoices
// ABOUTME: Failures are *ValidationError so the HTTP layer can answer 422

package invoicing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/2389/tally/internal/store"
)

// DateLayout is the only accepted date format. Empty dates are allowed.
const DateLayout = "2006-01-02"

// ValidationError describes the first invalid field of a record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}
)

// DecodeLogo decodes a base64 logo and reports its image type ("PNG" or "JPG").
func DecodeLogo(b64 string) ([]byte, string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, "", err
	}
	switch {
	case bytes.HasPrefix(data, jpegSignature):
		return data, "JPG", nil
	case bytes.HasPrefix(data, pngSignature):
		return data, "PNG", nil
	default:
		return nil, "", errors.New("logo must be a PNG or JPEG image")
	}
}

// ValidateCompany checks a company before it is stored.
func ValidateCompany(c *store.Company) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalid("name", "is required")
	}
	if c.IconB64 != "" {
		if _, _, err := DecodeLogo(c.IconB64); err != nil {
			return invalid("icon_b64", "must be a base64 PNG or JPEG image")
		}
	}
	return nil
}

// ValidateClient checks a client before it is stored.
func ValidateClient(c *store.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalid("name", "is required")
	}
	return nil
}

// ValidateDefaults checks and normalizes company defaults.
func ValidateDefaults(def *store.CompanyDefaults) error {
	cur, err := NormalizeCurrency(def.DefaultCurrency)
	if err != nil {
		return invalid("default_currency", "must be a 3-letter code")
	}
	def.DefaultCurrency = cur
	if !validRate(def.DefaultTaxRate) {
		return invalid("default_tax_rate", "must be between 0 and 100")
	}
	return nil
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(hundred)
}

func parseDate(field, s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false, invalid(field, "must be a YYYY-MM-DD date")
	}
	return t, true, nil
}

// Validate checks an invoice before it is stored and normalizes its currency.
// It returns the first problem found.
func Validate(inv *store.Invoice) error {
	if inv.CompanyID <= 0 {
		return invalid("company_id", "is required")
	}
	if inv.ClientID <= 0 {
		return invalid("client_id", "is required")
	}
	if inv.Number < 1 {
		return invalid("number", "must be at least 1")
	}
	if inv.FiscalYear < 0 {
		return invalid("fiscal_year", "must not be negative")
	}

	issue, hasIssue, err := parseDate("issue_date", inv.IssueDate)
	if err != nil {
		return err
	}
	due, hasDue, err := parseDate("due_date", inv.DueDate)
	if err != nil {
		return err
	}
	if hasIssue && hasDue && due.Before(issue) {
		return invalid("due_date", "must not be before the issue date")
	}

	cur, err := NormalizeCurrency(inv.Currency)
	if err != nil {
		return invalid("currency", "must be a 3-letter code")
	}
	inv.Currency = cur

	if !validRate(inv.TaxRate) {
		return invalid("tax_rate", "must be between 0 and 100")
	}
	if inv.DiscountAmount.IsNegative() {
		return invalid("discount_amount", "must not be negative")
	}
	if !ValidStatus(inv.Status) {
		return invalid("status", "must be one of "+strings.Join(Statuses, ", "))
	}

	seen := make(map[int64]int, len(inv.Items))
	for i, it := range inv.Items {
		if it.ID != 0 {
			if first, dup := seen[it.ID]; dup {
				return invalid(itemField(i, "id"), "duplicates "+itemField(first, "id"))
			}
			seen[it.ID] = i
		}
		if strings.TrimSpace(it.Description) == "" {
			return invalid(itemField(i, "description"), "is required")
		}
		if it.Quantity.IsNegative() {
			return invalid(itemField(i, "quantity"), "must not be negative")
		}
		if it.UnitPrice.IsNegative() {
			return invalid(itemField(i, "unit_price"), "must not be negative")
		}
	}
	return nil
}

func itemField(i int, name string) string {
	return "items[" + itoa(i) + "]." + name
}
