// ABOUTME: Store interfaces and data types for tally persistence
// ABOUTME: Defines Company, Client, Invoice records and the operations over them

package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrMissingID is returned when an operation needs a primary key that was not set
	ErrMissingID = errors.New("missing id")

	// ErrClientCompanyMismatch is returned when an invoice references a client of another company
	ErrClientCompanyMismatch = errors.New("client does not belong to company")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("already exists")
)

// ContactInfo is stored inline on companies and clients. Nil means unset.
type ContactInfo struct {
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Website *string `json:"website"`
}

// Company is the seller.
type Company struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Address   string      `json:"address"`
	TaxID     string      `json:"tax_id"`
	IconB64   string      `json:"icon_b64,omitempty"` // base64 PNG or JPEG logo
	Contact   ContactInfo `json:"contact"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CompanyDefaults holds per-company presets for new invoices (one-to-one).
type CompanyDefaults struct {
	CompanyID         int64           `json:"company_id"`
	DefaultCurrency   string          `json:"default_currency"` // ISO 4217
	DefaultTaxRate    decimal.Decimal `json:"default_tax_rate"` // percentage, e.g. 21
	DefaultFooterText string          `json:"default_footer_text"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Client is the buyer.
type Client struct {
	ID        int64       `json:"id"`
	CompanyID int64       `json:"company_id"`
	Name      string      `json:"name"`
	Address   string      `json:"address"`
	TaxID     string      `json:"tax_id"`
	Contact   ContactInfo `json:"contact"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Invoice is a bill issued by a company to one of its clients.
type Invoice struct {
	ID        int64 `json:"id"`
	CompanyID int64 `json:"company_id"`
	ClientID  int64 `json:"client_id"`

	Number     int    `json:"number"`
	IssueDate  string `json:"issue_date"` // YYYY-MM-DD
	DueDate    string `json:"due_date"`   // YYYY-MM-DD
	FiscalYear int    `json:"fiscal_year"`

	Currency       string          `json:"currency"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"` // percentage
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"` // absolute, invoice level
	Total          decimal.Decimal `json:"total"`

	Status     string  `json:"status"`
	Notes      *string `json:"notes"`
	FooterText string  `json:"footer_text"`

	Items []InvoiceItem `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceItem is a single line of an invoice.
type InvoiceItem struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"` // fractional quantities allowed (hours)
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceDocument is an invoice with the parties it names, used for rendering.
type InvoiceDocument struct {
	Invoice Invoice
	Company Company
	Client  Client
}

// Page is one window of a paginated listing plus the unpaginated total.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// InvoiceFilter narrows invoice listings. Zero values disable a filter;
// Limit <= 0 returns everything.
type InvoiceFilter struct {
	FiscalYear int
	ClientID   int64
	Limit      int
	Offset     int
}

// ClientFilter narrows client listings. Query matches names case-insensitively.
type ClientFilter struct {
	Query  string
	Limit  int
	Offset int
}

// CompanyStore persists companies and their defaults
type CompanyStore interface {
	ListCompanies(ctx context.Context) ([]Company, error)
	ListCompaniesPaged(ctx context.Context, limit, offset int) (*Page[Company], error)
	GetCompany(ctx context.Context, id int64) (*Company, error)
	CreateCompany(ctx context.Context, c *Company) error
	UpdateCompany(ctx context.Context, c *Company) error
	UpdateCompanyContact(ctx context.Context, id int64, contact ContactInfo) (*Company, error)
	DeleteCompany(ctx context.Context, id int64) error

	GetCompanyDefaults(ctx context.Context, companyID int64) (*CompanyDefaults, error)
	UpdateCompanyDefaults(ctx context.Context, def *CompanyDefaults) error
}

// ClientStore persists clients
type ClientStore interface {
	ListClients(ctx context.Context, companyID int64, f ClientFilter) (*Page[Client], error)
	GetClient(ctx context.Context, id int64) (*Client, error)
	CreateClient(ctx context.Context, companyID int64, c *Client) error
	UpdateClient(ctx context.Context, c *Client) error
	DeleteClient(ctx context.Context, id int64) error
}

// InvoiceStore persists invoices and their items
type InvoiceStore interface {
	ListInvoices(ctx context.Context, companyID int64, f InvoiceFilter) (*Page[Invoice], error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceDocument(ctx context.Context, id int64) (*InvoiceDocument, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, id int64) error
	ListFiscalYears(ctx context.Context, companyID int64) ([]int, error)
	GetMaxInvoiceNumber(ctx context.Context, companyID int64) (int, error)
}

// SettingsStore is a small key/value table for application settings
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store is the full persistence surface used by the server and CLI
type Store interface {
	CompanyStore
	ClientStore
	InvoiceStore
	SettingsStore
	UserStore
	AuditStore

	// Ping verifies the database is reachable and usable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
