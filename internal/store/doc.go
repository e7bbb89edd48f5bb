// Package store provides persistent storage for tally using SQLite.
//
// # Architecture
//
// Persistence is split into small interfaces, all implemented by SQLiteStore:
//
//   - CompanyStore: companies and their one-to-one invoice defaults
//   - ClientStore: clients, always owned by a company
//   - InvoiceStore: invoices with their ordered line items
//   - SettingsStore: key/value application settings
//   - UserStore: API users with bcrypt password hashes
//   - AuditStore: append-only log of mutations
//
// Store embeds all of them and is what the server and CLI depend on.
//
// # Money
//
// Amounts are shopspring/decimal values stored as TEXT so that no float
// rounding ever happens between the API and the database. The store never
// computes totals; callers run them through the invoicing package first.
//
// # SQLite Configuration
//
// Every connection is opened with foreign_keys and busy_timeout pragmas, and
// file databases use WAL. ":memory:" opens a private database pinned to a
// single connection, which is what tests use.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrMissingID: an update was called without a primary key
//   - ErrClientCompanyMismatch: an invoice names a client of another company
//   - ErrDuplicate: a unique constraint (such as username) was violated
//
// All methods accept context.Context for cancellation support.
//
// # Migrations
//
// Tables are created with CREATE TABLE IF NOT EXISTS. Columns added later are
// applied by runMigrations after checking pragma_table_info, so opening an
// older database upgrades it in place.
package store
