// ABOUTME: Invoice and invoice-item persistence for the SQLite store
// ABOUTME: Updates sync line items (create new, update kept, delete removed) in one transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const invoiceColumns = `id, company_id, client_id, number, issue_date, due_date, fiscal_year, currency,
	subtotal, tax_rate, tax_amount, discount_amount, total, status, notes, footer_text, created_at, updated_at`

func scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	var notes sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&inv.ID,
		&inv.CompanyID,
		&inv.ClientID,
		&inv.Number,
		&inv.IssueDate,
		&inv.DueDate,
		&inv.FiscalYear,
		&inv.Currency,
		&inv.Subtotal,
		&inv.TaxRate,
		&inv.TaxAmount,
		&inv.DiscountAmount,
		&inv.Total,
		&inv.Status,
		&notes,
		&inv.FooterText,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	inv.Notes = stringPtr(notes)

	var err error
	if inv.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if inv.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

// invoiceWhere builds the shared WHERE clause for invoice listings.
func invoiceWhere(companyID int64, f InvoiceFilter) (string, []any) {
	where := `WHERE company_id = ?`
	args := []any{companyID}
	if f.FiscalYear > 0 {
		where += ` AND fiscal_year = ?`
		args = append(args, f.FiscalYear)
	}
	if f.ClientID > 0 {
		where += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	return where, args
}

// ListInvoices returns invoice headers (without items) for a company, newest first.
// FiscalYear and ClientID in the filter narrow the result when positive.
func (s *SQLiteStore) ListInvoices(ctx context.Context, companyID int64, f InvoiceFilter) (*Page[Invoice], error) {
	where, args := invoiceWhere(companyID, f)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting invoices: %w", err)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoices: %w", err)
	}

	return &Page[Invoice]{Items: invoices, Total: total}, nil
}

// GetInvoice returns a single invoice with its items in position order.
// Returns ErrNotFound if the invoice doesn't exist.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invoice: %w", err)
	}

	if inv.Items, err = s.listItems(ctx, id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *SQLiteStore) listItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit_price, total
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY position, id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("querying invoice items: %w", err)
	}
	defer rows.Close()

	items := []InvoiceItem{}
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(
			&it.ID,
			&it.InvoiceID,
			&it.Position,
			&it.Description,
			&it.Quantity,
			&it.UnitPrice,
			&it.Total,
		); err != nil {
			return nil, fmt.Errorf("scanning invoice item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice items: %w", err)
	}
	return items, nil
}

// GetInvoiceDocument loads an invoice with its items, company, and client
func (s *SQLiteStore) GetInvoiceDocument(ctx context.Context, id int64) (*InvoiceDocument, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	company, err := s.GetCompany(ctx, inv.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("loading invoice company: %w", err)
	}
	client, err := s.GetClient(ctx, inv.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading invoice client: %w", err)
	}
	return &InvoiceDocument{Invoice: *inv, Company: *company, Client: *client}, nil
}

// checkClientOwnership verifies that clientID exists and belongs to companyID.
func (s *SQLiteStore) checkClientOwnership(ctx context.Context, companyID, clientID int64) error {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if client.CompanyID != companyID {
		return ErrClientCompanyMismatch
	}
	return nil
}

// CreateInvoice inserts an invoice and its items in one transaction.
// The invoice's client must belong to the invoice's company.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if err := s.checkClientOwnership(ctx, inv.CompanyID, inv.ClientID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	inv.CreatedAt, inv.UpdatedAt = now, now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (company_id, client_id, number, issue_date, due_date, fiscal_year, currency,
				subtotal, tax_rate, tax_amount, discount_amount, total, status, notes, footer_text, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			inv.CompanyID,
			inv.ClientID,
			inv.Number,
			inv.IssueDate,
			inv.DueDate,
			inv.FiscalYear,
			inv.Currency,
			inv.Subtotal.String(),
			inv.TaxRate.String(),
			inv.TaxAmount.String(),
			inv.DiscountAmount.String(),
			inv.Total.String(),
			inv.Status,
			nullString(inv.Notes),
			inv.FooterText,
			formatTime(inv.CreatedAt),
			formatTime(inv.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting invoice: %w", err)
		}
		if inv.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading invoice id: %w", err)
		}

		for i := range inv.Items {
			inv.Items[i].ID = 0
			inv.Items[i].Position = i
			if err := insertItem(ctx, tx, inv.ID, &inv.Items[i], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created invoice", "id", inv.ID, "company_id", inv.CompanyID, "number", inv.Number, "items", len(inv.Items))
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, invoiceID int64, it *InvoiceItem, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO invoice_items (invoice_id, position, description, quantity, unit_price, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		invoiceID,
		it.Position,
		it.Description,
		it.Quantity.String(),
		it.UnitPrice.String(),
		it.Total.String(),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting invoice item: %w", err)
	}
	if it.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading invoice item id: %w", err)
	}
	it.InvoiceID = invoiceID
	return nil
}

// UpdateInvoice rewrites the invoice header and makes the stored items match inv.Items:
// items with ID 0 are created, items with an ID are updated when they belong to
// this invoice, and stored items absent from the payload are deleted.
// A zero ClientID keeps the stored client.
func (s *SQLiteStore) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.ID == 0 {
		return ErrMissingID
	}

	current, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	if inv.CompanyID == 0 {
		inv.CompanyID = current.CompanyID
	}
	if inv.ClientID == 0 {
		inv.ClientID = current.ClientID
	}
	if err := s.checkClientOwnership(ctx, inv.CompanyID, inv.ClientID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE invoices SET
				company_id = ?, client_id = ?, number = ?, issue_date = ?, due_date = ?, fiscal_year = ?,
				currency = ?, subtotal = ?, tax_rate = ?, tax_amount = ?, discount_amount = ?, total = ?,
				status = ?, notes = ?, footer_text = ?, updated_at = ?
			WHERE id = ?
		`,
			inv.CompanyID,
			inv.ClientID,
			inv.Number,
			inv.IssueDate,
			inv.DueDate,
			inv.FiscalYear,
			inv.Currency,
			inv.Subtotal.String(),
			inv.TaxRate.String(),
			inv.TaxAmount.String(),
			inv.DiscountAmount.String(),
			inv.Total.String(),
			inv.Status,
			nullString(inv.Notes),
			inv.FooterText,
			formatTime(now),
			inv.ID,
		); err != nil {
			return fmt.Errorf("updating invoice: %w", err)
		}

		return syncItems(ctx, tx, inv.ID, current.Items, inv.Items, now)
	})
	if err != nil {
		return err
	}

	stored, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	*inv = *stored

	s.logger.Debug("updated invoice", "id", inv.ID, "items", len(inv.Items))
	return nil
}

// syncItems reconciles the stored items of an invoice with the desired set.
func syncItems(ctx context.Context, tx *sql.Tx, invoiceID int64, existing, desired []InvoiceItem, now time.Time) error {
	owned := make(map[int64]struct{}, len(existing))
	for _, it := range existing {
		owned[it.ID] = struct{}{}
	}

	keep := make(map[int64]struct{}, len(desired))
	for i := range desired {
		it := &desired[i]
		it.Position = i

		_, ok := owned[it.ID]
		_, repeated := keep[it.ID]
		if it.ID == 0 || !ok || repeated {
			// New item, a foreign ID, or a repeat: one stored row per payload item
			if err := insertItem(ctx, tx, invoiceID, it, now); err != nil {
				return err
			}
			keep[it.ID] = struct{}{}
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE invoice_items
			SET position = ?, description = ?, quantity = ?, unit_price = ?, total = ?, updated_at = ?
			WHERE id = ? AND invoice_id = ?
		`,
			it.Position,
			it.Description,
			it.Quantity.String(),
			it.UnitPrice.String(),
			it.Total.String(),
			formatTime(now),
			it.ID,
			invoiceID,
		); err != nil {
			return fmt.Errorf("updating invoice item %d: %w", it.ID, err)
		}
		keep[it.ID] = struct{}{}
	}

	for id := range owned {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM invoice_items WHERE id = ? AND invoice_id = ?`, id, invoiceID,
		); err != nil {
			return fmt.Errorf("deleting invoice item %d: %w", id, err)
		}
	}
	return nil
}

// DeleteInvoice removes an invoice and its items
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, id); err != nil {
			return fmt.Errorf("deleting invoice items: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting invoice: %w", err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted invoice", "id", id)
	return nil
}

// ListFiscalYears returns the distinct positive fiscal years used by a company's invoices, newest first
func (s *SQLiteStore) ListFiscalYears(ctx context.Context, companyID int64) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT fiscal_year FROM invoices
		WHERE company_id = ? AND fiscal_year > 0
		ORDER BY fiscal_year DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying fiscal years: %w", err)
	}
	defer rows.Close()

	years := []int{}
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scanning fiscal year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// GetMaxInvoiceNumber returns the largest invoice number of a company, or 0 when it has none
func (s *SQLiteStore) GetMaxInvoiceNumber(ctx context.Context, companyID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM invoices WHERE company_id = ?`, companyID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("querying max invoice number: %w", err)
	}
	return n, nil
}
