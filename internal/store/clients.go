// ABOUTME: Client persistence for the SQLite store
// ABOUTME: Listing supports name search and limit/offset pagination per company

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const clientColumns = `id, company_id, name, address, tax_id, email, phone, website, created_at, updated_at`

func scanClient(row rowScanner) (*Client, error) {
	var c Client
	var email, phone, website sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&c.ID,
		&c.CompanyID,
		&c.Name,
		&c.Address,
		&c.TaxID,
		&email,
		&phone,
		&website,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	c.Contact = ContactInfo{Email: stringPtr(email), Phone: stringPtr(phone), Website: stringPtr(website)}

	var err error
	if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns the clients of a company in creation order.
// f.Query filters by a case-insensitive substring of the name. Matching folds
// Unicode case in Go; SQLite's LIKE only folds ASCII.
func (s *SQLiteStore) ListClients(ctx context.Context, companyID int64, f ClientFilter) (*Page[Client], error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE company_id = ? ORDER BY id ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer rows.Close()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	clients := []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning client: %w", err)
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) {
			continue
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating clients: %w", err)
	}

	total := int64(len(clients))
	if f.Limit > 0 {
		lo := min(max(f.Offset, 0), len(clients))
		hi := min(lo+f.Limit, len(clients))
		clients = clients[lo:hi]
	}
	return &Page[Client]{Items: clients, Total: total}, nil
}

// GetClient retrieves a client by ID.
// Returns ErrNotFound if the client doesn't exist.
func (s *SQLiteStore) GetClient(ctx context.Context, id int64) (*Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}
	return c, nil
}

// CreateClient inserts a client owned by companyID.
// Returns ErrNotFound if the company doesn't exist.
func (s *SQLiteStore) CreateClient(ctx context.Context, companyID int64, c *Client) error {
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	c.CompanyID = companyID
	c.CreatedAt, c.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (company_id, name, address, tax_id, email, phone, website, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.CompanyID,
		c.Name,
		c.Address,
		c.TaxID,
		nullString(c.Contact.Email),
		nullString(c.Contact.Phone),
		nullString(c.Contact.Website),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting client: %w", err)
	}

	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading client id: %w", err)
	}

	s.logger.Debug("created client", "id", c.ID, "company_id", companyID)
	return nil
}

// UpdateClient overwrites the data fields of an existing client.
// The owning company never changes.
func (s *SQLiteStore) UpdateClient(ctx context.Context, c *Client) error {
	if c.ID == 0 {
		return ErrMissingID
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = ?, address = ?, tax_id = ?, email = ?, phone = ?, website = ?, updated_at = ?
		WHERE id = ?
	`,
		c.Name,
		c.Address,
		c.TaxID,
		nullString(c.Contact.Email),
		nullString(c.Contact.Phone),
		nullString(c.Contact.Website),
		formatTime(time.Now()),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating client: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	stored, err := s.GetClient(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// DeleteClient removes a client together with its invoices and their items
func (s *SQLiteStore) DeleteClient(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM invoice_items WHERE invoice_id IN (SELECT id FROM invoices WHERE client_id = ?)`, id,
		); err != nil {
			return fmt.Errorf("deleting client invoice items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE client_id = ?`, id); err != nil {
			return fmt.Errorf("deleting client invoices: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting client: %w", err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted client", "id", id)
	return nil
}
