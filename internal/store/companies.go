// ABOUTME: Company and company-defaults persistence for the SQLite store
// ABOUTME: Deleting a company cascades through its clients, invoices, and items

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const companyColumns = `id, name, address, tax_id, icon_b64, email, phone, website, created_at, updated_at`

func scanCompany(row rowScanner) (*Company, error) {
	var c Company
	var email, phone, website sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Address,
		&c.TaxID,
		&c.IconB64,
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

func (s *SQLiteStore) queryCompanies(ctx context.Context, query string, args ...any) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying companies: %w", err)
	}
	defer rows.Close()

	companies := []Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		companies = append(companies, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating companies: %w", err)
	}
	return companies, nil
}

// ListCompanies returns all companies ordered by name
func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.queryCompanies(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name COLLATE NOCASE, id`)
}

// ListCompaniesPaged returns a window of companies, newest first, with the total count.
// A limit <= 0 returns every company.
func (s *SQLiteStore) ListCompaniesPaged(ctx context.Context, limit, offset int) (*Page[Company], error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting companies: %w", err)
	}

	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(offset, 0))
	}

	items, err := s.queryCompanies(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &Page[Company]{Items: items, Total: total}, nil
}

// GetCompany retrieves a company by ID.
// Returns ErrNotFound if the company doesn't exist.
func (s *SQLiteStore) GetCompany(ctx context.Context, id int64) (*Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying company: %w", err)
	}
	return c, nil
}

// CreateCompany inserts a company and fills in its ID and timestamps
func (s *SQLiteStore) CreateCompany(ctx context.Context, c *Company) error {
	now := time.Now().UTC().Truncate(time.Second)
	c.CreatedAt, c.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (name, address, tax_id, icon_b64, email, phone, website, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Name,
		c.Address,
		c.TaxID,
		c.IconB64,
		nullString(c.Contact.Email),
		nullString(c.Contact.Phone),
		nullString(c.Contact.Website),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting company: %w", err)
	}

	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading company id: %w", err)
	}

	s.logger.Debug("created company", "id", c.ID, "name", c.Name)
	return nil
}

// UpdateCompany overwrites every data field of an existing company.
// Returns ErrMissingID when c.ID is zero and ErrNotFound when no row matches.
func (s *SQLiteStore) UpdateCompany(ctx context.Context, c *Company) error {
	if c.ID == 0 {
		return ErrMissingID
	}

	c.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies
		SET name = ?, address = ?, tax_id = ?, icon_b64 = ?, email = ?, phone = ?, website = ?, updated_at = ?
		WHERE id = ?
	`,
		c.Name,
		c.Address,
		c.TaxID,
		c.IconB64,
		nullString(c.Contact.Email),
		nullString(c.Contact.Phone),
		nullString(c.Contact.Website),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating company: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	// CreatedAt is not part of the payload; reload it so callers see the stored row
	stored, err := s.GetCompany(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// UpdateCompanyContact replaces only the contact fields of a company
func (s *SQLiteStore) UpdateCompanyContact(ctx context.Context, id int64, contact ContactInfo) (*Company, error) {
	if id == 0 {
		return nil, ErrMissingID
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE companies SET email = ?, phone = ?, website = ?, updated_at = ? WHERE id = ?
	`,
		nullString(contact.Email),
		nullString(contact.Phone),
		nullString(contact.Website),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating company contact: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetCompany(ctx, id)
}

// DeleteCompany removes a company together with its defaults, clients,
// invoices, and invoice items in one transaction.
func (s *SQLiteStore) DeleteCompany(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			what  string
			query string
		}{
			{"invoice items", `DELETE FROM invoice_items WHERE invoice_id IN (SELECT id FROM invoices WHERE company_id = ?)`},
			{"invoices", `DELETE FROM invoices WHERE company_id = ?`},
			{"clients", `DELETE FROM clients WHERE company_id = ?`},
			{"defaults", `DELETE FROM company_defaults WHERE company_id = ?`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("deleting company %s: %w", step.what, err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting company: %w", err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted company", "id", id)
	return nil
}

// GetCompanyDefaults returns the defaults for a company, creating a USD/0%
// record on first access. Returns ErrNotFound if the company doesn't exist.
func (s *SQLiteStore) GetCompanyDefaults(ctx context.Context, companyID int64) (*CompanyDefaults, error) {
	def, err := s.getCompanyDefaults(ctx, companyID)
	if err == nil {
		return def, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}

	def = &CompanyDefaults{
		CompanyID:       companyID,
		DefaultCurrency: "USD",
		DefaultTaxRate:  decimal.Zero,
	}
	if err := s.UpdateCompanyDefaults(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *SQLiteStore) getCompanyDefaults(ctx context.Context, companyID int64) (*CompanyDefaults, error) {
	var def CompanyDefaults
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT company_id, default_currency, default_tax_rate, default_footer_text, created_at, updated_at
		FROM company_defaults
		WHERE company_id = ?
	`, companyID).Scan(
		&def.CompanyID,
		&def.DefaultCurrency,
		&def.DefaultTaxRate,
		&def.DefaultFooterText,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying company defaults: %w", err)
	}

	if def.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if def.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &def, nil
}

// UpdateCompanyDefaults inserts or updates the defaults row for def.CompanyID
func (s *SQLiteStore) UpdateCompanyDefaults(ctx context.Context, def *CompanyDefaults) error {
	if def.CompanyID == 0 {
		return ErrMissingID
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO company_defaults (company_id, default_currency, default_tax_rate, default_footer_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			default_currency = excluded.default_currency,
			default_tax_rate = excluded.default_tax_rate,
			default_footer_text = excluded.default_footer_text,
			updated_at = excluded.updated_at
	`,
		def.CompanyID,
		def.DefaultCurrency,
		def.DefaultTaxRate.String(),
		def.DefaultFooterText,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		if isConstraintViolation(err) {
			// foreign key: the company is gone
			return ErrNotFound
		}
		return fmt.Errorf("upserting company defaults: %w", err)
	}

	stored, err := s.getCompanyDefaults(ctx, def.CompanyID)
	if err != nil {
		return err
	}
	*def = *stored
	return nil
}

// requireAffected maps "zero rows changed" to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
