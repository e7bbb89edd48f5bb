// ABOUTME: HTTP handlers for companies, their contact details, and invoice defaults
// ABOUTME: Company deletes cascade to clients and invoices inside the store

package server

import (
	"net/http"

	"github.com/2389/tally/internal/events"
	"github.com/2389/tally/internal/invoicing"
	"github.com/2389/tally/internal/store"
)

// handleListCompanies handles GET /api/companies?limit&offset. A zero limit returns all.
func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	page, err := s.store.ListCompaniesPaged(r.Context(), limit, offset)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var c store.Company
	if err := decodeJSON(w, r, &c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if c.ID != 0 {
		s.handleError(w, r, badRequest("id must not be set when creating a company"))
		return
	}
	if err := invoicing.ValidateCompany(&c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.CreateCompany(r.Context(), &c); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.recordChange(r, store.AuditCreateCompany, store.TargetCompany, c.ID, c.ID, events.KindCompany, events.ActionCreated,
		map[string]any{"name": c.Name})
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	c, err := s.store.GetCompany(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var c store.Company
	if err := decodeJSON(w, r, &c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := checkBodyID("id", c.ID, id); err != nil {
		s.handleError(w, r, err)
		return
	}
	c.ID = id
	if err := invoicing.ValidateCompany(&c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.UpdateCompany(r.Context(), &c); err != nil {
		s.handleError(w, r, err)
		return
	}

	updated, err := s.store.GetCompany(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordChange(r, store.AuditUpdateCompany, store.TargetCompany, id, id, events.KindCompany, events.ActionUpdated, nil)
	writeJSON(w, http.StatusOK, updated)
}

// handleUpdateCompanyContact handles PUT /api/companies/{id}/contact; only contact fields change.
func (s *Server) handleUpdateCompanyContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var contact store.ContactInfo
	if err := decodeJSON(w, r, &contact); err != nil {
		s.handleError(w, r, err)
		return
	}

	c, err := s.store.UpdateCompanyContact(r.Context(), id, contact)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordChange(r, store.AuditUpdateCompany, store.TargetCompany, id, id, events.KindCompany, events.ActionUpdated,
		map[string]any{"fields": "contact"})
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.DeleteCompany(r.Context(), id); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordChange(r, store.AuditDeleteCompany, store.TargetCompany, id, id, events.KindCompany, events.ActionDeleted, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDefaults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	def, err := s.store.GetCompanyDefaults(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleUpdateDefaults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var def store.CompanyDefaults
	if err := decodeJSON(w, r, &def); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := checkBodyID("company_id", def.CompanyID, id); err != nil {
		s.handleError(w, r, err)
		return
	}
	def.CompanyID = id
	if err := invoicing.ValidateDefaults(&def); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.UpdateCompanyDefaults(r.Context(), &def); err != nil {
		s.handleError(w, r, err)
		return
	}

	saved, err := s.store.GetCompanyDefaults(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordChange(r, store.AuditUpdateDefaults, store.TargetCompany, id, id, events.KindDefaults, events.ActionUpdated,
		map[string]any{"currency": saved.DefaultCurrency, "tax_rate": saved.DefaultTaxRate.String()})
	writeJSON(w, http.StatusOK, saved)
}
