// ABOUTME: HTTP handlers for invoices, drafts, numbering, and fiscal-year pickers
// ABOUTME: Totals are always recomputed server-side before an invoice is stored

package server

import (
	"errors"
	"net/http"

	"github.com/2389/tally/internal/events"
	"github.com/2389/tally/internal/i18n"
	"github.com/2389/tally/internal/invoicing"
	"github.com/2389/tally/internal/store"
)

// handleListInvoices handles GET /api/companies/{id}/invoices?fiscal_year&client_id&limit&offset.
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var f store.InvoiceFilter
	if f.FiscalYear, err = queryInt(r, "fiscal_year"); err != nil {
		s.handleError(w, r, err)
		return
	}
	if f.ClientID, err = queryInt64(r, "client_id"); err != nil {
		s.handleError(w, r, err)
		return
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		s.handleError(w, r, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		s.handleError(w, r, err)
		return
	}
	if _, err := s.store.GetCompany(r.Context(), companyID); err != nil {
		s.handleError(w, r, err)
		return
	}

	page, err := s.store.ListInvoices(r.Context(), companyID, f)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleDraftInvoice handles GET /api/companies/{id}/invoices/draft?client_id&fiscal_year.
// The draft is not stored.
func (s *Server) handleDraftInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var opts invoicing.DraftOptions
	if opts.ClientID, err = queryInt64(r, "client_id"); err != nil {
		s.handleError(w, r, err)
		return
	}
	if opts.FiscalYear, err = queryInt(r, "fiscal_year"); err != nil {
		s.handleError(w, r, err)
		return
	}

	draft, err := invoicing.NewDraft(r.Context(), s.store, companyID, opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if _, err := s.store.GetCompany(r.Context(), companyID); err != nil {
		s.handleError(w, r, err)
		return
	}
	n, err := s.store.GetMaxInvoiceNumber(r.Context(), companyID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"next_number": n + 1})
}

func (s *Server) handleFiscalYears(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if _, err := s.store.GetCompany(r.Context(), companyID); err != nil {
		s.handleError(w, r, err)
		return
	}
	years, err := s.store.ListFiscalYears(r.Context(), companyID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"fiscal_years": years})
}

// handleYearOptions handles GET /api/companies/{id}/year-options?q&limit&lang.
func (s *Server) handleYearOptions(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if limit == 0 {
		limit = invoicing.MaxYearOptions
	}
	if _, err := s.store.GetCompany(r.Context(), companyID); err != nil {
		s.handleError(w, r, err)
		return
	}
	years, err := s.store.ListFiscalYears(r.Context(), companyID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	label := i18n.Tr(s.requestLang(r), "common.allYears")
	writeJSON(w, http.StatusOK, map[string]any{
		"options": invoicing.FilterYears(years, r.URL.Query().Get("q"), label, limit),
	})
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv store.Invoice
	if err := decodeJSON(w, r, &inv); err != nil {
		s.handleError(w, r, err)
		return
	}
	if inv.ID != 0 {
		s.handleError(w, r, badRequest("id must not be set when creating an invoice"))
		return
	}
	for i := range inv.Items {
		inv.Items[i].ID = 0
	}
	if err := invoicing.Validate(&inv); err != nil {
		s.handleError(w, r, err)
		return
	}
	invoicing.Apply(&inv)

	if err := s.store.CreateInvoice(r.Context(), &inv); err != nil {
		// a missing client is a problem with the submitted invoice, not the URL
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusUnprocessableEntity, "client_id: client not found")
			return
		}
		s.handleError(w, r, err)
		return
	}

	s.recordChange(r, store.AuditCreateInvoice, store.TargetInvoice, inv.ID, inv.CompanyID, events.KindInvoice, events.ActionCreated,
		map[string]any{"number": inv.Number, "total": inv.Total.String()})
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	inv, err := s.store.GetInvoice(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleUpdateInvoice handles PUT /api/invoices/{id}. The payload's items
// replace the stored set; zero company or client IDs keep the stored values.
func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var inv store.Invoice
	if err := decodeJSON(w, r, &inv); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := checkBodyID("id", inv.ID, id); err != nil {
		s.handleError(w, r, err)
		return
	}
	inv.ID = id

	current, err := s.store.GetInvoice(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if inv.CompanyID == 0 {
		inv.CompanyID = current.CompanyID
	}
	if inv.CompanyID != current.CompanyID {
		s.handleError(w, r, badRequest("company_id cannot change"))
		return
	}
	if inv.ClientID == 0 {
		inv.ClientID = current.ClientID
	}

	if err := invoicing.Validate(&inv); err != nil {
		s.handleError(w, r, err)
		return
	}
	invoicing.Apply(&inv)

	if err := s.store.UpdateInvoice(r.Context(), &inv); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusUnprocessableEntity, "client_id: client not found")
			return
		}
		s.handleError(w, r, err)
		return
	}

	s.recordChange(r, store.AuditUpdateInvoice, store.TargetInvoice, id, inv.CompanyID, events.KindInvoice, events.ActionUpdated,
		map[string]any{"number": inv.Number, "status": inv.Status, "total": inv.Total.String()})
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	inv, err := s.store.GetInvoice(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.DeleteInvoice(r.Context(), id); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordChange(r, store.AuditDeleteInvoice, store.TargetInvoice, id, inv.CompanyID, events.KindInvoice, events.ActionDeleted,
		map[string]any{"number": inv.Number})
	w.WriteHeader(http.StatusNoContent)
}
