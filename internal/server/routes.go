// ABOUTME: Route table and per-route middleware chain for the HTTP API
// ABOUTME: Every API route is metered; auth and idempotency apply when configured

package server

import (
	"net/http"

	"github.com/2389/tally/internal/auth"
	"github.com/2389/tally/internal/dedupe"
)

// routes builds the root handler.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	s.handle(mux, "GET /health", s.handleHealth, false)
	s.handle(mux, "GET /health/ready", s.handleReady, false)
	if s.config.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Path, s.metrics.Handler())
	}

	if s.verifier != nil {
		s.handle(mux, "POST /api/login", s.handleLogin, false)
	}

	// Companies
	s.handle(mux, "GET /api/companies", s.handleListCompanies, true)
	s.handle(mux, "POST /api/companies", s.handleCreateCompany, true)
	s.handle(mux, "GET /api/companies/{id}", s.handleGetCompany, true)
	s.handle(mux, "PUT /api/companies/{id}", s.handleUpdateCompany, true)
	s.handle(mux, "PUT /api/companies/{id}/contact", s.handleUpdateCompanyContact, true)
	s.handle(mux, "DELETE /api/companies/{id}", s.handleDeleteCompany, true)
	s.handle(mux, "GET /api/companies/{id}/defaults", s.handleGetDefaults, true)
	s.handle(mux, "PUT /api/companies/{id}/defaults", s.handleUpdateDefaults, true)
	s.handle(mux, "GET /api/companies/{id}/events", s.handleCompanyEvents, true)

	// Clients
	s.handle(mux, "GET /api/companies/{id}/clients", s.handleListClients, true)
	s.handle(mux, "POST /api/companies/{id}/clients", s.handleCreateClient, true)
	s.handle(mux, "GET /api/companies/{id}/client-options", s.handleClientOptions, true)
	s.handle(mux, "GET /api/clients/{id}", s.handleGetClient, true)
	s.handle(mux, "PUT /api/clients/{id}", s.handleUpdateClient, true)
	s.handle(mux, "DELETE /api/clients/{id}", s.handleDeleteClient, true)

	// Invoices
	s.handle(mux, "GET /api/companies/{id}/invoices", s.handleListInvoices, true)
	s.handle(mux, "GET /api/companies/{id}/invoices/draft", s.handleDraftInvoice, true)
	s.handle(mux, "GET /api/companies/{id}/invoices/next-number", s.handleNextNumber, true)
	s.handle(mux, "GET /api/companies/{id}/fiscal-years", s.handleFiscalYears, true)
	s.handle(mux, "GET /api/companies/{id}/year-options", s.handleYearOptions, true)
	s.handle(mux, "POST /api/invoices", s.handleCreateInvoice, true)
	s.handle(mux, "GET /api/invoices/{id}", s.handleGetInvoice, true)
	s.handle(mux, "PUT /api/invoices/{id}", s.handleUpdateInvoice, true)
	s.handle(mux, "DELETE /api/invoices/{id}", s.handleDeleteInvoice, true)

	// Documents and exports
	s.handle(mux, "GET /api/invoices/{id}/pdf", s.handleInvoicePDF, true)
	s.handle(mux, "POST /api/invoices/{id}/pdf", s.handleExportInvoicePDF, true)
	s.handle(mux, "GET /api/invoices/{id}/preview", s.handleInvoicePreview, true)
	s.handle(mux, "GET /api/companies/{id}/invoices.xlsx", s.handleLedgerXLSX, true)
	s.handle(mux, "POST /api/companies/{id}/exports/pdf", s.handleBatchPDF, true)

	// Options, settings, locales, audit
	s.handle(mux, "GET /api/options", s.handleOptions, true)
	s.handle(mux, "GET /api/settings/language", s.handleGetLanguage, true)
	s.handle(mux, "PUT /api/settings/language", s.handleSetLanguage, true)
	s.handle(mux, "GET /api/locales", s.handleListLocales, true)
	s.handle(mux, "GET /api/locales/{code}", s.handleGetLocale, true)
	s.handle(mux, "GET /api/audit", s.handleListAudit, true)

	return requestLogger(s.logger, recoverer(s.logger, mux))
}

// handle registers h at pattern. Protected routes get authentication (when a
// JWT secret is configured) and Idempotency-Key handling; every route is metered.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc, protected bool) {
	var next http.Handler = h
	if protected {
		next = dedupe.Middleware(s.dedupe, func(r *http.Request) string { return auth.Actor(r.Context()) })(next)
		if s.verifier != nil {
			next = auth.HTTPAuthMiddleware(s.store, s.verifier)(next)
		}
	}
	mux.Handle(pattern, s.metrics.Middleware(next))
}
