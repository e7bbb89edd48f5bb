// ABOUTME: HTTP handlers that render invoices: PDF download, PDF to disk, HTML preview, XLSX ledger
// ABOUTME: Batch export writes every invoice of a fiscal year to a server-side directory

package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389/tally/internal/export"
	"github.com/2389/tally/internal/pdf"
	"github.com/2389/tally/internal/preview"
	"github.com/2389/tally/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

// handleInvoicePDF handles GET /api/invoices/{id}/pdf?lang and streams the document.
func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	doc, err := s.store.GetInvoiceDocument(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = s.renderer.Render(&buf, doc, s.requestLang(r))
	s.metrics.ObservePDFExport(err)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	attachment(w, "application/pdf", pdf.FileName(&doc.Invoice))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// ExportPDFRequest asks the server to write an invoice PDF to its filesystem.
type ExportPDFRequest struct {
	Path string `json:"path"`
	Lang string `json:"lang"`
}

// handleExportInvoicePDF handles POST /api/invoices/{id}/pdf. An empty path
// writes into export.dir under the conventional file name.
func (s *Server) handleExportInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req ExportPDFRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	doc, err := s.store.GetInvoiceDocument(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	out := strings.TrimSpace(req.Path)
	if out == "" && s.config.Export.Dir != "" {
		out = filepath.Join(s.config.Export.Dir, pdf.FileName(&doc.Invoice))
	}
	path, err := s.renderer.ExportFile(r.Context(), doc, out, req.Lang)
	s.metrics.ObservePDFExport(err)
	if err != nil {
		if errors.Is(err, pdf.ErrEmptyPath) {
			err = badRequest("path is required")
		}
		s.handleError(w, r, err)
		return
	}

	s.recordChange(r, store.AuditExportPDF, store.TargetInvoice, id, doc.Invoice.CompanyID, "", "",
		map[string]any{"path": path})
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// handleInvoicePreview handles GET /api/invoices/{id}/preview?lang.
func (s *Server) handleInvoicePreview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	doc, err := s.store.GetInvoiceDocument(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := preview.Render(&buf, doc, s.requestLang(r)); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleLedgerXLSX handles GET /api/companies/{id}/invoices.xlsx?fiscal_year&client_id&lang.
func (s *Server) handleLedgerXLSX(w http.ResponseWriter, r *http.Request) {
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

	var buf bytes.Buffer
	if err := export.WriteCompanyLedger(r.Context(), s.store, companyID, f, &buf, s.requestLang(r)); err != nil {
		s.handleError(w, r, err)
		return
	}

	name := export.LedgerFileName(companyID, f.FiscalYear)
	attachment(w, xlsxContentType, name)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// BatchPDFRequest selects the fiscal year to export and where to write it.
type BatchPDFRequest struct {
	FiscalYear int    `json:"fiscal_year"`
	Dir        string `json:"dir"`
	Lang       string `json:"lang"`
}

// BatchPDFResponse lists the files written by a batch export.
type BatchPDFResponse struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// handleBatchPDF handles POST /api/companies/{id}/exports/pdf.
func (s *Server) handleBatchPDF(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req BatchPDFRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if req.FiscalYear <= 0 {
		s.handleError(w, r, badRequest("fiscal_year is required"))
		return
	}
	if _, err := s.store.GetCompany(r.Context(), companyID); err != nil {
		s.handleError(w, r, err)
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.config.Export.Dir
	}
	files, err := export.ExportFiscalYearPDFs(r.Context(), s.store, s.renderer, export.BatchOptions{
		CompanyID:  companyID,
		FiscalYear: req.FiscalYear,
		Dir:        dir,
		Lang:       req.Lang,
		Workers:    s.config.Export.Workers,
	}, func(_ int64, _ string, err error) {
		s.metrics.ObservePDFExport(err)
	})
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNoDir):
			err = badRequest("dir is required")
		case errors.Is(err, export.ErrNoFiscalYear):
			err = badRequest("fiscal_year is required")
		}
		s.handleError(w, r, err)
		return
	}

	s.recordChange(r, store.AuditExportPDF, store.TargetCompany, companyID, companyID, "", "",
		map[string]any{"fiscal_year": req.FiscalYear, "dir": dir, "count": len(files)})
	writeJSON(w, http.StatusOK, BatchPDFResponse{Files: files, Count: len(files)})
}
