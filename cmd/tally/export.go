// ABOUTME: Export commands: one invoice as PDF, a company ledger as XLSX, a fiscal year of PDFs
// ABOUTME: They read the configured database directly; no server has to be running

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/tally/internal/export"
	"github.com/2389/tally/internal/pdf"
	"github.com/2389/tally/internal/store"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export invoices as PDF or XLSX",
	}
	cmd.AddCommand(newExportPDFCmd(opts), newExportXLSXCmd(opts), newExportBatchCmd(opts))
	return cmd
}

func newExportPDFCmd(opts *rootOptions) *cobra.Command {
	var invoiceID int64
	var out, lang string

	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Render one invoice to a PDF file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if invoiceID <= 0 {
				return errors.New("--invoice is required")
			}
			cfg, s, logger, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(s, logger)

			doc, err := s.GetInvoiceDocument(cmd.Context(), invoiceID)
			if err != nil {
				return fmt.Errorf("loading invoice %d: %w", invoiceID, err)
			}
			if out == "" {
				out = filepath.Join(cfg.Export.Dir, pdf.FileName(&doc.Invoice))
			}

			r := pdf.NewRenderer(s, cfg.I18n.DefaultLanguage, logger)
			path, err := r.ExportFile(cmd.Context(), doc, out, lang)
			if err != nil {
				return err
			}
			audit(cmd.Context(), s, logger, &store.AuditEntry{
				Action:     store.AuditExportPDF,
				TargetType: store.TargetInvoice,
				TargetID:   strconv.FormatInt(invoiceID, 10),
				Detail:     map[string]any{"path": path},
			})

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", path)
			return nil
		},
	}

	cmd.Flags().Int64Var(&invoiceID, "invoice", 0, "invoice ID")
	cmd.Flags().StringVar(&out, "out", "", "output file (default <export.dir>/invoice-<year>-<number>.pdf)")
	cmd.Flags().StringVar(&lang, "lang", "", "document language (default saved language setting)")
	return cmd
}

func newExportXLSXCmd(opts *rootOptions) *cobra.Command {
	var companyID, clientID int64
	var fiscalYear int
	var out, lang string

	cmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Write a company's invoice ledger as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if companyID <= 0 {
				return errors.New("--company is required")
			}
			cfg, s, logger, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(s, logger)

			if out == "" {
				out = filepath.Join(cfg.Export.Dir, export.LedgerFileName(companyID, fiscalYear))
			}
			r := pdf.NewRenderer(s, cfg.I18n.DefaultLanguage, logger)
			f := store.InvoiceFilter{FiscalYear: fiscalYear, ClientID: clientID}

			var buf bytes.Buffer
			if err := export.WriteCompanyLedger(cmd.Context(), s, companyID, f, &buf, r.ResolveLanguage(cmd.Context(), lang)); err != nil {
				return fmt.Errorf("building ledger: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", out)
			return nil
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 0, "company ID")
	cmd.Flags().Int64Var(&clientID, "client", 0, "only invoices of this client")
	cmd.Flags().IntVar(&fiscalYear, "fiscal-year", 0, "only invoices of this fiscal year")
	cmd.Flags().StringVar(&out, "out", "", "output file (default <export.dir>/invoices-<company>[-<year>].xlsx)")
	cmd.Flags().StringVar(&lang, "lang", "", "header language (default saved language setting)")
	return cmd
}

func newExportBatchCmd(opts *rootOptions) *cobra.Command {
	var companyID int64
	var fiscalYear, workers int
	var dir, lang string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Render every invoice of a fiscal year to PDF files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if companyID <= 0 {
				return errors.New("--company is required")
			}
			if fiscalYear <= 0 {
				return errors.New("--fiscal-year is required")
			}
			cfg, s, logger, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(s, logger)

			if _, err := s.GetCompany(cmd.Context(), companyID); err != nil {
				return fmt.Errorf("loading company %d: %w", companyID, err)
			}
			if dir == "" {
				dir = cfg.Export.Dir
			}
			if workers <= 0 {
				workers = cfg.Export.Workers
			}

			r := pdf.NewRenderer(s, cfg.I18n.DefaultLanguage, logger)
			paths, err := export.ExportFiscalYearPDFs(cmd.Context(), s, r, export.BatchOptions{
				CompanyID:  companyID,
				FiscalYear: fiscalYear,
				Dir:        dir,
				Lang:       lang,
				Workers:    workers,
			}, nil)
			if err != nil {
				return err
			}
			audit(cmd.Context(), s, logger, &store.AuditEntry{
				Action:     store.AuditExportPDF,
				TargetType: store.TargetCompany,
				TargetID:   strconv.FormatInt(companyID, 10),
				Detail:     map[string]any{"fiscal_year": fiscalYear, "dir": dir, "files": len(paths)},
			})

			w := cmd.OutOrStdout()
			green := color.New(color.FgGreen)
			for _, p := range paths {
				green.Fprintf(w, "  ✓ %s\n", p)
			}
			fmt.Fprintf(w, "%d invoice(s) exported\n", len(paths))
			return nil
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 0, "company ID")
	cmd.Flags().IntVar(&fiscalYear, "fiscal-year", 0, "fiscal year to export")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default export.dir)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent renders (default export.workers)")
	cmd.Flags().StringVar(&lang, "lang", "", "document language (default saved language setting)")
	return cmd
}
