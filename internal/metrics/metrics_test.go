// ABOUTME: Tests for HTTP and PDF export metrics
// ABOUTME: Reads collector values back through prometheus testutil

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByPattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.Handle("GET /api/invoices/{id}", m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	for _, path := range []string{"/api/invoices/1", "/api/invoices/2", "/api/invoices/404"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.requests.WithLabelValues("GET", "GET /api/invoices/{id}", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues("GET", "GET /api/invoices/{id}", "404")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestObservePDFExport(t *testing.T) {
	m := New()
	m.ObservePDFExport(nil)
	m.ObservePDFExport(nil)
	m.ObservePDFExport(errors.New("boom"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.pdfExports.WithLabelValues(ResultOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.pdfExports.WithLabelValues(ResultError)), 0)
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New()
	m.ObservePDFExport(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tally_pdf_exports_total{result="ok"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestStatusWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	w.Flush()
	assert.True(t, rec.Flushed)
	assert.Equal(t, rec, w.Unwrap())
}
