// ABOUTME: Tests for translation lookup and catalogue completeness
// ABOUTME: Every English key must exist in every other catalogue

package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":       "en",
		"en":     "en",
		"es-ES":  "es",
		"ES":     "es",
		" it_IT": "it",
		"fr":     "en",
		"esp":    "en",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestTr(t *testing.T) {
	assert.Equal(t, "Factura", Tr("es", "pdf.invoice"))
	assert.Equal(t, "Fatturato a", Tr("it-IT", "pdf.billTo"))
	assert.Equal(t, "Invoice #", Tr("fr", "pdf.invoiceNumber"))
	assert.Equal(t, "no.such.key", Tr("es", "no.such.key"))
	// group nodes are not translations
	assert.Equal(t, "pdf", Tr("en", "pdf"))
}

func TestTrDefault(t *testing.T) {
	assert.Equal(t, "Idioma", TrDefault("es", "common.language", "Language"))
	assert.Equal(t, "fallback", TrDefault("es", "common.nope", "fallback"))
}

func TestT(t *testing.T) {
	tr := T("it")
	assert.Equal(t, "Totale", tr("pdf.grandTotal"))
}

func TestTranslateStatus(t *testing.T) {
	assert.Equal(t, "Pagada", TranslateStatus("es", "Paid"))
	assert.Equal(t, "Scaduta", TranslateStatus("it", "Overdue"))
	assert.Equal(t, "Archived", TranslateStatus("es", "Archived"))
}

func TestMessages_ReturnsCopy(t *testing.T) {
	m := Messages("es")
	pdf, ok := m["pdf"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Factura", pdf["invoice"])

	pdf["invoice"] = "mutated"
	assert.Equal(t, "Factura", Tr("es", "pdf.invoice"))
}

func TestSupported(t *testing.T) {
	locs := Supported()
	require.Len(t, locs, 3)
	assert.Equal(t, Locale{Code: "en", Label: "English"}, locs[0])
	assert.True(t, IsSupported("it"))
	assert.False(t, IsSupported("it-IT"))
}

func TestCataloguesComplete(t *testing.T) {
	for _, l := range Supported() {
		flat := get(l.Code).flat
		for _, key := range Keys() {
			_, ok := flat[key]
			assert.True(t, ok, "%s is missing %s", l.Code, key)
		}
	}
}
