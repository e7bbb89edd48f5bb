// ABOUTME: Tests for statuses, currency normalization, and option ordering
// ABOUTME: Covers WithCurrentFirst de-duplication and blank handling

package invoicing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatuses(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, ValidStatus(s), s)
		assert.True(t, KnownStatus(s), s)
	}
	assert.False(t, ValidStatus(StatusOverdue))
	assert.True(t, KnownStatus(StatusOverdue))
	assert.False(t, ValidStatus("paid"))
	assert.False(t, KnownStatus(""))
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", got)

	got, err = NormalizeCurrency("mxn")
	require.NoError(t, err)
	assert.Equal(t, "MXN", got)

	for _, bad := range []string{"", "EU", "EURO", "E1R", "€€€"} {
		_, err := NormalizeCurrency(bad)
		assert.Error(t, err, bad)
	}
}

func TestWithCurrentFirst(t *testing.T) {
	opts := []string{"EUR", "USD"}

	assert.Equal(t, []string{"EUR", "USD"}, WithCurrentFirst(opts, ""))
	assert.Equal(t, []string{"EUR", "USD"}, WithCurrentFirst(opts, "   "))
	assert.Equal(t, []string{"EUR", "USD"}, WithCurrentFirst(opts, "USD"))
	assert.Equal(t, []string{"MXN", "EUR", "USD"}, WithCurrentFirst(opts, " MXN "))
	assert.Equal(t, []string{"Overdue", "Draft"}, WithCurrentFirst([]string{"Draft"}, "Overdue"))

	// input untouched
	assert.Equal(t, []string{"EUR", "USD"}, opts)
}
