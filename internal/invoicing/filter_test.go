// ABOUTME: Tests for client and fiscal-year picker filtering
// ABOUTME: Covers the synthetic "all" entry, case-insensitive search, and truncation

package invoicing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tally/internal/store"
)

func TestFilterClients(t *testing.T) {
	clients := []store.Client{
		{ID: 1, Name: "Alice Corp"},
		{ID: 2, Name: "Bob Ltd"},
		{ID: 3, Name: "MALICE"},
	}

	opts, matched := FilterClients(clients, "", "", 0)
	require.Len(t, opts, 4)
	assert.Equal(t, ClientOption{ID: 0, Name: "All clients"}, opts[0])
	assert.Equal(t, 3, matched)

	opts, matched = FilterClients(clients, " alice ", "Todos", 0)
	require.Len(t, opts, 3)
	assert.Equal(t, "Todos", opts[0].Name)
	assert.Equal(t, int64(1), opts[1].ID)
	assert.Equal(t, int64(3), opts[2].ID)
	assert.Equal(t, 2, matched)

	opts, matched = FilterClients(clients, "", "", 2)
	require.Len(t, opts, 2)
	assert.Equal(t, int64(1), opts[1].ID)
	assert.Equal(t, 3, matched)

	opts, _ = FilterClients(nil, "zzz", "", MaxClientOptions)
	assert.Equal(t, []ClientOption{{ID: 0, Name: "All clients"}}, opts)
}

func TestFilterYears(t *testing.T) {
	years := []int{2025, 2024, 2019, 2010}

	opts := FilterYears(years, "", "", 0)
	require.Len(t, opts, 5)
	assert.Equal(t, YearOption{Value: 0, Label: "All years"}, opts[0])
	assert.Equal(t, "2025", opts[1].Label)

	opts = FilterYears(years, "02", "", 0)
	require.Len(t, opts, 3)
	assert.Equal(t, 2025, opts[1].Value)
	assert.Equal(t, 2024, opts[2].Value)

	opts = FilterYears(years, "1", "", 2)
	require.Len(t, opts, 2)
	assert.Equal(t, 2019, opts[1].Value)
}
