// ABOUTME: Searchable option lists for client and fiscal-year pickers
// ABOUTME: Each list starts with a synthetic "all" entry and is capped at a maximum size

package invoicing

import (
	"strconv"
	"strings"

	"github.com/2389/tally/internal/store"
)

// Default list caps used by pickers.
const (
	MaxClientOptions = 5
	MaxYearOptions   = 7
)

// ClientOption is one entry of a client picker. ID 0 means all clients.
type ClientOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// YearOption is one entry of a fiscal-year picker. Value 0 means all years.
type YearOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// FilterClients keeps clients whose name contains query (case-insensitive),
// prepends the "All clients" entry, and truncates to limit entries. It also
// returns how many real clients matched before truncation.
func FilterClients(clients []store.Client, query, allLabel string, limit int) ([]ClientOption, int) {
	if allLabel == "" {
		allLabel = "All clients"
	}
	q := strings.ToLower(strings.TrimSpace(query))

	out := []ClientOption{{ID: 0, Name: allLabel}}
	matched := 0
	for _, c := range clients {
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) {
			continue
		}
		matched++
		out = append(out, ClientOption{ID: c.ID, Name: c.Name})
	}
	return truncate(out, limit), matched
}

// FilterYears keeps years whose digits contain query, prepends the
// "All years" entry, and truncates to limit entries.
func FilterYears(years []int, query, allLabel string, limit int) []YearOption {
	if allLabel == "" {
		allLabel = "All years"
	}
	q := strings.TrimSpace(query)

	out := []YearOption{{Value: 0, Label: allLabel}}
	for _, y := range years {
		label := strconv.Itoa(y)
		if q != "" && !strings.Contains(label, q) {
			continue
		}
		out = append(out, YearOption{Value: y, Label: label})
	}
	return truncate(out, limit)
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

func itoa(i int) string { return strconv.Itoa(i) }
