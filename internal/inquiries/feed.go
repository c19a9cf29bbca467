package inquiries

import (
	"sort"
	"strings"
)

// All disables a filter dimension.
const All = "all"

// Filter narrows the merged feed. Empty or "all" values are ignored.
type Filter struct {
	Source string
	Status string
	Search string
}

// Merge normalizes every record of every set and orders the result newest
// first. Records with equal timestamps keep their input order.
func Merge(sets ...[]Record) []Row {
	total := 0
	for _, set := range sets {
		total += len(set)
	}
	rows := make([]Row, 0, total)
	for _, set := range sets {
		for _, rec := range set {
			rows = append(rows, rec.Normalize())
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.After(rows[j].Date)
	})
	return rows
}

// Apply keeps the rows matching every active predicate of f.
func Apply(rows []Row, f Filter) []Row {
	out := make([]Row, 0, len(rows))
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, row := range rows {
		if !matchSource(row, f.Source) || !matchStatus(row, f.Status) || !matchSearch(row, search) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func active(v string) bool {
	return v != "" && v != All
}

func matchSource(row Row, source string) bool {
	return !active(source) || string(row.Source) == source
}

func matchStatus(row Row, status string) bool {
	if !active(status) {
		return true
	}
	current := row.Status
	if current == "" {
		current = DefaultStatus
	}
	return current == status
}

func matchSearch(row Row, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(row.Name), term) ||
		strings.Contains(strings.ToLower(row.Phone), term)
}

func records[T Record](items []T) []Record {
	out := make([]Record, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
