// Package resolve reconciles a requested identifier against a live inventory.
package resolve

import (
	"strings"

	"github.com/infrapilot/infrapilot/internal/ir"
)

// Resolution is the result of matching a candidate against an inventory.
type Resolution struct {
	// ID is the selected identifier. Empty when nothing matched.
	ID string
	// Alternatives holds every fuzzy match when more than one was found, or
	// the whole inventory when nothing matched.
	Alternatives []string
	Matched      bool
	// AutoCorrected is set when ID differs from the requested candidate.
	AutoCorrected bool
}

// Resolve matches candidate against the inventory. An exact match wins
// outright; otherwise case-insensitive substring containment in either
// direction builds the candidate set and the entry whose length is closest to
// the candidate is picked, ties going to inventory order.
func Resolve(candidate string, inv *ir.Inventory) Resolution {
	ids := inv.IDs()
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return Resolution{Alternatives: ids}
	}

	for _, id := range ids {
		if id == candidate {
			return Resolution{ID: id, Matched: true}
		}
	}

	lc := strings.ToLower(candidate)
	var matches []string
	for _, id := range ids {
		li := strings.ToLower(id)
		if li == "" {
			continue
		}
		if strings.Contains(li, lc) || strings.Contains(lc, li) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return Resolution{Alternatives: ids}
	case 1:
		return Resolution{ID: matches[0], Matched: true, AutoCorrected: true}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if distance(m, candidate) < distance(best, candidate) {
			best = m
		}
	}
	return Resolution{ID: best, Alternatives: matches, Matched: true, AutoCorrected: true}
}

func distance(a, b string) int {
	d := len(a) - len(b)
	if d < 0 {
		return -d
	}
	return d
}
