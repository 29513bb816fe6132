package identity

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/franz/figure-curator/internal/store"
)

// Key identifies a figure for merge matching. Two figures with equal keys
// are treated as the same catalog item regardless of casing, surrounding
// whitespace or Unicode form.
type Key struct {
	Name         string
	Series       string
	Manufacturer string
}

// KeyOf computes the identity key of a figure
func KeyOf(f *store.Figure) Key {
	return Key{
		Name:         Normalize(f.Name),
		Series:       Normalize(f.Series),
		Manufacturer: Normalize(f.Manufacturer),
	}
}

// Normalize prepares a field for identity comparison
func Normalize(s string) string {
	// Unicode NFC normalization
	s = norm.NFC.String(s)

	// Lowercase
	s = strings.ToLower(s)

	// Trim whitespace
	return strings.TrimSpace(s)
}

// Index looks up existing figures by identity key
type Index struct {
	byKey map[Key]*store.Figure
}

// NewIndex builds an index over existing figures. When several figures
// share a key the earliest in the slice wins, so callers pass figures in
// ascending ID order to make the oldest match deterministic.
func NewIndex(existing []*store.Figure) *Index {
	byKey := make(map[Key]*store.Figure, len(existing))
	for _, f := range existing {
		key := KeyOf(f)
		if _, taken := byKey[key]; !taken {
			byKey[key] = f
		}
	}
	return &Index{byKey: byKey}
}

// Match returns the existing figure sharing the given figure's identity,
// or nil when there is none
func (ix *Index) Match(f *store.Figure) *store.Figure {
	return ix.byKey[KeyOf(f)]
}
