package identity

import (
	"testing"

	"github.com/franz/figure-curator/internal/store"
)

func TestKeyOf(t *testing.T) {
	testCases := []struct {
		name     string
		figure   *store.Figure
		expected Key
	}{
		{
			name: "basic fields",
			figure: &store.Figure{
				Name:         "Optimus Prime",
				Series:       "Transformers",
				Manufacturer: "Hasbro",
			},
			expected: Key{Name: "optimus prime", Series: "transformers", Manufacturer: "hasbro"},
		},
		{
			name: "case and whitespace",
			figure: &store.Figure{
				Name:         "  OPTIMUS Prime ",
				Series:       "TRANSFORMERS",
				Manufacturer: " hasbro",
			},
			expected: Key{Name: "optimus prime", Series: "transformers", Manufacturer: "hasbro"},
		},
		{
			name: "empty series and manufacturer",
			figure: &store.Figure{
				Name: "Batman",
			},
			expected: Key{Name: "batman"},
		},
		{
			name: "unicode normalization",
			figure: &store.Figure{
				Name:         "Pokémon Trainer", // composed é
				Series:       "Pokémon",
				Manufacturer: "Bandai",
			},
			expected: Key{Name: "pokémon trainer", Series: "pokémon", Manufacturer: "bandai"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := KeyOf(tc.figure)
			if got != tc.expected {
				t.Errorf("expected %+v, got %+v", tc.expected, got)
			}
		})
	}
}

func TestKeyOfUnicodeForms(t *testing.T) {
	// The same name in composed (U+00E9) and decomposed (e + U+0301) form
	// must produce the same key
	composed := &store.Figure{Name: "Pokémon"}
	decomposed := &store.Figure{Name: "Pokémon"}

	if KeyOf(composed) != KeyOf(decomposed) {
		t.Errorf("expected composed and decomposed forms to share a key: %+v vs %+v",
			KeyOf(composed), KeyOf(decomposed))
	}
}

func TestIndexMatch(t *testing.T) {
	existing := []*store.Figure{
		{ID: 1, Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro"},
		{ID: 2, Name: "Luke Skywalker", Series: "Star Wars", Manufacturer: "Kenner"},
	}
	index := NewIndex(existing)

	// Differing only in case and whitespace is a match
	match := index.Match(&store.Figure{
		Name:         "optimus prime  ",
		Series:       " TRANSFORMERS",
		Manufacturer: "hasbro",
	})
	if match == nil {
		t.Fatal("expected a match for case-insensitive lookup")
	}
	if match.ID != 1 {
		t.Errorf("expected match against figure 1, got %d", match.ID)
	}

	// A different triple is new
	if m := index.Match(&store.Figure{Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Takara"}); m != nil {
		t.Errorf("expected no match for different manufacturer, got figure %d", m.ID)
	}
	if m := index.Match(&store.Figure{Name: "Megatron"}); m != nil {
		t.Errorf("expected no match for unknown figure, got figure %d", m.ID)
	}
}

func TestIndexFirstMatchWins(t *testing.T) {
	// Two existing figures share an identity; the earliest entry wins
	existing := []*store.Figure{
		{ID: 7, Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro"},
		{ID: 9, Name: "OPTIMUS PRIME", Series: "transformers", Manufacturer: "HASBRO"},
	}
	index := NewIndex(existing)

	match := index.Match(&store.Figure{
		Name:         "Optimus Prime",
		Series:       "Transformers",
		Manufacturer: "Hasbro",
	})
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ID != 7 {
		t.Errorf("expected the first duplicate (figure 7) to win, got %d", match.ID)
	}
}
