// Package merge reconciles an exported collection against the local store:
// a read-only analysis pass classifies incoming figures and photo names,
// and an executor applies the resulting plan with per-conflict resolutions.
package merge

import (
	"fmt"
	"path"
	"strings"
)

// ResolveFilename returns a name that is not taken, probing stem_1.ext,
// stem_2.ext and so on when the proposed name is. It never mutates
// anything; the caller copies the file after resolution, so the answer is
// only as current as the taken set it was given.
func ResolveFilename(proposed string, taken func(string) bool) string {
	if !taken(proposed) {
		return proposed
	}

	ext := path.Ext(proposed)
	stem := strings.TrimSuffix(proposed, ext)

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !taken(candidate) {
			return candidate
		}
	}
}
