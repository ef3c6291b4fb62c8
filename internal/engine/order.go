package engine

import (
	"sort"

	"github.com/ppiankov/regdiff/internal/model"
)

// Order returns the changes sorted by severity, then change id.
// The input slice is not modified.
func Order(changes []model.Change) []model.Change {
	out := make([]model.Change, len(changes))
	copy(out, changes)

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out
}

// lessID compares ids by length first so C10000 sorts after C9999
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
