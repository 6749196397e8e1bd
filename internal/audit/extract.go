package audit

import (
	"sort"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/normalize"
)

// Conflict records a column name claimed by more than one alias group. The
// identifier is reported under every claiming group rather than resolved
// arbitrarily.
type Conflict struct {
	Column string   `json:"column"`
	Groups []string `json:"groups"`
}

// IdentifierSet holds the distinct Cell ID values and Performance Counter
// column names found in one clean table. Set semantics: deduplicated,
// order irrelevant. Recomputed on every audit run, never persisted.
type IdentifierSet struct {
	CellIDs  map[string]struct{}
	Counters map[string]struct{}
	// Ambiguous holds Cell ID values that came out of a conflicted column;
	// they are flagged in the matrix instead of being trusted.
	Ambiguous map[string]struct{}
	Conflicts []Conflict
}

// Extract builds the IdentifierSet for one clean table.
//
// Cell ID values come from columns matched by the cell identifier alias
// groups. Counter names are column names that are not identifiers, not
// free text, and predominantly numeric across the table; the normalizer
// already made that call per column, so the recorded column kind is used.
func Extract(t *normalize.CleanTable, cat archive.Category) IdentifierSet {
	set := IdentifierSet{
		CellIDs:   map[string]struct{}{},
		Counters:  map[string]struct{}{},
		Ambiguous: map[string]struct{}{},
	}

	for j, col := range t.Columns {
		groups := MatchGroups(cat, col)

		ambiguous := len(groups) > 1
		if ambiguous {
			sorted := append([]string(nil), groups...)
			sort.Strings(sorted)
			set.Conflicts = append(set.Conflicts, Conflict{Column: col, Groups: sorted})
		}

		if containsCellGroup(groups) {
			for _, row := range t.Rows {
				v := row[j]
				if v.Kind == normalize.KindString && v.Str != "" {
					set.CellIDs[v.Str] = struct{}{}
					if ambiguous {
						set.Ambiguous[v.Str] = struct{}{}
					}
				}
			}
			continue
		}

		if len(groups) == 0 && t.Decisions.ColumnKinds[col] == normalize.ColumnNumeric {
			set.Counters[col] = struct{}{}
		}
	}

	return set
}

func containsCellGroup(groups []string) bool {
	for _, g := range groups {
		if cellGroups[g] {
			return true
		}
	}
	return false
}
