package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/normalize"
)

// EntryRef points at one archived clean table.
type EntryRef struct {
	Category archive.Category `json:"category"`
	Index    int              `json:"index"`
}

func (r EntryRef) String() string { return fmt.Sprintf("%s/%d", r.Category, r.Index) }

// SourcedSet pairs an IdentifierSet with the entry it came from.
type SourcedSet struct {
	Ref EntryRef
	Set IdentifierSet
}

// Presence is the matrix row for one identifier: every entry it appears in,
// plus the derived flags.
type Presence struct {
	Refs []EntryRef `json:"refs"`
	// Orphan marks an identifier that cannot be correlated: a Cell ID seen
	// in only one category, or a counter seen in only one file.
	Orphan bool `json:"orphan,omitempty"`
	// Conflict marks an identifier extracted from an ambiguously named
	// column (reported under multiple alias groups).
	Conflict bool `json:"conflict,omitempty"`
}

// Matrix is the cross-file audit result.
type Matrix struct {
	CellIDs   map[string]*Presence `json:"cell_ids"`
	Counters  map[string]*Presence `json:"counters"`
	Conflicts []Conflict           `json:"conflicts,omitempty"`
	// Files is the number of clean tables scanned per category.
	Files map[archive.Category]int `json:"files"`
}

// BuildMatrix folds extractor output across all archived clean tables into
// one presence/conflict matrix.
func BuildMatrix(sets []SourcedSet) *Matrix {
	m := &Matrix{
		CellIDs:  map[string]*Presence{},
		Counters: map[string]*Presence{},
		Files:    map[archive.Category]int{},
	}

	conflicted := map[string]bool{}
	for _, s := range sets {
		m.Files[s.Ref.Category]++

		for id := range s.Set.CellIDs {
			addRef(m.CellIDs, id, s.Ref)
		}
		for name := range s.Set.Counters {
			addRef(m.Counters, name, s.Ref)
		}
		for _, c := range s.Set.Conflicts {
			if !conflicted[c.Column] {
				conflicted[c.Column] = true
				m.Conflicts = append(m.Conflicts, c)
			}
		}
		// An ambiguous column taints the values extracted from it.
		for id := range s.Set.Ambiguous {
			if p := m.CellIDs[id]; p != nil {
				p.Conflict = true
			}
		}
	}
	sort.Slice(m.Conflicts, func(i, j int) bool { return m.Conflicts[i].Column < m.Conflicts[j].Column })

	// A Cell ID that never leaves its category cannot be correlated across
	// PM/CM/Site/RF and is an orphan.
	for _, p := range m.CellIDs {
		sortRefs(p.Refs)
		p.Orphan = categoryCount(p.Refs) < 2
	}
	// A counter seen in a single file is a one-off: likely a renamed or
	// deprecated counter that will break trend queries.
	for _, p := range m.Counters {
		sortRefs(p.Refs)
		p.Orphan = len(p.Refs) < 2
	}

	return m
}

// Scan runs the extractor over every archived clean table and builds the
// matrix. It is a read-only pass; entries ingested mid-scan may or may not
// be included, which is acceptable for a batch audit.
func Scan(ctx context.Context, store archive.Store) (*Matrix, error) {
	var sets []SourcedSet

	for _, cat := range archive.Categories {
		entries, err := store.List(ctx, cat)
		if err != nil {
			return nil, fmt.Errorf("audit: listing %s entries: %w", cat, err)
		}
		for _, e := range entries {
			if !e.HasClean {
				continue
			}
			doc, err := store.Clean(ctx, cat, e.Index)
			if err != nil {
				return nil, fmt.Errorf("audit: reading clean %s/%d: %w", cat, e.Index, err)
			}
			table, err := normalize.Decode(doc)
			if err != nil {
				return nil, fmt.Errorf("audit: decoding clean %s/%d: %w", cat, e.Index, err)
			}
			sets = append(sets, SourcedSet{
				Ref: EntryRef{Category: cat, Index: e.Index},
				Set: Extract(table, cat),
			})
		}
	}

	return BuildMatrix(sets), nil
}

func addRef(m map[string]*Presence, key string, ref EntryRef) {
	p := m[key]
	if p == nil {
		p = &Presence{}
		m[key] = p
	}
	for _, r := range p.Refs {
		if r == ref {
			return
		}
	}
	p.Refs = append(p.Refs, ref)
}

func sortRefs(refs []EntryRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Category != refs[j].Category {
			return refs[i].Category < refs[j].Category
		}
		return refs[i].Index < refs[j].Index
	})
}

func categoryCount(refs []EntryRef) int {
	seen := map[archive.Category]bool{}
	for _, r := range refs {
		seen[r.Category] = true
	}
	return len(seen)
}
