package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nkhelifi/radiogate/internal/archive"
)

// RenderOptions controls the text rendering of a matrix.
type RenderOptions struct {
	// ShowAll includes counters that appear in only one file; by default
	// those one-offs are hidden behind a summary line.
	ShowAll bool
}

// Render writes the matrix as a presence grid: one line per identifier,
// an X/. cell per archived file, and a coverage percentage.
func (m *Matrix) Render(opts RenderOptions) string {
	refs := m.allRefs()
	var b strings.Builder

	b.WriteString("IDENTIFIERS (join keys)\n")
	writeGrid(&b, m.CellIDs, refs, nil)

	b.WriteString("\nPERFORMANCE COUNTERS\n")
	hidden := 0
	var filter func(p *Presence) bool
	if !opts.ShowAll {
		filter = func(p *Presence) bool {
			if p.Orphan {
				hidden++
				return false
			}
			return true
		}
	}
	writeGrid(&b, m.Counters, refs, filter)
	if hidden > 0 {
		fmt.Fprintf(&b, "\n... %d one-off counters hidden. Use --show-all to see everything.\n", hidden)
	}

	if len(m.Conflicts) > 0 {
		b.WriteString("\nCONFLICTS\n")
		for _, c := range m.Conflicts {
			fmt.Fprintf(&b, "  %-24s matches %s\n", c.Column, strings.Join(c.Groups, " and "))
		}
	}

	return b.String()
}

// allRefs returns every file reference seen anywhere in the matrix, ordered
// by category then index, so the grid columns are stable.
func (m *Matrix) allRefs() []EntryRef {
	seen := map[EntryRef]bool{}
	for _, p := range m.CellIDs {
		for _, r := range p.Refs {
			seen[r] = true
		}
	}
	for _, p := range m.Counters {
		for _, r := range p.Refs {
			seen[r] = true
		}
	}
	refs := make([]EntryRef, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sortRefs(refs)
	return refs
}

func writeGrid(b *strings.Builder, rows map[string]*Presence, refs []EntryRef, keep func(*Presence) bool) {
	if len(rows) == 0 {
		b.WriteString("  (none)\n")
		return
	}

	names := make([]string, 0, len(rows))
	for name := range rows {
		names = append(names, name)
	}
	sort.Strings(names)

	width := 24
	for _, name := range names {
		if len(name) > width {
			width = len(name)
		}
	}

	// Header line with file refs.
	fmt.Fprintf(b, "  %-*s", width, "")
	for _, r := range refs {
		fmt.Fprintf(b, " %8s", r.String())
	}
	fmt.Fprintf(b, " %9s\n", "coverage")

	total := len(refs)
	for _, name := range names {
		p := rows[name]
		if keep != nil && !keep(p) {
			continue
		}

		fmt.Fprintf(b, "  %-*s", width, name)
		present := map[EntryRef]bool{}
		for _, r := range p.Refs {
			present[r] = true
		}
		for _, r := range refs {
			mark := "."
			if present[r] {
				mark = "X"
			}
			fmt.Fprintf(b, " %8s", mark)
		}

		coverage := 0.0
		if total > 0 {
			coverage = float64(len(p.Refs)) / float64(total) * 100
		}
		fmt.Fprintf(b, " %8.1f%%", coverage)

		var flags []string
		if p.Orphan {
			flags = append(flags, "orphan")
		}
		if p.Conflict {
			flags = append(flags, "conflict")
		}
		if len(flags) > 0 {
			fmt.Fprintf(b, "  [%s]", strings.Join(flags, ","))
		}
		b.WriteByte('\n')
	}
}

// Summary returns one line of headline numbers for logs and the API.
func (m *Matrix) Summary() string {
	orphanIDs, orphanCounters := 0, 0
	for _, p := range m.CellIDs {
		if p.Orphan {
			orphanIDs++
		}
	}
	for _, p := range m.Counters {
		if p.Orphan {
			orphanCounters++
		}
	}

	files := 0
	for _, cat := range archive.Categories {
		files += m.Files[cat]
	}
	return fmt.Sprintf("%d files, %d cell ids (%d orphans), %d counters (%d one-offs), %d conflicts",
		files, len(m.CellIDs), orphanIDs, len(m.Counters), orphanCounters, len(m.Conflicts))
}
