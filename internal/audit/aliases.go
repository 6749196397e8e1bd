// Package audit reconciles identifiers across archived clean tables: it
// extracts Cell IDs and Performance Counter names per table and folds them
// into a presence matrix that flags orphans and ambiguous identifiers before
// any deeper correlation is attempted.
package audit

import (
	"strings"

	"github.com/nkhelifi/radiogate/internal/archive"
)

// AliasGroup maps one canonical identifier key to the column names vendors
// use for it. Groups may overlap: a column name claimed by two groups is a
// genuine ambiguity and is surfaced as a conflict, never resolved silently.
type AliasGroup struct {
	Canonical string
	Aliases   []string
}

// Group canonical keys.
const (
	GroupCellID      = "cell_id"
	GroupLocalCellID = "local_cell_id"
	GroupSiteID      = "site_id"
	GroupDate        = "date"
)

// aliasTables is the static per-category identifier configuration, loaded
// once at process start. Alias matching is case-insensitive on the cleaned
// header name.
//
// In RF drive-test logs a bare "Cell ID" is ambiguous: depending on the
// collection tool it is either the global ECI or the sector-local ID. Both
// groups claim it there, which makes the audit matrix report it under both
// with a conflict flag.
var aliasTables = map[archive.Category][]AliasGroup{
	archive.PM: {
		{Canonical: GroupCellID, Aliases: []string{"cell id", "ci", "eci", "eutrancell id", "eutrancellfdd", "cell"}},
		{Canonical: GroupLocalCellID, Aliases: []string{"local cell id", "lcid"}},
		{Canonical: GroupSiteID, Aliases: []string{"erbs id", "enodeb id", "site id", "gnb id"}},
		{Canonical: GroupDate, Aliases: []string{"date", "period", "timestamp", "start time"}},
	},
	archive.CM: {
		{Canonical: GroupCellID, Aliases: []string{"cell id", "ci", "eci", "eutrancell id", "eutrancellfdd", "cell name"}},
		{Canonical: GroupLocalCellID, Aliases: []string{"local cell id", "lcid"}},
		{Canonical: GroupSiteID, Aliases: []string{"erbs id", "enodeb id", "site id", "gnb id", "node"}},
		{Canonical: GroupDate, Aliases: []string{"date", "export date"}},
	},
	archive.Site: {
		{Canonical: GroupCellID, Aliases: []string{"cell id", "ci", "sector id"}},
		{Canonical: GroupSiteID, Aliases: []string{"site id", "site", "site name", "erbs id"}},
		{Canonical: GroupDate, Aliases: []string{"date", "updated"}},
	},
	archive.RF: {
		{Canonical: GroupCellID, Aliases: []string{"cell id", "eci", "serving cell"}},
		{Canonical: GroupLocalCellID, Aliases: []string{"cell id", "local cell id", "pci"}},
		{Canonical: GroupSiteID, Aliases: []string{"site id", "site"}},
		{Canonical: GroupDate, Aliases: []string{"date", "time", "timestamp"}},
	},
}

// cellGroups are the groups whose column values are Cell ID values.
var cellGroups = map[string]bool{
	GroupCellID:      true,
	GroupLocalCellID: true,
}

func normalizeName(col string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(col))), " ")
}

// MatchGroups returns the canonical keys of every alias group that claims
// the column name in the given category. More than one match is a conflict.
func MatchGroups(cat archive.Category, column string) []string {
	name := normalizeName(column)
	var groups []string
	for _, g := range aliasTables[cat] {
		for _, a := range g.Aliases {
			if a == name {
				groups = append(groups, g.Canonical)
				break
			}
		}
	}
	return groups
}

// IsIdentifier reports whether a column holds identifier values in the given
// category. The normalizer uses this to keep identifier values as strings:
// numeric coercion would destroy leading zeros and vendor formatting. Date
// columns are deliberately not identifiers here so they still get date
// coercion.
func IsIdentifier(cat archive.Category) func(column string) bool {
	return func(column string) bool {
		for _, g := range MatchGroups(cat, column) {
			if g != GroupDate {
				return true
			}
		}
		return false
	}
}
