// Package normalize turns sniffed vendor records into a canonical typed
// table. Normalization is best-effort per cell: a token that cannot be
// coerced becomes a null with a recorded error, a row with the wrong shape
// is skipped and counted, and only a table with zero usable rows counts as
// a failure for the file.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nkhelifi/radiogate/internal/sniff"
)

// sampleCells is how many non-empty cells per column feed type detection.
const sampleCells = 50

// Column kinds recorded in Decisions.ColumnKinds.
const (
	ColumnIdentifier = "identifier"
	ColumnNumeric    = "numeric"
	ColumnDate       = "date"
	ColumnText       = "text"
)

// RowShapeError records a data row whose token count does not match the
// header. Non-fatal: the row is excluded and counted.
//
// Row is the index among the parsed records, header included. Blank lines
// are dropped during sniffing, so on files with interior blank lines this
// lags the physical line number.
type RowShapeError struct {
	Row  int
	Got  int
	Want int
}

func (e RowShapeError) Error() string {
	return fmt.Sprintf("row %d: %d tokens, expected %d", e.Row, e.Got, e.Want)
}

// CellError records a per-cell coercion failure. The cell becomes null.
// Row counts parsed records the same way RowShapeError.Row does.
type CellError struct {
	Row    int
	Column string
	Token  string
	Reason string
}

func (e CellError) Error() string {
	return fmt.Sprintf("row %d, column %q: %s (%q)", e.Row, e.Column, e.Reason, e.Token)
}

// Decisions records the winning heuristic rules so a clean table can be
// regenerated and audited. It is persisted inside the clean document.
type Decisions struct {
	DelimiterRule string            `json:"delimiter_rule"`
	Delimiter     string            `json:"delimiter"`
	Decimal       string            `json:"decimal"`
	Encoding      string            `json:"encoding"`
	HeaderRow     int               `json:"header_row"`
	Synthetic     bool              `json:"synthetic_header,omitempty"`
	ColumnKinds   map[string]string `json:"column_kinds"`
	DateLayouts   map[string]string `json:"date_layouts,omitempty"`
}

// CleanTable is the normalized representation of one file: canonical column
// names and typed rows, row order preserved from the source.
type CleanTable struct {
	Columns    []string        `json:"columns"`
	Rows       [][]Value       `json:"rows"`
	Decisions  Decisions       `json:"decisions"`
	Skipped    []RowShapeError `json:"skipped,omitempty"`
	CellErrors []CellError     `json:"cell_errors,omitempty"`
}

// RowMap returns row i as a column-name-to-value mapping.
func (t *CleanTable) RowMap(i int) map[string]Value {
	m := make(map[string]Value, len(t.Columns))
	for j, col := range t.Columns {
		m[col] = t.Rows[i][j]
	}
	return m
}

// ColumnIndex returns the position of a column by canonical name, or -1.
func (t *CleanTable) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

// Encode serializes the table as a clean document for the archive.
func (t *CleanTable) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// Decode parses a clean document written by Encode.
func Decode(data []byte) (*CleanTable, error) {
	var t CleanTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("normalize: decoding clean document: %w", err)
	}
	return &t, nil
}

// Options controls normalization.
type Options struct {
	// IsIdentifier reports whether a canonical column name is an identifier
	// column. Identifier values are never numerically coerced, so leading
	// zeros and vendor formatting survive. Nil means no identifier columns.
	IsIdentifier func(column string) bool
}

// Normalize builds a CleanTable from a sniff result. The delimiter decides
// the decimal convention; column types are decided once per column from
// sampled values, then applied to every row.
func Normalize(res *sniff.Result, opts Options) *CleanTable {
	conv := ConventionFor(res.Delimiter)
	isIdent := opts.IsIdentifier
	if isIdent == nil {
		isIdent = func(string) bool { return false }
	}

	table := &CleanTable{
		Columns: res.Columns,
		Decisions: Decisions{
			DelimiterRule: res.DelimiterRule,
			Delimiter:     string(res.Delimiter),
			Decimal:       conv.Name,
			Encoding:      res.Encoding,
			HeaderRow:     res.HeaderRow,
			Synthetic:     res.SyntheticHeader,
			ColumnKinds:   make(map[string]string, len(res.Columns)),
			DateLayouts:   map[string]string{},
		},
	}

	data := res.DataRows()
	kinds := make([]string, len(res.Columns))
	layouts := make([]string, len(res.Columns))

	for j, col := range res.Columns {
		kinds[j], layouts[j] = detectColumnKind(data, j, conv, isIdent(col))
		table.Decisions.ColumnKinds[col] = kinds[j]
		if layouts[j] != "" {
			table.Decisions.DateLayouts[col] = layouts[j]
		}
	}
	if len(table.Decisions.DateLayouts) == 0 {
		table.Decisions.DateLayouts = nil
	}

	// The first data record sits right after the header in the parsed
	// record sequence; with a synthetic header every record is data.
	base := res.HeaderRow + 1
	if res.SyntheticHeader {
		base = 0
	}

	for i, rec := range data {
		srcRow := base + i
		if len(rec) != len(res.Columns) {
			table.Skipped = append(table.Skipped, RowShapeError{
				Row:  srcRow,
				Got:  len(rec),
				Want: len(res.Columns),
			})
			continue
		}

		row := make([]Value, len(rec))
		for j, tok := range rec {
			row[j] = coerceCell(tok, kinds[j], layouts[j], conv, srcRow, res.Columns[j], table)
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}

// coerceCell applies the column's decided kind to one token. Failures are
// recorded and become null; they never abort the row.
func coerceCell(tok, kind, layout string, conv DecimalConvention, row int, col string, table *CleanTable) Value {
	cleaned := CleanCell(tok)
	if cleaned == "" {
		return Null
	}

	switch kind {
	case ColumnIdentifier, ColumnText:
		return StringValue(cleaned)

	case ColumnNumeric:
		v, ok := CoerceNumeric(tok, conv)
		if !ok {
			table.CellErrors = append(table.CellErrors, CellError{
				Row:    row,
				Column: col,
				Token:  cleaned,
				Reason: "numeric coercion failed",
			})
			return Null
		}
		return v

	case ColumnDate:
		v, ok := CoerceDate(tok, layout)
		if !ok {
			table.CellErrors = append(table.CellErrors, CellError{
				Row:    row,
				Column: col,
				Token:  cleaned,
				Reason: "date coercion failed",
			})
			return Null
		}
		return v
	}
	return StringValue(cleaned)
}

// detectColumnKind samples a column and decides how every cell in it will be
// coerced. Identifier columns are decided by name, dates need one layout to
// parse all samples, numeric needs a majority of parseable samples.
func detectColumnKind(data [][]string, j int, conv DecimalConvention, identifier bool) (kind, layout string) {
	if identifier {
		return ColumnIdentifier, ""
	}

	var samples []string
	for _, rec := range data {
		if j >= len(rec) {
			continue
		}
		s := CleanCell(rec[j])
		if s == "" {
			continue
		}
		samples = append(samples, s)
		if len(samples) >= sampleCells {
			break
		}
	}
	if len(samples) == 0 {
		return ColumnText, ""
	}

	if l := detectDateLayout(samples); l != "" {
		return ColumnDate, l
	}

	numeric := 0
	for _, s := range samples {
		if _, ok := CoerceNumeric(s, conv); ok {
			numeric++
		}
	}
	if numeric*2 > len(samples) {
		return ColumnNumeric, ""
	}
	return ColumnText, ""
}
