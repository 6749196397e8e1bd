// Package sniff inspects a raw vendor export and infers the structural
// parameters needed to parse it: field delimiter, header row, and text
// encoding.
//
// Telecom tooling exports CSV with no shared convention. PM counter dumps
// tend to be semicolon-separated with comma decimals, CM exports are often
// comma-separated, and drive-test logs are frequently tab-separated. The
// sniffer scores a fixed list of candidate delimiters instead of trusting
// file extensions or vendor names, and records which rule won so a clean
// table can always be traced back to the decision that produced it.
package sniff

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DefaultSampleLines is how many non-empty lines are examined when scoring
// delimiters and searching for the header row.
const DefaultSampleLines = 20

// Candidate is one delimiter rule. Candidates are evaluated in order and the
// order doubles as the tie-break: semicolon beats comma beats tab, matching
// the observed vendor bias toward semicolon exports with comma decimals.
type Candidate struct {
	Name  string
	Delim rune
}

// Candidates is the ordered rule list for delimiter inference.
var Candidates = []Candidate{
	{Name: "semicolon", Delim: ';'},
	{Name: "comma", Delim: ','},
	{Name: "tab", Delim: '\t'},
}

// RuleSingleColumn is recorded when no candidate delimiter appears at all
// and the file is treated as a single-column table.
const RuleSingleColumn = "single-column"

// Encodings reported in Result.Encoding.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

// ErrEmptyInput is returned when the content has no non-empty lines.
// The raw copy is still archived by the caller; only the clean copy is
// impossible to produce.
var ErrEmptyInput = errors.New("sniff: no parsable content")

// EncodingError reports content that cannot be treated as text under either
// UTF-8 or the Latin-1 fallback. It is reported, never silently retried.
type EncodingError struct {
	Offset int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("sniff: undecodable byte content at offset %d", e.Offset)
}

// Options controls sniffing behavior.
type Options struct {
	// SampleLines is the number of non-empty lines inspected for delimiter
	// scoring and header detection. Zero means DefaultSampleLines.
	SampleLines int
}

func (o Options) sampleLines() int {
	if o.SampleLines <= 0 {
		return DefaultSampleLines
	}
	return o.SampleLines
}

// Result holds everything downstream normalization needs: the inferred
// structure plus the fully parsed records.
type Result struct {
	// Delimiter is the inferred field separator.
	Delimiter rune
	// DelimiterRule names the candidate rule that won, for reproducibility.
	DelimiterRule string
	// Encoding is the encoding the content was decoded with.
	Encoding string
	// HeaderRow is the record index of the header row.
	HeaderRow int
	// Columns are the header tokens, or synthesized col_N names.
	Columns []string
	// SyntheticHeader is true when no header row was found and column names
	// were generated positionally. In that case every record is data.
	SyntheticHeader bool
	// Records are all parsed records, including the header row.
	Records [][]string
}

// DataRows returns the records that carry data (everything after the header,
// or all records when the header was synthesized).
func (r *Result) DataRows() [][]string {
	if r.SyntheticHeader {
		return r.Records
	}
	if r.HeaderRow+1 >= len(r.Records) {
		return nil
	}
	return r.Records[r.HeaderRow+1:]
}

// Sniff infers delimiter, header row, and encoding for raw byte content.
//
// It never modifies the input. On ErrEmptyInput or EncodingError the caller
// is expected to archive the raw bytes anyway and record the failure.
func Sniff(raw []byte, opts Options) (*Result, error) {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		return nil, &EncodingError{Offset: i}
	}

	text, encoding, err := decode(raw)
	if err != nil {
		return nil, err
	}

	lines := nonEmptyLines(text, opts.sampleLines())
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}

	delim, rule := inferDelimiter(lines)

	records, err := parse(text, delim)
	if err != nil {
		return nil, fmt.Errorf("sniff: parsing with delimiter %q: %w", string(delim), err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	res := &Result{
		Delimiter:     delim,
		DelimiterRule: rule,
		Encoding:      encoding,
		Records:       records,
	}
	res.HeaderRow, res.Columns, res.SyntheticHeader = findHeader(records, opts.sampleLines())
	return res, nil
}

// decode attempts UTF-8 first and falls back to ISO-8859-1, which is
// lossless for the single-byte legacy exports still produced by older
// planning tools. The fallback is reported via the returned encoding name.
func decode(raw []byte) (string, string, error) {
	// Strip a UTF-8 BOM if present; some Windows exports carry one.
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	if utf8.Valid(raw) {
		return string(raw), EncodingUTF8, nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", &EncodingError{Offset: 0}
	}
	return string(decoded), EncodingLatin1, nil
}

// nonEmptyLines returns up to max non-blank lines of the text.
func nonEmptyLines(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= max {
			break
		}
	}
	return out
}

// inferDelimiter scores each candidate by the variance of its per-line
// occurrence count over the sampled lines. The winner is the candidate with
// a non-zero mean count and the lowest variance; ties fall to rule order.
func inferDelimiter(lines []string) (rune, string) {
	best := -1
	bestVariance := 0.0

	for i, c := range Candidates {
		counts := make([]float64, len(lines))
		total := 0
		for j, line := range lines {
			n := strings.Count(line, string(c.Delim))
			counts[j] = float64(n)
			total += n
		}
		if total == 0 {
			continue
		}

		mean := float64(total) / float64(len(lines))
		variance := 0.0
		for _, n := range counts {
			d := n - mean
			variance += d * d
		}
		variance /= float64(len(lines))

		// Strict less-than keeps the rule-order tie-break.
		if best == -1 || variance < bestVariance {
			best = i
			bestVariance = variance
		}
	}

	if best == -1 {
		return ',', RuleSingleColumn
	}
	return Candidates[best].Delim, Candidates[best].Name
}

// parse reads every record with the inferred delimiter. Ragged rows are
// permitted here; the normalizer decides what to do with them.
func parse(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// findHeader locates the header row: the first record within the sample
// window whose token count matches the dominant column count and whose
// tokens are not all numeric. When no such record exists the header is
// synthesized positionally and all records are data.
func findHeader(records [][]string, sample int) (int, []string, bool) {
	limit := sample
	if limit > len(records) {
		limit = len(records)
	}

	dominant := dominantWidth(records[:limit])

	for i := 0; i < limit; i++ {
		if len(records[i]) != dominant {
			continue
		}
		if allNumeric(records[i]) {
			continue
		}
		cols := make([]string, len(records[i]))
		for j, tok := range records[i] {
			cols[j] = CleanHeader(tok)
		}
		return i, cols, false
	}

	cols := make([]string, dominant)
	for j := range cols {
		cols[j] = "col_" + strconv.Itoa(j+1)
	}
	return 0, cols, true
}

// dominantWidth returns the most common record length, preferring the wider
// count on ties so metadata preamble lines do not shrink the table.
func dominantWidth(records [][]string) int {
	freq := map[int]int{}
	for _, rec := range records {
		freq[len(rec)]++
	}
	width, count := 0, 0
	for w, c := range freq {
		if c > count || (c == count && w > width) {
			width, count = w, c
		}
	}
	return width
}

// allNumeric reports whether every non-empty token parses as a number under
// either decimal convention. A row of pure numbers cannot be a header.
func allNumeric(rec []string) bool {
	seen := false
	for _, tok := range rec {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			continue
		}
		// European decimal comma.
		if _, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", "."), 64); err == nil {
			continue
		}
		return false
	}
	return seen
}

// CleanHeader removes common export artifacts from a header token:
// surrounding quotes, an Excel formula prefix (="..."), and a stray BOM.
func CleanHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else {
		s = strings.TrimPrefix(s, "=")
	}

	s = strings.Trim(s, `"'`)
	return strings.Join(strings.Fields(s), " ")
}
