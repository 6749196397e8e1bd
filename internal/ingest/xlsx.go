package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxMagic is the ZIP local file header every OOXML workbook starts with.
var xlsxMagic = []byte{'P', 'K', 0x03, 0x04}

func isXLSX(filename string, raw []byte) bool {
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return false
	}
	return bytes.HasPrefix(raw, xlsxMagic)
}

// xlsxToCSV extracts the first sheet of a workbook as comma-separated text
// so the rest of the pipeline sees a plain CSV. Cell values come out as
// excelize formats them, which keeps dates and numbers in the textual shape
// the exporting tool produced.
func xlsxToCSV(raw []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing rows: %w", err)
	}
	return buf.Bytes(), nil
}
