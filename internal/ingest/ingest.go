// Package ingest orchestrates the ingestion path: sniff the format,
// normalize the values, and write both archive copies. One file at a time,
// no shared state beyond the archive's own counters.
//
// Ingestion never rejects a file outright. The raw copy is archived even
// when the content is empty, binary, or unparsable; only the clean copy is
// skipped, and the failure is recorded on the entry so the operator can see
// exactly which export to fix.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/audit"
	"github.com/nkhelifi/radiogate/internal/normalize"
	"github.com/nkhelifi/radiogate/internal/sniff"
)

// DuplicatePolicy decides what happens when byte-identical content is
// re-ingested under the same category and filename.
type DuplicatePolicy string

const (
	// DuplicateSkip makes re-ingestion a no-op returning the existing entry.
	DuplicateSkip DuplicatePolicy = "skip"
	// DuplicateVersion archives the content again under a fresh index with
	// a bumped version number.
	DuplicateVersion DuplicatePolicy = "version"
)

// ParseDuplicatePolicy validates a configured policy name.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case DuplicateSkip, DuplicateVersion:
		return DuplicatePolicy(s), nil
	}
	return "", fmt.Errorf("ingest: unknown duplicate policy %q (want skip or version)", s)
}

// Result is the outcome of ingesting one file. A failed clean copy is a
// partial success, not an error: the entry exists and Failure says why the
// clean copy is missing.
type Result struct {
	Entry     archive.Entry `json:"entry"`
	Duplicate bool          `json:"duplicate"`
	CleanOK   bool          `json:"clean_ok"`
	Rows      int           `json:"rows"`
	Skipped   int           `json:"skipped_rows"`
	CellErrs  int           `json:"cell_errors"`
	Failure   string        `json:"failure,omitempty"`
}

// Service runs the ingestion pipeline against one archive store.
type Service struct {
	store  archive.Store
	policy DuplicatePolicy
	sniff  sniff.Options
	log    *slog.Logger
}

// NewService wires the pipeline. A nil logger falls back to slog.Default.
func NewService(store archive.Store, policy DuplicatePolicy, sniffOpts sniff.Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, policy: policy, sniff: sniffOpts, log: log}
}

// Ingest archives one file. Only store or I/O failures return an error;
// every data-quality problem degrades to a flagged Result.
func (s *Service) Ingest(ctx context.Context, cat archive.Category, filename string, raw []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest: cancelled: %w", err)
	}

	sum := sha256.Sum256(raw)
	sha := hex.EncodeToString(sum[:])

	existing, err := s.store.FindDuplicate(ctx, cat, filename, sha)
	if err != nil {
		return nil, fmt.Errorf("ingest: duplicate lookup: %w", err)
	}

	version := 1
	if existing != nil {
		if s.policy == DuplicateSkip {
			s.log.Info("skipping duplicate content",
				"category", cat, "file", filename, "index", existing.Index)
			return &Result{
				Entry:     *existing,
				Duplicate: true,
				CleanOK:   existing.HasClean,
				Skipped:   existing.SkippedRows,
				CellErrs:  existing.CellErrors,
				Failure:   existing.Failure,
			}, nil
		}
		version = existing.Version + 1
	}

	entry := archive.Entry{
		ID:         uuid.New(),
		Category:   cat,
		Filename:   filename,
		SHA256:     sha,
		Version:    version,
		IngestedAt: time.Now().UTC(),
	}

	clean, res := s.normalizeContent(cat, filename, raw, &entry)

	if err := s.store.Save(ctx, &entry, raw, clean); err != nil {
		return nil, fmt.Errorf("ingest: archiving %s: %w", filename, err)
	}
	res.Entry = entry

	s.log.Info("ingested file",
		"category", cat,
		"index", entry.Index,
		"file", filename,
		"clean", res.CleanOK,
		"rows", res.Rows,
		"skipped_rows", res.Skipped,
		"cell_errors", res.CellErrs,
	)
	return res, nil
}

// normalizeContent produces the clean document, or nil plus a recorded
// failure when no usable rows came out. The entry's quality counters are
// filled in either way.
func (s *Service) normalizeContent(cat archive.Category, filename string, raw []byte, entry *archive.Entry) ([]byte, *Result) {
	res := &Result{}

	content := raw
	if isXLSX(filename, raw) {
		converted, err := xlsxToCSV(raw)
		if err != nil {
			entry.Failure = fmt.Sprintf("xlsx extraction failed: %v", err)
			res.Failure = entry.Failure
			return nil, res
		}
		content = converted
	}

	sniffed, err := sniff.Sniff(content, s.sniff)
	if err != nil {
		// Raw archiving still proceeds; the failure travels on the entry.
		entry.Failure = err.Error()
		res.Failure = entry.Failure
		return nil, res
	}

	table := normalize.Normalize(sniffed, normalize.Options{
		IsIdentifier: audit.IsIdentifier(cat),
	})

	entry.SkippedRows = len(table.Skipped)
	entry.CellErrors = len(table.CellErrors)
	res.Rows = len(table.Rows)
	res.Skipped = len(table.Skipped)
	res.CellErrs = len(table.CellErrors)

	if len(table.Rows) == 0 {
		entry.Failure = "normalization produced no usable rows"
		res.Failure = entry.Failure
		return nil, res
	}

	doc, err := table.Encode()
	if err != nil {
		entry.Failure = fmt.Sprintf("encoding clean document: %v", err)
		res.Failure = entry.Failure
		return nil, res
	}

	res.CleanOK = true
	return doc, res
}

// IngestDir walks a category input directory and ingests every CSV or XLSX
// file in it, one at a time. Files that fail to read abort the walk; data
// problems inside a file never do.
func (s *Service) IngestDir(ctx context.Context, cat archive.Category, dir string) ([]*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading directory %s: %w", dir, err)
	}

	var results []*Result
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		if !ingestibleFile(de.Name()) {
			continue
		}

		path := filepath.Join(dir, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return results, fmt.Errorf("ingest: reading %s: %w", path, err)
		}

		res, err := s.Ingest(ctx, cat, de.Name(), raw)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func ingestibleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".xlsx":
		return true
	}
	return false
}
