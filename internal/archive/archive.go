// Package archive is the dual archive behind the ingestion pipeline: a
// namespaced blob store keyed by (category, index, kind) where kind is the
// untouched raw copy or the normalized clean document.
//
// The per-category ordinal index is an explicit counter owned by the store
// and advanced atomically inside the same transaction that writes the entry,
// so parallel ingestion can never duplicate or skip an index. Raw bytes are
// immutable once written; clean documents are derived and may be absent when
// normalization failed.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category is the source category of an ingested file.
type Category string

const (
	PM   Category = "pm"   // performance management counters
	CM   Category = "cm"   // configuration management exports
	Site Category = "site" // site design records
	RF   Category = "rf"   // drive-test / RF logs
)

// Categories lists all known categories in display order.
var Categories = []Category{PM, CM, Site, RF}

// ParseCategory validates a user-supplied category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("archive: unknown category %q (want pm, cm, site, or rf)", s)
}

// ErrNotFound is returned when no entry exists for a category and index.
var ErrNotFound = errors.New("archive: entry not found")

// Entry is the archive record for one ingested file. Index is assigned at
// first ingestion, is monotonic per category, and is never reused.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Category    Category  `json:"category"`
	Index       int       `json:"index"`
	Filename    string    `json:"filename"`
	SHA256      string    `json:"sha256"`
	Version     int       `json:"version"`
	IngestedAt  time.Time `json:"ingested_at"`
	HasClean    bool      `json:"has_clean"`
	SkippedRows int       `json:"skipped_rows"`
	CellErrors  int       `json:"cell_errors"`
	Failure     string    `json:"failure,omitempty"`
}

// Store persists archive entries. Implementations must assign Entry.Index
// atomically in Save and must return raw bytes exactly as written.
type Store interface {
	// Save writes the entry with its raw bytes and optional clean document
	// (nil when normalization produced no usable rows). It assigns the next
	// per-category index to e.Index before returning.
	Save(ctx context.Context, e *Entry, raw, clean []byte) error

	// FindDuplicate returns the most recent entry with the same category,
	// filename, and content hash, or nil when none exists.
	FindDuplicate(ctx context.Context, cat Category, filename, sha256 string) (*Entry, error)

	// Get returns the entry for a category and index.
	Get(ctx context.Context, cat Category, index int) (*Entry, error)

	// Raw returns the original bytes of an entry, byte-exact.
	Raw(ctx context.Context, cat Category, index int) ([]byte, error)

	// Clean returns the clean document of an entry, or ErrNotFound when the
	// entry exists but normalization failed.
	Clean(ctx context.Context, cat Category, index int) ([]byte, error)

	// List returns all entries for a category ordered by index. An empty
	// category yields an empty slice, not an error.
	List(ctx context.Context, cat Category) ([]Entry, error)

	Close() error
}
