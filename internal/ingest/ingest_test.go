package ingest

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/normalize"
	"github.com/nkhelifi/radiogate/internal/sniff"
)

// memStore is an in-memory archive.Store for pipeline tests. Indices are
// assigned per category in Save, the same contract the real backends keep.
type memStore struct {
	counters map[archive.Category]int
	entries  []archive.Entry
	raws     map[string][]byte
	cleans   map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{
		counters: map[archive.Category]int{},
		raws:     map[string][]byte{},
		cleans:   map[string][]byte{},
	}
}

func key(cat archive.Category, idx int) string { return fmt.Sprintf("%s/%d", cat, idx) }

func (m *memStore) Save(_ context.Context, e *archive.Entry, raw, clean []byte) error {
	e.Index = m.counters[e.Category]
	m.counters[e.Category]++
	e.HasClean = clean != nil
	m.entries = append(m.entries, *e)
	m.raws[key(e.Category, e.Index)] = append([]byte(nil), raw...)
	if clean != nil {
		m.cleans[key(e.Category, e.Index)] = append([]byte(nil), clean...)
	}
	return nil
}

func (m *memStore) FindDuplicate(_ context.Context, cat archive.Category, filename, sha string) (*archive.Entry, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Category == cat && e.Filename == filename && e.SHA256 == sha {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memStore) Get(_ context.Context, cat archive.Category, idx int) (*archive.Entry, error) {
	for _, e := range m.entries {
		if e.Category == cat && e.Index == idx {
			out := e
			return &out, nil
		}
	}
	return nil, archive.ErrNotFound
}

func (m *memStore) Raw(_ context.Context, cat archive.Category, idx int) ([]byte, error) {
	b, ok := m.raws[key(cat, idx)]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return b, nil
}

func (m *memStore) Clean(_ context.Context, cat archive.Category, idx int) ([]byte, error) {
	b, ok := m.cleans[key(cat, idx)]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return b, nil
}

func (m *memStore) List(_ context.Context, cat archive.Category) ([]archive.Entry, error) {
	var out []archive.Entry
	for _, e := range m.entries {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

const pmCSV = "Cell ID;Traffic;Drops\n001;1.234,5;3\n002;987,6;0\n"

func newTestService(store archive.Store, policy DuplicatePolicy) *Service {
	return NewService(store, policy, sniff.Options{}, nil)
}

func TestIngest_AssignsSequentialIndices(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, DuplicateSkip)
	ctx := context.Background()

	for i, name := range []string{"a.csv", "b.csv", "c.csv"} {
		content := fmt.Sprintf("Cell ID;Traffic\n%03d;1,%d\n", i, i)
		res, err := svc.Ingest(ctx, archive.PM, name, []byte(content))
		if err != nil {
			t.Fatalf("Ingest(%s): %v", name, err)
		}
		if res.Entry.Index != i {
			t.Errorf("entry %s: Index = %d, want %d", name, res.Entry.Index, i)
		}
		if !res.CleanOK {
			t.Errorf("entry %s: clean copy missing: %s", name, res.Failure)
		}
	}
}

func TestIngest_RawRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, DuplicateSkip)
	ctx := context.Background()

	raw := []byte(pmCSV)
	res, err := svc.Ingest(ctx, archive.PM, "pm.csv", raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	got, err := store.Raw(ctx, archive.PM, res.Entry.Index)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("raw bytes changed through the archive:\n got %q\nwant %q", got, raw)
	}
}

func TestIngest_CleanDocumentDecodes(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, DuplicateSkip)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, archive.PM, "pm.csv", []byte(pmCSV))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Rows != 2 {
		t.Fatalf("Rows = %d, want 2", res.Rows)
	}

	doc, err := store.Clean(ctx, archive.PM, res.Entry.Index)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	table, err := normalize.Decode(doc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("decoded rows = %d, want 2", len(table.Rows))
	}
	// Semicolon delimiter means comma decimals, and Cell ID stays textual.
	row := table.RowMap(0)
	if got := row["Cell ID"].Display(); got != "001" {
		t.Errorf("Cell ID = %q, want %q", got, "001")
	}
	if got := row["Traffic"].Display(); got != "1234.5" {
		t.Errorf("Traffic = %q, want %q", got, "1234.5")
	}
}

func TestIngest_EmptyInputArchivesRawOnly(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, DuplicateSkip)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, archive.PM, "empty.csv", nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.CleanOK {
		t.Fatal("CleanOK = true for empty input")
	}
	if res.Failure == "" {
		t.Fatal("Failure not recorded for empty input")
	}
	if _, err := store.Raw(ctx, archive.PM, res.Entry.Index); err != nil {
		t.Errorf("raw copy missing: %v", err)
	}
	if _, err := store.Clean(ctx, archive.PM, res.Entry.Index); err == nil {
		t.Error("clean copy exists for empty input")
	}
}

func TestIngest_DuplicateSkip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, DuplicateSkip)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, archive.CM, "cm.csv", []byte(pmCSV))
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := svc.Ingest(ctx, archive.CM, "cm.csv", []byte(pmCSV))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("Duplicate = false on re-ingest")
	}
	if second.Entry.Index != first.Entry.Index {
		t.Errorf("skip returned index %d, want existing %d", second.Entry.Index, first.Entry.Index)
	}
	if n := len(store.entries); n != 1 {
		t.Errorf("store has %d entries, want 1", n)
	}
}

func TestIngest_DuplicateVersion(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, DuplicateVersion)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, archive.CM, "cm.csv", []byte(pmCSV))
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := svc.Ingest(ctx, archive.CM, "cm.csv", []byte(pmCSV))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second.Duplicate {
		t.Error("version policy marked result as duplicate")
	}
	if second.Entry.Index == first.Entry.Index {
		t.Error("version policy reused the index")
	}
	if first.Entry.Version != 1 || second.Entry.Version != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", first.Entry.Version, second.Entry.Version)
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	if _, err := ParseDuplicatePolicy("skip"); err != nil {
		t.Errorf("skip: %v", err)
	}
	if _, err := ParseDuplicatePolicy("version"); err != nil {
		t.Errorf("version: %v", err)
	}
	if _, err := ParseDuplicatePolicy("overwrite"); err == nil {
		t.Error("overwrite: expected error")
	}
}

func TestIsXLSX(t *testing.T) {
	zip := []byte{'P', 'K', 0x03, 0x04, 0x00}
	if !isXLSX("report.xlsx", zip) {
		t.Error("zip content with .xlsx extension not detected")
	}
	if isXLSX("report.csv", zip) {
		t.Error("csv extension detected as workbook")
	}
	if isXLSX("report.xlsx", []byte("Cell ID;Traffic")) {
		t.Error("plain text with .xlsx extension detected as workbook")
	}
}
