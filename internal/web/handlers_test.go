package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/config"
	"github.com/nkhelifi/radiogate/internal/ingest"
	"github.com/nkhelifi/radiogate/internal/sniff"
)

type fakeStore struct {
	counters map[archive.Category]int
	entries  []archive.Entry
	raws     map[string][]byte
	cleans   map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		counters: map[archive.Category]int{},
		raws:     map[string][]byte{},
		cleans:   map[string][]byte{},
	}
}

func storeKey(cat archive.Category, idx int) string { return fmt.Sprintf("%s/%d", cat, idx) }

func (f *fakeStore) Save(_ context.Context, e *archive.Entry, raw, clean []byte) error {
	e.Index = f.counters[e.Category]
	f.counters[e.Category]++
	e.HasClean = clean != nil
	f.entries = append(f.entries, *e)
	f.raws[storeKey(e.Category, e.Index)] = raw
	if clean != nil {
		f.cleans[storeKey(e.Category, e.Index)] = clean
	}
	return nil
}

func (f *fakeStore) FindDuplicate(_ context.Context, cat archive.Category, filename, sha string) (*archive.Entry, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.Category == cat && e.Filename == filename && e.SHA256 == sha {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Get(_ context.Context, cat archive.Category, idx int) (*archive.Entry, error) {
	for _, e := range f.entries {
		if e.Category == cat && e.Index == idx {
			out := e
			return &out, nil
		}
	}
	return nil, archive.ErrNotFound
}

func (f *fakeStore) Raw(_ context.Context, cat archive.Category, idx int) ([]byte, error) {
	b, ok := f.raws[storeKey(cat, idx)]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) Clean(_ context.Context, cat archive.Category, idx int) ([]byte, error) {
	b, ok := f.cleans[storeKey(cat, idx)]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) List(_ context.Context, cat archive.Category) ([]archive.Entry, error) {
	var out []archive.Entry
	for _, e := range f.entries {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func testServer(store archive.Store) *Server {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			RequestTimeout:  time.Minute,
			ShutdownTimeout: time.Second,
		},
		Ingest: config.IngestConfig{MaxFileSize: 1 << 20, InputDir: "data"},
	}
	svc := ingest.NewService(store, ingest.DuplicateSkip, sniff.Options{}, nil)
	return NewServer(store, svc, cfg)
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(newFakeStore())

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHandleGetEntry_NotFound(t *testing.T) {
	srv := testServer(newFakeStore())

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/entries/pm/0", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Code != "NOT_FOUND" {
		t.Errorf("error code = %q, want %q", resp.Code, "NOT_FOUND")
	}
}

func TestHandleGetEntry_BadCategory(t *testing.T) {
	srv := testServer(newFakeStore())

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/entries/billing/0", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleIngest_RoundTrip(t *testing.T) {
	store := newFakeStore()
	srv := testServer(store)

	csv := "Cell ID;Traffic\n001;1.234,5\n"
	req := multipartRequest(t, "/api/ingest/pm", "pm.csv", []byte(csv))

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var res ingest.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !res.CleanOK {
		t.Errorf("CleanOK = false: %s", res.Failure)
	}

	// The raw endpoint returns the upload byte for byte.
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/entries/pm/0/raw", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("raw status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != csv {
		t.Errorf("raw body = %q, want %q", rr.Body.String(), csv)
	}
}

func TestHandleIngest_DuplicateReturnsOK(t *testing.T) {
	store := newFakeStore()
	srv := testServer(store)

	csv := "Cell ID;Traffic\n001;1,5\n"
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, multipartRequest(t, "/api/ingest/cm", "cm.csv", []byte(csv)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("first upload status = %d, want %d", rr.Code, http.StatusCreated)
	}

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, multipartRequest(t, "/api/ingest/cm", "cm.csv", []byte(csv)))
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicate upload status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHandleAudit_Empty(t *testing.T) {
	srv := testServer(newFakeStore())

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/audit", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func multipartRequest(t *testing.T, url, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
