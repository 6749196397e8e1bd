package web

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/audit"
	"github.com/nkhelifi/radiogate/internal/logging"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleListAll returns every archived entry grouped by category.
func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	out := map[archive.Category][]archive.Entry{}
	for _, cat := range archive.Categories {
		entries, err := s.store.List(r.Context(), cat)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if entries == nil {
			entries = []archive.Entry{}
		}
		out[cat] = entries
	}
	writeJSON(w, out)
}

// handleListCategory returns the entries of one category ordered by index.
func (s *Server) handleListCategory(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.category(w, r)
	if !ok {
		return
	}
	entries, err := s.store.List(r.Context(), cat)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, entries)
}

// handleGetEntry returns one entry's metadata.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	cat, idx, ok := s.categoryIndex(w, r)
	if !ok {
		return
	}
	entry, err := s.store.Get(r.Context(), cat, idx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// handleGetRaw streams the byte-exact raw copy of an entry.
func (s *Server) handleGetRaw(w http.ResponseWriter, r *http.Request) {
	cat, idx, ok := s.categoryIndex(w, r)
	if !ok {
		return
	}
	raw, err := s.store.Raw(r.Context(), cat, idx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(raw)
}

// handleGetClean returns the normalized clean document.
func (s *Server) handleGetClean(w http.ResponseWriter, r *http.Request) {
	cat, idx, ok := s.categoryIndex(w, r)
	if !ok {
		return
	}
	clean, err := s.store.Clean(r.Context(), cat, idx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(clean)
}

// handleAudit runs the cross-file audit over the whole archive.
// ?format=text returns the rendered matrix instead of JSON;
// ?show-all=true includes one-off counters in the text rendering.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	matrix, err := audit.Scan(r.Context(), s.store)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		showAll, _ := strconv.ParseBool(r.URL.Query().Get("show-all"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, matrix.Render(audit.RenderOptions{ShowAll: showAll}))
		return
	}
	writeJSON(w, matrix)
}

// handleIngest accepts a multipart upload and runs it through the pipeline.
// Data-quality problems do not fail the request; the response says whether
// the clean copy was produced.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.category(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondBadRequest(w, "missing or oversized file upload",
			"send the export as multipart form field \"file\"")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		respondBadRequest(w, "reading upload failed", "resend the file")
		return
	}

	logger := logging.WithFields(r.Context(), "category", cat, "file", header.Filename)
	logger.Info("ingest upload received", "bytes", len(raw))

	res, err := s.ingestor.Ingest(r.Context(), cat, header.Filename, raw)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, res)
}

// category parses the {category} URL parameter.
func (s *Server) category(w http.ResponseWriter, r *http.Request) (archive.Category, bool) {
	cat, err := archive.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		respondBadRequest(w, "unknown category", "use one of: pm, cm, site, rf")
		return "", false
	}
	return cat, true
}

// categoryIndex parses the {category} and {index} URL parameters.
func (s *Server) categoryIndex(w http.ResponseWriter, r *http.Request) (archive.Category, int, bool) {
	cat, ok := s.category(w, r)
	if !ok {
		return "", 0, false
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 {
		respondBadRequest(w, "invalid index", "index must be a non-negative integer")
		return "", 0, false
	}
	return cat, idx, true
}
