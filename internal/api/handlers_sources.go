package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/bookweave/internal/ingest"
	"github.com/dgallion1/bookweave/internal/paginate"
	"github.com/dgallion1/bookweave/internal/parser"
)

// handleUploadSource turns one uploaded book file into a lined source.
// Form fields: file, source_id, name, lines_per_page, clean, chapters
// (a JSON array of {name, page}).
func (s *Server) handleUploadSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	opts, err := s.uploadOptions(r, filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	dir, err := os.MkdirTemp("", "bookweave-upload-*")
	if err != nil {
		jsonError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filename)
	out, err := os.Create(path)
	if err != nil {
		jsonError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if err := out.Close(); err != nil {
		jsonError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}

	src, sum, err := ingest.Load(r.Context(), path, opts)
	if err != nil {
		s.log.Warn("source upload failed", "filename", filename, "error", err)
		jsonError(w, "could not load source: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.log.Info("source loaded",
		"source_id", src.ID,
		"filename", filename,
		"pages", sum.Pages,
		"lines", sum.Lines,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"source":  src,
		"summary": sum,
	})
}

func (s *Server) uploadOptions(r *http.Request, filename string) (ingest.Options, error) {
	opts := ingest.Options{
		ID:        strings.TrimSpace(r.FormValue("source_id")),
		Name:      strings.TrimSpace(r.FormValue("name")),
		Normalize: true,
		Paginate:  paginate.DefaultConfig(),
		Parser:    parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext},
	}
	if opts.ID == "" {
		opts.ID = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	opts.Paginate.LinesPerPage = s.cfg.LinesPerPage

	if v := r.FormValue("lines_per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("lines_per_page must be a positive integer, got %q", v)
		}
		opts.Paginate.LinesPerPage = n
	}
	if v := r.FormValue("clean"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("clean must be a boolean, got %q", v)
		}
		if on {
			c := ingest.DefaultCleaning()
			opts.Cleaning = &c
		}
	}
	if v := r.FormValue("chapters"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.Chapters); err != nil {
			return opts, fmt.Errorf("chapters: %w", err)
		}
	}
	return opts, nil
}

func sanitizeFilename(name string) string {
	// Keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
