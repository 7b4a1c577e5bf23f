package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/goschedule"
)

const maxUpload = 100 << 20

type handler struct {
	engine goschedule.Engine
	// uploadDir keeps ingested uploads so later updates can re-hash them.
	uploadDir string
}

func newHandler(e goschedule.Engine, uploadDir string) *handler {
	return &handler{engine: e, uploadDir: uploadDir}
}

// routes registers every endpoint on a new mux.
func routes(h *handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /extract", h.handleExtract)
	mux.HandleFunc("POST /ingest", h.handleIngest)
	mux.HandleFunc("POST /export", h.handleExport)
	mux.HandleFunc("POST /update", h.handleUpdate)
	mux.HandleFunc("POST /update-all", h.handleUpdateAll)
	mux.HandleFunc("GET /terms", h.handleListTerms)
	mux.HandleFunc("GET /terms/{id}/groups", h.handleGroups)
	mux.HandleFunc("GET /terms/{id}/slots", h.handleSlots)
	mux.HandleFunc("GET /terms/{id}/issues", h.handleIssues)
	mux.HandleFunc("GET /terms/{id}/teachers/{name}", h.handleTeacherGroups)
	mux.HandleFunc("DELETE /terms/{id}", h.handleDeleteTerm)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

// POST /extract
// Multipart upload; responds with the pipeline result.
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	path, name, cleanup, ok := saveUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	res, err := h.engine.Extract(ctx, path)
	if err != nil {
		writeEngineError(w, "extraction failed", err)
		slog.Error("extract error", "file", name, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /export
// Multipart upload; responds with an XLSX workbook.
func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	path, name, cleanup, ok := saveUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	// Render fully before writing so a failure can still set the status.
	tmp, err := os.CreateTemp("", "goschedule-export-*.xlsx")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to prepare workbook")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := h.engine.Export(ctx, path, tmp); err != nil {
		writeEngineError(w, "export failed", err)
		slog.Error("export error", "file", name, "error", err)
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read workbook")
		return
	}

	base := name[:len(name)-len(filepath.Ext(name))]
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".xlsx"))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, tmp)
}

// POST /ingest
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	if isMultipart(r) {
		path, name, ok := h.keepUpload(w, r)
		if !ok {
			return
		}

		termID, err := h.engine.Ingest(ctx, path, goschedule.WithMetadata(map[string]string{
			"upload_name": name,
		}))
		if err != nil {
			writeEngineError(w, "ingestion failed", err)
			slog.Error("ingest error", "file", name, "error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"term_id":  termID,
			"filename": name,
		})
		return
	}

	var req struct {
		Path     string            `json:"path"`
		Force    bool              `json:"force,omitempty"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []goschedule.IngestOption
	if req.Force {
		opts = append(opts, goschedule.WithForceReparse())
	}
	if req.Metadata != nil {
		opts = append(opts, goschedule.WithMetadata(req.Metadata))
	}

	termID, err := h.engine.Ingest(ctx, absPath, opts...)
	if err != nil {
		writeEngineError(w, "ingestion failed", err)
		slog.Error("ingest error", "path", absPath, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"term_id": termID,
		"path":    absPath,
	})
}

// POST /update
func (h *handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	changed, err := h.engine.Update(ctx, req.Path)
	if err != nil {
		writeEngineError(w, "update failed", err)
		slog.Error("update error", "path", req.Path, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    req.Path,
		"changed": changed,
	})
}

// POST /update-all
func (h *handler) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	results, err := h.engine.UpdateAll(ctx)
	if err != nil {
		writeEngineError(w, "update-all failed", err)
		slog.Error("update-all error", "error", err)
		return
	}

	type item struct {
		TermID  int64  `json:"term_id"`
		Path    string `json:"path"`
		Changed bool   `json:"changed"`
		Error   string `json:"error,omitempty"`
	}
	out := make([]item, len(results))
	for i, res := range results {
		out[i] = item{TermID: res.TermID, Path: res.Path, Changed: res.Changed}
		if res.Error != nil {
			out[i].Error = res.Error.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// GET /terms
func (h *handler) handleListTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := h.engine.ListTerms(r.Context())
	if err != nil {
		writeEngineError(w, "failed to list terms", err)
		slog.Error("list terms error", "error", err)
		return
	}
	if terms == nil {
		terms = []goschedule.Term{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"terms": terms})
}

// GET /terms/{id}/groups
func (h *handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(w, r)
	if !ok {
		return
	}
	groups, err := h.engine.Groups(r.Context(), id)
	if err != nil {
		writeEngineError(w, "failed to list groups", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"term_id": id, "groups": groups})
}

// GET /terms/{id}/slots
func (h *handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(w, r)
	if !ok {
		return
	}
	slots, err := h.engine.Slots(r.Context(), id)
	if err != nil {
		writeEngineError(w, "failed to list slots", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"term_id": id, "slots": slots})
}

// GET /terms/{id}/issues
func (h *handler) handleIssues(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(w, r)
	if !ok {
		return
	}
	issues, err := h.engine.Issues(r.Context(), id)
	if err != nil {
		writeEngineError(w, "failed to list issues", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"term_id": id, "issues": issues})
}

// DELETE /terms/{id}
func (h *handler) handleDeleteTerm(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeEngineError(w, "delete failed", err)
		slog.Error("delete error", "term_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /terms/{id}/teachers/{name}
func (h *handler) handleTeacherGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "teacher name is required")
		return
	}
	groups, err := h.engine.TeacherGroups(r.Context(), id, name)
	if err != nil {
		writeEngineError(w, "failed to list teacher groups", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"term_id": id, "teacher": name, "groups": groups})
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeEngineError(w, "failed to read stats", err)
		slog.Error("stats error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s := h.engine.Catalog(); s != nil {
		if err := s.DB().PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			slog.Error("health check error", "error", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func termID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid term id")
		return 0, false
	}
	return id, true
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// saveUpload copies the "file" form field to a temporary file that keeps
// the upload's extension, so the loader can be chosen from it.
func saveUpload(w http.ResponseWriter, r *http.Request) (path, name string, cleanup func(), ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart upload with a 'file' field")
		return "", "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field")
		return "", "", nil, false
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	name = filepath.Base(header.Filename)
	path, err = copyToTemp(file, filepath.Ext(name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return "", "", nil, false
	}
	return path, name, func() { os.Remove(path) }, true
}

// keepUpload stores the "file" form field under uploadDir by its base name,
// so re-uploading the same term maps to the same catalog entry.
func (h *handler) keepUpload(w http.ResponseWriter, r *http.Request) (path, name string, ok bool) {
	tmp, name, cleanup, ok := saveUpload(w, r)
	if !ok {
		return "", "", false
	}
	defer cleanup()

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to prepare upload directory")
		slog.Error("creating upload dir", "dir", h.uploadDir, "error", err)
		return "", "", false
	}
	path = filepath.Join(h.uploadDir, name)
	if err := os.Rename(tmp, path); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("moving upload", "path", path, "error", err)
		return "", "", false
	}
	return path, name, true
}

func copyToTemp(src multipart.File, ext string) (string, error) {
	dst, err := os.CreateTemp("", "goschedule-upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), dst.Close()
}

// writeEngineError maps engine sentinel errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, goschedule.ErrTermNotFound):
		status = http.StatusNotFound
	case errors.Is(err, goschedule.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, goschedule.ErrNoSchedules), errors.Is(err, goschedule.ErrParsingFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, goschedule.ErrStoreClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status != http.StatusInternalServerError {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
