// Package api exposes editing sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/dragdrop"
	"github.com/p-n-ai/pai-curriculum/internal/editor"
	"github.com/p-n-ai/pai-curriculum/internal/reference"
	"github.com/p-n-ai/pai-curriculum/internal/upload"
)

const (
	maxJSONBody     = 8 << 20
	multipartMemory = 32 << 20
	multipartSlack  = 1 << 20
	readyTimeout    = 2 * time.Second
)

var errBadRequest = errors.New("bad request")

// Check is a named readiness check.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler serves the editor API.
type Handler struct {
	sessions  *editor.Manager
	catalog   *reference.Catalog
	maxUpload int64
	checks    []Check
}

// Option configures a Handler.
type Option func(*Handler)

// WithChecks adds readiness checks reported by /readyz.
func WithChecks(checks ...Check) Option {
	return func(h *Handler) {
		h.checks = append(h.checks, checks...)
	}
}

// WithMaxUpload caps the size of a multipart upload request body.
func WithMaxUpload(n int64) Option {
	return func(h *Handler) {
		h.maxUpload = n
	}
}

// New creates the API handler.
func New(sessions *editor.Manager, catalog *reference.Catalog, opts ...Option) *Handler {
	h := &Handler{sessions: sessions, catalog: catalog, maxUpload: 500 << 20}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the HTTP router.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.closeSession)
	mux.HandleFunc("POST /api/sessions/{id}/commands", h.applyCommand)
	mux.HandleFunc("POST /api/sessions/{id}/drag/{phase}", h.drag)
	mux.HandleFunc("POST /api/sessions/{id}/lessons/{lessonId}/upload", h.upload)
	mux.HandleFunc("GET /api/sessions/{id}/uploads", h.listUploads)
	mux.HandleFunc("POST /api/sessions/{id}/save", h.save)
	mux.HandleFunc("GET /api/sessions/{id}/export.xlsx", h.exportXLSX)
	mux.HandleFunc("GET /api/sessions/{id}/export.yaml", h.exportYAML)
	mux.HandleFunc("GET /api/sessions/{id}/ws", h.websocket)

	mux.HandleFunc("GET /api/reference/{kind}", h.reference)
	mux.HandleFunc("GET /api/templates", h.templates)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		slog.Warn("readiness check failed", "checks", failed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return nil, false
	}
	return s, true
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req editor.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	s, err := h.sessions.Create(r.Context(), req)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.PathValue("id")); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyCommand(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var cmd editor.Command
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, err, nil)
		return
	}
	res, err := s.Apply(cmd)
	if err != nil {
		writeError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) drag(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	// An omitted index appends.
	ev := dragdrop.Event{Target: dragdrop.Target{Index: -1}}
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, err, nil)
		return
	}
	ev.Phase = dragdrop.Phase(r.PathValue("phase"))

	res, err := s.Drag(ev)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	limit := h.maxUpload + multipartSlack
	if r.ContentLength > limit {
		writeError(w, errTooLarge(nil), nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, errTooLarge(err), nil)
			return
		}
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file is required", errBadRequest), nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("%w: reading upload: %v", errBadRequest, err), nil)
		return
	}

	resourceID := r.FormValue("resourceId")
	st, err := s.Upload(r.PathValue("lessonId"), resourceID, upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func errTooLarge(err error) error {
	return &upload.Error{Kind: upload.KindTooLarge, Message: "the file is too large", Err: err}
}

func (h *Handler) listUploads(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": s.Uploads()})
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Save(r.Context())
	if err != nil {
		writeError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="curriculum.xlsx"`)
	if err := s.ExportXLSX(w); err != nil {
		slog.Error("xlsx export failed", "session_id", s.ID, "error", err)
	}
}

func (h *Handler) exportYAML(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := s.ExportYAML()
	if err != nil {
		writeError(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="curriculum.yaml"`)
	w.Write(data)
}

func (h *Handler) websocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Hub().Serve(w, r, s.ID); err != nil {
		slog.Debug("form subscriber disconnected", "session_id", s.ID, "error", err)
	}
}

func (h *Handler) reference(w http.ResponseWriter, r *http.Request) {
	kind, err := reference.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	l, err := h.catalog.List(r.Context(), kind)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) templates(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if l := h.sessions.Templates(); l != nil {
		ids = l.IDs()
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": ids})
}
