package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/formfile/pkg/contenttype"
	"github.com/vango-dev/formfile/pkg/upload"
)

// server serves the upload routes.
type server struct {
	store       *upload.TempStore
	uploadCfg   *upload.Config
	destDir     string
	metricsPath string
	gatherer    prometheus.Gatherer
	metrics     *upload.Metrics
	logger      *slog.Logger
}

// storedFile is the JSON form of a file moved into destDir.
type storedFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`

	// Stored lists files already moved into destDir before the failure.
	Stored []storedFile `json:"stored,omitempty"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metricsPath != "" && s.gatherer != nil {
		r.Method(http.MethodGet, s.metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(upload.Middleware(s.store, s.uploadCfg,
			upload.WithLogger(s.logger),
			upload.WithMetrics(s.metrics),
		))
		r.Post("/upload/{field}", s.handleUpload)
		r.Post("/echo/{field}", s.handleEcho)
	})

	return r
}

// handleUpload stores every file sent under the field in destDir.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	x := upload.FromContext(r.Context())
	if x == nil {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: upload.ErrNotMultipart.Error()})
		return
	}

	files, err := x.GetAll(r.Context(), chi.URLParam(r, "field"))
	if err != nil {
		s.uploadFailed(w, err)
		return
	}

	stored := make([]storedFile, 0, len(files))
	for _, f := range files {
		dst := filepath.Join(s.destDir, uuid.NewString()+"-"+upload.SanitizeFilename(f.Name()))
		if err := f.Move(dst); err != nil {
			s.logger.Error("store upload", "name", f.Name(), "dst", dst, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:  "could not store file " + strconv.Quote(f.Name()),
				Stored: stored,
			})
			return
		}
		stored = append(stored, storedFile{
			Name:        f.Name(),
			ContentType: f.ContentType(),
			Size:        f.Size(),
			Path:        f.Path(),
		})
	}

	s.logger.Info("stored uploads", "field", chi.URLParam(r, "field"), "count", len(stored))
	writeJSON(w, http.StatusCreated, stored)
}

// handleEcho streams the first file of the field back with its detected
// content type.
func (s *server) handleEcho(w http.ResponseWriter, r *http.Request) {
	x := upload.FromContext(r.Context())
	if x == nil {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: upload.ErrNotMultipart.Error()})
		return
	}

	f, err := x.GetSingle(r.Context(), chi.URLParam(r, "field"))
	if err != nil {
		s.uploadFailed(w, err)
		return
	}

	if ct := f.ContentType(); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := f.WriteTo(w); err != nil {
		s.logger.Warn("echo upload", "name", f.Name(), "error", err)
	}
}

// uploadFailed answers with the status matching the upload code, or 400
// when the field is missing.
func (s *server) uploadFailed(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError
	if code, ok := upload.CodeOf(err); ok {
		status = upload.StatusCode(code)
		body.Code = code.String()
	} else if errors.Is(err, upload.ErrMissingField) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contenttype.JSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
