package upload

import (
	"errors"
	"net/http"
	"time"

	"github.com/vango-dev/formfile/pkg/contenttype"
)

// Middleware parses multipart requests into an upload table and puts an
// Extractor for it in the request context. Handlers fetch it with
// FromContext:
//
//	r := chi.NewRouter()
//	r.Use(upload.Middleware(store, upload.DefaultConfig()))
//	r.Post("/avatar", func(w http.ResponseWriter, r *http.Request) {
//	    f, err := upload.FromContext(r.Context()).GetSingle(r.Context(), "avatar")
//	    ...
//	})
//
// Files that were not moved by the time the handler returns are removed.
// Requests that are not multipart/form-data pass through untouched.
func Middleware(store *TempStore, cfg *Config, opts ...Option) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !contenttype.Matches(r.Header.Get("Content-Type"), contenttype.FormData) {
				next.ServeHTTP(w, r)
				return
			}

			scope := store.Scope()
			x := NewExtractor(nil, scope, opts...)
			defer func() {
				if err := scope.Release(); err != nil {
					x.logger.Warn("release temp files", "error", err)
				}
			}()

			start := time.Now()
			table, err := ParseRequest(r, scope, cfg)
			x.metrics.observeParse(start)
			if err != nil {
				x.logger.Debug("parse upload request", "path", r.URL.Path, "error", err)
				if errors.Is(err, ErrTooLarge) {
					http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "Failed to parse form", http.StatusBadRequest)
				return
			}
			x.table = table

			next.ServeHTTP(w, r.WithContext(WithExtractor(r.Context(), x)))
		})
	}
}
