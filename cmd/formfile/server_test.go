package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/vango-dev/formfile/pkg/upload"
)

const (
	testTempDir = "/tmp/uploads"
	testDestDir = "/srv/stored"
)

func newTestServer(t *testing.T, cfg *upload.Config) (*server, afero.Fs) {
	t.Helper()
	return newTestServerOn(t, afero.NewMemMapFs(), cfg)
}

func newTestServerOn(t *testing.T, fs afero.Fs, cfg *upload.Config) (*server, afero.Fs) {
	t.Helper()

	store, err := upload.NewTempStore(fs, testTempDir)
	if err != nil {
		t.Fatalf("NewTempStore: %v", err)
	}
	if err := fs.MkdirAll(testDestDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if cfg == nil {
		cfg = upload.DefaultConfig()
	}

	registry := prometheus.NewRegistry()
	return &server{
		store:       store,
		uploadCfg:   cfg,
		destDir:     testDestDir,
		metricsPath: "/metrics",
		gatherer:    registry,
		metrics:     upload.NewMetrics(upload.WithRegistry(registry)),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, fs
}

// postFiles sends files (field, filename, content triples) to path.
func postFiles(t *testing.T, h http.Handler, path string, files ...[3]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f[0], f[1])
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(f[2])); err != nil {
			t.Fatalf("part.Write: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestServer_UploadStoresFiles(t *testing.T) {
	srv, fs := newTestServer(t, nil)
	h := srv.routes()

	rec := postFiles(t, h, "/upload/docs",
		[3]string{"docs[]", "notes.txt", "hello world"},
		[3]string{"docs[]", "../../etc/passwd", "root:x:0:0"},
	)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var stored []storedFile
	if err := json.NewDecoder(rec.Body).Decode(&stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d files, want 2", len(stored))
	}

	if stored[0].Name != "notes.txt" || stored[0].Size != 11 {
		t.Errorf("stored[0] = %+v", stored[0])
	}
	if !strings.HasPrefix(stored[0].ContentType, "text/plain") {
		t.Errorf("ContentType = %q, want text/plain", stored[0].ContentType)
	}
	for _, s := range stored {
		if !strings.HasPrefix(s.Path, testDestDir+"/") {
			t.Errorf("Path = %q, want it under %s", s.Path, testDestDir)
		}
		if strings.Contains(strings.TrimPrefix(s.Path, testDestDir+"/"), "/") {
			t.Errorf("Path = %q escapes the dest dir", s.Path)
		}
	}

	got, err := afero.ReadFile(fs, stored[0].Path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("stored content = %q", got)
	}

	left, err := afero.ReadDir(fs, testTempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("temp dir has %d files, want 0", len(left))
	}
}

// failingRenameFs refuses to rename onto destinations containing "fail".
type failingRenameFs struct {
	afero.Fs
}

func (fs failingRenameFs) Rename(oldname, newname string) error {
	if strings.Contains(filepath.Base(newname), "fail") {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EACCES}
	}
	return fs.Fs.Rename(oldname, newname)
}

func TestServer_UploadReportsStoredFilesOnFailure(t *testing.T) {
	srv, fs := newTestServerOn(t, failingRenameFs{afero.NewMemMapFs()}, nil)

	rec := postFiles(t, srv.routes(), "/upload/docs",
		[3]string{"docs[]", "first.txt", "one"},
		[3]string{"docs[]", "fail.txt", "two"},
	)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	body := decodeError(t, rec)
	if !strings.Contains(body.Error, "fail.txt") {
		t.Errorf("error = %q, want the failing file name", body.Error)
	}
	if len(body.Stored) != 1 || body.Stored[0].Name != "first.txt" {
		t.Fatalf("stored = %+v, want only first.txt", body.Stored)
	}
	if ok, _ := afero.Exists(fs, body.Stored[0].Path); !ok {
		t.Errorf("reported file %s should exist", body.Stored[0].Path)
	}
}

func TestServer_UploadMissingField(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := postFiles(t, srv.routes(), "/upload/avatar",
		[3]string{"other", "a.txt", "x"},
	)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeError(t, rec)
	if !strings.Contains(body.Error, "no file was uploaded") {
		t.Errorf("error = %q", body.Error)
	}
	if body.Code != "" {
		t.Errorf("code = %q, want empty", body.Code)
	}
}

func TestServer_UploadErrorCode(t *testing.T) {
	srv, fs := newTestServer(t, &upload.Config{MaxFileSize: 4})

	rec := postFiles(t, srv.routes(), "/upload/avatar",
		[3]string{"avatar", "big.bin", "0123456789"},
	)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "ini_size" {
		t.Errorf("code = %q, want ini_size", body.Code)
	}

	stored, _ := afero.ReadDir(fs, testDestDir)
	if len(stored) != 0 {
		t.Errorf("dest dir has %d files, want 0", len(stored))
	}
}

func TestServer_UploadNotMultipart(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload/avatar", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestServer_Echo(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	pdf := "%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"

	rec := postFiles(t, srv.routes(), "/echo/doc",
		[3]string{"doc[]", "report.pdf", pdf},
		[3]string{"doc[]", "second.pdf", "ignored"},
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", ct)
	}
	if rec.Body.String() != pdf {
		t.Errorf("body = %q, want the first file", rec.Body.String())
	}
	// The reported size is not trusted for framing.
	if cl := rec.Header().Get("Content-Length"); cl != "" {
		t.Errorf("Content-Length = %q, want unset", cl)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}

	postFiles(t, h, "/upload/f", [3]string{"f", "a.txt", "abc"})

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	for _, want := range []string{
		`formfile_upload_files_extracted_total{op="all"} 1`,
		`formfile_upload_moves_total{result="success"} 1`,
		"formfile_upload_parse_duration_seconds_count 1",
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
