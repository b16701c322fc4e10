package upload_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/vango-dev/formfile/pkg/upload"
)

// formPart is one part of a test request. Parts with file=false are plain
// form values.
type formPart struct {
	field    string
	filename string
	content  string
	file     bool
}

func fileField(field, filename, content string) formPart {
	return formPart{field: field, filename: filename, content: content, file: true}
}

func valueField(field, value string) formPart {
	return formPart{field: field, content: value}
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, p := range parts {
		if !p.file {
			if err := writer.WriteField(p.field, p.content); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
			continue
		}
		part, err := writer.CreateFormFile(p.field, p.filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(p.content)); err != nil {
			t.Fatalf("part.Write: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func newMultipartUploadRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func parse(t *testing.T, store *upload.TempStore, cfg *upload.Config, req *http.Request) upload.Table {
	t.Helper()
	table, err := upload.ParseRequest(req, store, cfg)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	return table
}

func TestParseRequest_SingleFile(t *testing.T) {
	store, fs := newStore(t)
	req := newMultipartUploadRequest(t,
		valueField("title", "quarterly"),
		fileField("doc", "report.pdf", "%PDF-1.4 fake"),
	)

	table := parse(t, store, nil, req)

	fd, ok := table["doc"]
	if !ok {
		t.Fatal("field doc missing from table")
	}
	if fd.Multiple {
		t.Error("plain field should not be Multiple")
	}
	if len(fd.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(fd.Entries))
	}
	e := fd.Entries[0]
	if e.Name != "report.pdf" || e.Size != int64(len("%PDF-1.4 fake")) || e.Error != upload.ErrOK {
		t.Errorf("entry = %+v", e)
	}
	got, err := afero.ReadFile(fs, e.TempPath)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", e.TempPath, err)
	}
	if string(got) != "%PDF-1.4 fake" {
		t.Errorf("spooled content = %q", got)
	}
	if _, ok := table["title"]; ok {
		t.Error("plain form values must not appear in the table")
	}
}

func TestParseRequest_ArrayFieldKeepsOrder(t *testing.T) {
	store, _ := newStore(t)
	req := newMultipartUploadRequest(t,
		fileField("docs[]", "a.txt", "aaa"),
		fileField("docs[]", "b.txt", "bb"),
		fileField("docs[]", "c.txt", "c"),
	)

	table := parse(t, store, nil, req)

	fd := table["docs"]
	if !fd.Multiple {
		t.Error("array field should be Multiple")
	}
	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(fd.Entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(fd.Entries), len(want))
	}
	for i, name := range want {
		if fd.Entries[i].Name != name {
			t.Errorf("entry %d = %q, want %q", i, fd.Entries[i].Name, name)
		}
	}
}

func TestParseRequest_PlainFieldTwiceKeepsLast(t *testing.T) {
	store, _ := newStore(t)
	req := newMultipartUploadRequest(t,
		fileField("doc", "first.txt", "1"),
		fileField("doc", "second.txt", "2"),
	)

	table := parse(t, store, nil, req)

	fd := table["doc"]
	if len(fd.Entries) != 1 || fd.Entries[0].Name != "second.txt" {
		t.Fatalf("entries = %+v, want only second.txt", fd.Entries)
	}
}

func TestParseRequest_ErrorCodes(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *upload.Config
		parts []formPart
		field string
		want  upload.ErrorCode
	}{
		{
			name:  "server size limit",
			cfg:   &upload.Config{MaxFileSize: 4},
			parts: []formPart{fileField("f", "big.txt", "more than four")},
			field: "f",
			want:  upload.ErrIniSize,
		},
		{
			name: "form size limit",
			cfg:  &upload.Config{MaxFileSize: 1024},
			parts: []formPart{
				valueField("MAX_FILE_SIZE", "5"),
				fileField("f", "big.txt", "more than five"),
			},
			field: "f",
			want:  upload.ErrFormSize,
		},
		{
			name: "server limit tighter than form limit",
			cfg:  &upload.Config{MaxFileSize: 3},
			parts: []formPart{
				valueField("MAX_FILE_SIZE", "100"),
				fileField("f", "big.txt", "more than three"),
			},
			field: "f",
			want:  upload.ErrIniSize,
		},
		{
			name:  "empty file input",
			parts: []formPart{fileField("f", "", "")},
			field: "f",
			want:  upload.ErrNoFile,
		},
		{
			name:  "blocked extension",
			cfg:   &upload.Config{BlockedExtensions: []string{"EXE", ".bat"}},
			parts: []formPart{fileField("f", "setup.exe", "MZ")},
			field: "f",
			want:  upload.ErrExtension,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newStore(t)
			table := parse(t, store, tt.cfg, newMultipartUploadRequest(t, tt.parts...))

			fd, ok := table[tt.field]
			if !ok || len(fd.Entries) != 1 {
				t.Fatalf("field %q = %+v", tt.field, fd)
			}
			e := fd.Entries[0]
			if e.Error != tt.want {
				t.Errorf("code = %v, want %v", e.Error, tt.want)
			}
			if e.TempPath != "" {
				t.Errorf("failed entry should have no temp path, got %q", e.TempPath)
			}
		})
	}
}

func TestParseRequest_OversizedFileDoesNotAffectOthers(t *testing.T) {
	store, _ := newStore(t)
	req := newMultipartUploadRequest(t,
		fileField("docs[]", "ok.txt", "ok"),
		fileField("docs[]", "big.txt", strings.Repeat("x", 64)),
		fileField("docs[]", "ok2.txt", "ok"),
	)

	table := parse(t, store, &upload.Config{MaxFileSize: 16}, req)

	codes := []upload.ErrorCode{upload.ErrOK, upload.ErrIniSize, upload.ErrOK}
	for i, want := range codes {
		if got := table["docs"].Entries[i].Error; got != want {
			t.Errorf("entry %d code = %v, want %v", i, got, want)
		}
	}
}

func TestParseRequest_TruncatedBodyMarksPartial(t *testing.T) {
	store, _ := newStore(t)
	body, contentType := multipartBody(t, fileField("f", "cut.bin", strings.Repeat("z", 200)))

	// Drop the closing boundary and half of the file.
	cut := body.Bytes()[:body.Len()-150]
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(cut))
	req.Header.Set("Content-Type", contentType)

	table := parse(t, store, nil, req)

	fd := table["f"]
	if len(fd.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(fd.Entries))
	}
	if fd.Entries[0].Error != upload.ErrPartial {
		t.Errorf("code = %v, want %v", fd.Entries[0].Error, upload.ErrPartial)
	}
}

func TestParseRequest_MissingTempDir(t *testing.T) {
	store, fs := newStore(t)
	if err := fs.RemoveAll(store.Dir()); err != nil {
		t.Fatal(err)
	}

	table := parse(t, store, nil, newMultipartUploadRequest(t, fileField("f", "a.txt", "a")))

	if got := table["f"].Entries[0].Error; got != upload.ErrNoTmpDir {
		t.Errorf("code = %v, want %v", got, upload.ErrNoTmpDir)
	}
}

func TestParseRequest_NotMultipart(t *testing.T) {
	store, _ := newStore(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := upload.ParseRequest(req, store, nil)
	if !errors.Is(err, upload.ErrNotMultipart) {
		t.Fatalf("err = %v, want %v", err, upload.ErrNotMultipart)
	}
}

func TestParseRequest_BodyTooLarge(t *testing.T) {
	store, _ := newStore(t)
	req := newMultipartUploadRequest(t, fileField("f", "big.bin", strings.Repeat("b", 4096)))

	_, err := upload.ParseRequest(req, store, &upload.Config{MaxBodySize: 512})
	if !errors.Is(err, upload.ErrTooLarge) {
		t.Fatalf("err = %v, want %v", err, upload.ErrTooLarge)
	}
}
