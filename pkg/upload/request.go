package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// formSizeField is the hidden form field browsers send to announce a
// per-file limit. It must precede the file inputs it applies to.
const formSizeField = "MAX_FILE_SIZE"

// Config holds limits applied while reading an upload request.
type Config struct {
	// MaxFileSize is the largest accepted file, in bytes. Larger files
	// get ErrIniSize. 0 means no limit.
	// Default: 10MB.
	MaxFileSize int64

	// MaxBodySize caps the whole request body. Exceeding it fails the
	// request with ErrTooLarge. 0 means no limit.
	// Default: 64MB.
	MaxBodySize int64

	// BlockedExtensions are filename extensions (".exe") that are
	// refused with ErrExtension. Matching is case-insensitive.
	BlockedExtensions []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize: 10 * 1024 * 1024, // 10MB
		MaxBodySize: 64 * 1024 * 1024, // 64MB
	}
}

// ParseRequest reads the multipart body of r, spools every file part into
// store and returns the resulting upload table.
//
// Problems with a single file are recorded on its Entry rather than
// returned, so callers see them through GetSingle and GetAll. A body that
// ends in the middle of a file marks that file ErrPartial and stops
// reading. Only request-level failures are returned as errors:
// ErrNotMultipart, ErrTooLarge, or a malformed body.
func ParseRequest(r *http.Request, store *TempStore, cfg *Config) (Table, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, cfg.MaxBodySize)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}

	p := &requestParser{
		store:   store,
		cfg:     cfg,
		blocked: blockedSet(cfg.BlockedExtensions),
		table:   make(Table),
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isMaxBytes(err) {
				return nil, ErrTooLarge
			}
			return nil, fmt.Errorf("upload: bad multipart body: %w", err)
		}

		stop, err := p.handle(part)
		part.Close()
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}

	return p.table, nil
}

type requestParser struct {
	store     *TempStore
	cfg       *Config
	blocked   map[string]bool
	formLimit int64
	table     Table
}

// handle processes one part. stop is true when the body can no longer be read.
func (p *requestParser) handle(part *multipart.Part) (stop bool, err error) {
	name := part.FormName()
	if name == "" {
		return false, nil
	}

	if !isFilePart(part) {
		if name == formSizeField {
			p.readFormLimit(part)
		}
		return false, nil
	}

	entry := Entry{Name: part.FileName()}
	switch {
	case entry.Name == "":
		entry.Error = ErrNoFile
	case p.blocked[strings.ToLower(filepath.Ext(entry.Name))]:
		entry.Error = ErrExtension
	default:
		limit, formBound := p.limit()
		path, n, serr := p.store.Spool(part, limit)
		switch {
		case serr == nil:
			entry.Size = n
			entry.TempPath = path
		case isMaxBytes(serr):
			return true, ErrTooLarge
		case errors.Is(serr, ErrTooLarge):
			entry.Error = ErrIniSize
			if formBound {
				entry.Error = ErrFormSize
			}
		case errors.Is(serr, errNoTempDir):
			entry.Error = ErrNoTmpDir
		case errors.Is(serr, io.ErrUnexpectedEOF):
			entry.Error = ErrPartial
			stop = true
		default:
			entry.Error = ErrCantWrite
		}
	}

	p.add(name, entry)
	return stop, nil
}

// limit returns the tighter of the configured and the form announced
// limits, and whether the form limit is the one that applies.
func (p *requestParser) limit() (int64, bool) {
	server := p.cfg.MaxFileSize
	form := p.formLimit
	switch {
	case form > 0 && (server <= 0 || form < server):
		return form, true
	default:
		return server, false
	}
}

func (p *requestParser) readFormLimit(part *multipart.Part) {
	raw, err := io.ReadAll(io.LimitReader(part, 32))
	if err != nil {
		return
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || v < 0 {
		return
	}
	p.formLimit = v
}

func (p *requestParser) add(name string, e Entry) {
	key, multiple := strings.CutSuffix(name, "[]")
	if !multiple {
		// A plain name submitted twice keeps the last file.
		p.table[key] = Field{Entries: []Entry{e}}
		return
	}
	fd := p.table[key]
	fd.Multiple = true
	fd.Entries = append(fd.Entries, e)
	p.table[key] = fd
}

// isFilePart reports whether the part came from a file input. An empty
// file input still sends filename="".
func isFilePart(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func blockedSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

func isMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
