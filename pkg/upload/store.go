package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var errNoTempDir = errors.New("upload: missing temp directory")

// TempStore holds request uploads on a filesystem until they are moved
// or released. It remembers which paths it created, so only genuine
// uploads can be moved out of it.
type TempStore struct {
	fs  afero.Fs
	dir string

	mu      sync.Mutex
	spooled map[string]struct{}
}

// NewTempStore creates a TempStore rooted at dir on fs.
//
// Parameters:
//   - fs: Filesystem to use (afero.NewOsFs() in production)
//   - dir: Directory to store temp files
func NewTempStore(fs afero.Fs, dir string) (*TempStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &TempStore{
		fs:      fs,
		dir:     filepath.Clean(dir),
		spooled: make(map[string]struct{}),
	}, nil
}

// Dir returns the temp directory.
func (s *TempStore) Dir() string { return s.dir }

// Scope returns a TempStore sharing the filesystem and directory of s
// but tracking its own uploads. Use one scope per request so Release
// only touches that request's files.
func (s *TempStore) Scope() *TempStore {
	return &TempStore{
		fs:      s.fs,
		dir:     s.dir,
		spooled: make(map[string]struct{}),
	}
}

// Spool copies r into a new temp file and returns its path and size.
// With limit > 0, more than limit bytes fail with ErrTooLarge and the
// partial file is removed.
func (s *TempStore) Spool(r io.Reader, limit int64) (string, int64, error) {
	if _, err := s.fs.Stat(s.dir); err != nil {
		return "", 0, fmt.Errorf("%w: %v", errNoTempDir, err)
	}

	path := filepath.Join(s.dir, "upload-"+uuid.NewString())
	f, err := s.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", 0, err
	}

	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1) // +1 to detect overflow
	}

	written, err := io.Copy(f, reader)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(path)
		return "", written, err
	}
	if limit > 0 && written > limit {
		_ = s.fs.Remove(path)
		return "", written, ErrTooLarge
	}

	s.mu.Lock()
	s.spooled[path] = struct{}{}
	s.mu.Unlock()

	return path, written, nil
}

// IsUploaded reports whether path is an unmoved file spooled by s.
func (s *TempStore) IsUploaded(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.spooled[filepath.Clean(path)]
	return ok
}

// MoveUploaded moves a spooled file to dst. Paths s did not create fail
// with ErrNotUploaded and dst equal to src fails with ErrSamePath. Moves
// across devices fall back to copy and remove.
func (s *TempStore) MoveUploaded(src, dst string) error {
	src = filepath.Clean(src)
	if !s.IsUploaded(src) {
		return ErrNotUploaded
	}
	if filepath.Clean(dst) == src {
		return ErrSamePath
	}

	if err := s.fs.Rename(src, dst); err != nil {
		if !isCrossDevice(err) {
			return err
		}
		if err := s.copyFile(src, dst); err != nil {
			return err
		}
		_ = s.fs.Remove(src)
	}

	s.mu.Lock()
	delete(s.spooled, src)
	s.mu.Unlock()
	return nil
}

func (s *TempStore) copyFile(src, dst string) (err error) {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = s.fs.Remove(dst)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// Open opens path for reading.
func (s *TempStore) Open(path string) (io.ReadCloser, error) {
	return s.fs.Open(path)
}

// DetectContentType sniffs the content at path.
func (s *TempStore) DetectContentType(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return DetectContentType(f)
}

// DetectContentType sniffs the media type of the bytes read from r, for
// example "text/plain; charset=utf-8". It is what File.ContentType reports
// for uploads.
func DetectContentType(r io.Reader) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	return mt.String(), nil
}

// Release removes every spooled file that was not moved. Call it once the
// request is done; Middleware does this for you.
func (s *TempStore) Release() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.spooled))
	for p := range s.spooled {
		paths = append(paths, p)
	}
	s.spooled = make(map[string]struct{})
	s.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep removes files in the temp directory older than maxAge. It catches
// files left behind by a crashed process. Call it periodically, with a
// maxAge longer than any request can take: files spooled through other
// scopes are not visible to s.
func (s *TempStore) Sweep(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return err
	}

	for _, info := range entries {
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, info.Name())
		if s.IsUploaded(path) {
			continue
		}
		_ = s.fs.Remove(path)
	}
	return nil
}

func isCrossDevice(err error) bool {
	var le *os.LinkError
	if errors.As(err, &le) {
		err = le.Err
	}
	return errors.Is(err, syscall.EXDEV)
}
