package upload

import (
	"encoding/base64"
	"encoding/binary"
	"io"
)

// File is one uploaded file taken from a request.
//
// The content type is detected on the server by probing the temp file;
// whatever the client claimed is ignored. Name is the client's original
// filename and must not be used as a filesystem path (see SanitizeFilename).
//
// A File is owned by the request that produced it and is not safe for
// concurrent use.
type File struct {
	name        string
	contentType string
	size        int64
	path        string
	moved       bool

	host    Host
	metrics *Metrics
}

// NewFile builds a File for the upload stored at tempPath.
// Detection failures leave ContentType empty instead of failing.
func NewFile(name string, size int64, tempPath string, host Host) *File {
	f := &File{
		name: name,
		size: size,
		path: tempPath,
		host: host,
	}
	if ct, err := host.DetectContentType(tempPath); err == nil {
		f.contentType = ct
	}
	return f
}

// Name is the original filename on the client machine.
func (f *File) Name() string { return f.name }

// ContentType is the MIME type detected server side, or "" if unknown.
func (f *File) ContentType() string { return f.contentType }

// Size is the byte count the host reported at upload time.
func (f *File) Size() int64 { return f.size }

// Path is the temp path, or the destination once the file was moved.
func (f *File) Path() string { return f.path }

// Moved reports whether Move or SaveAs succeeded.
func (f *File) Moved() bool { return f.moved }

// Move relocates the upload to dst using the host's move-uploaded
// primitive. A file can be moved once; later calls return ErrAlreadyMoved
// without touching the filesystem. On failure the File is unchanged.
func (f *File) Move(dst string) error {
	if f.moved {
		f.metrics.recordMove(ErrAlreadyMoved)
		return ErrAlreadyMoved
	}
	if err := f.host.MoveUploaded(f.path, dst); err != nil {
		f.metrics.recordMove(err)
		return err
	}
	f.path = dst
	f.moved = true
	f.metrics.recordMove(nil)
	return nil
}

// SaveAs is an alias for Move.
func (f *File) SaveAs(filename string) error {
	return f.Move(filename)
}

// WriteTo streams the file content to w and returns the bytes written.
// It implements io.WriterTo.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	rc, err := f.host.Open(f.path)
	if err != nil {
		f.metrics.recordRead("output", err)
		return 0, err
	}
	defer rc.Close()

	n, err := io.Copy(w, rc)
	f.metrics.recordRead("output", err)
	return n, err
}

// Bytes reads the whole file.
func (f *File) Bytes() ([]byte, error) {
	rc, err := f.host.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Text returns the file content as a string. On a read failure the
// string is empty and err says why.
func (f *File) Text() (string, error) {
	b, err := f.Bytes()
	f.metrics.recordRead("text", err)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// String returns the file content, or "" when it cannot be read.
// Use Text to find out why a read failed.
func (f *File) String() string {
	s, _ := f.Text()
	return s
}

// Base64 returns the file content in standard base64 encoding, or "" and
// the read error.
func (f *File) Base64() (string, error) {
	b, err := f.Bytes()
	f.metrics.recordRead("base64", err)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Uint32s decodes the content as big-endian 32-bit words. Trailing bytes
// that do not fill a whole word are dropped, so the result has len/4
// elements. On a read failure the slice is empty.
func (f *File) Uint32s() ([]uint32, error) {
	b, err := f.Bytes()
	f.metrics.recordRead("binary", err)
	if err != nil {
		return []uint32{}, err
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return out, nil
}
