package upload

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vango-dev/formfile/pkg/upload"

// Host provides the filesystem primitives a File delegates to.
// TempStore is the implementation used for real requests.
type Host interface {
	// MoveUploaded moves src to dst. It must refuse paths that did not
	// come from an upload.
	MoveUploaded(src, dst string) error

	// Open opens the file at path for reading.
	Open(path string) (io.ReadCloser, error)

	// DetectContentType probes the content at path and returns its MIME type.
	DetectContentType(path string) (string, error)
}

// Entry is the raw record of one file submitted in a request.
type Entry struct {
	// Name is the client supplied filename.
	Name string

	// Size is the number of bytes received.
	Size int64

	// TempPath is where the host stored the bytes. Empty when Error is set.
	TempPath string

	// Error is the upload status; ErrOK on success.
	Error ErrorCode
}

// Field holds the entries submitted under one form name, in request order.
type Field struct {
	Entries []Entry

	// Multiple is true when the client used an array-style name ("docs[]").
	Multiple bool
}

// Table maps form field names to their upload entries. Array-style
// names are stored without the trailing "[]". Nested names such as
// "a[b][]" are not grouped and are stored as "a[b]".
type Table map[string]Field

// Extractor turns the entries of a Table into Files.
type Extractor struct {
	table   Table
	host    Host
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. Default: slog.Default() with component=upload.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) {
		x.logger = logger
	}
}

// WithMetrics records extraction and file operations on m.
func WithMetrics(m *Metrics) Option {
	return func(x *Extractor) {
		x.metrics = m
	}
}

// WithTracer sets the tracer. Default: the global provider's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(x *Extractor) {
		x.tracer = tracer
	}
}

// NewExtractor returns an Extractor reading from table. Files it builds
// delegate to host.
func NewExtractor(table Table, host Host, opts ...Option) *Extractor {
	x := &Extractor{
		table: table,
		host:  host,
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = slog.Default().With("component", "upload")
	}
	if x.tracer == nil {
		x.tracer = otel.Tracer(tracerName)
	}
	return x
}

// Fields returns the form names that have upload entries.
func (x *Extractor) Fields() []string {
	names := make([]string, 0, len(x.table))
	for name := range x.table {
		names = append(names, name)
	}
	return names
}

// GetSingle returns the file uploaded with field. If the field holds
// several files only the first one is used.
//
// It fails with ErrMissingField when nothing was uploaded under field,
// and with an *Error when the entry carries an upload error code.
func (x *Extractor) GetSingle(ctx context.Context, field string) (*File, error) {
	_, span := x.tracer.Start(ctx, "upload.GetSingle",
		trace.WithAttributes(attribute.String("upload.field", field)))
	defer span.End()

	entries, err := x.lookup(field)
	if err != nil {
		return nil, x.fail(span, field, err)
	}

	e := entries[0]
	if e.Error != ErrOK {
		x.metrics.recordUploadError(e.Error)
		return nil, x.fail(span, field, NewError(e.Error))
	}

	f := x.newFile(e)
	span.SetAttributes(attribute.Int("upload.files", 1))
	x.metrics.recordExtracted("single", 1)
	return f, nil
}

// GetAll returns every file uploaded with field, in request order. A
// single file comes back as a one-element slice.
//
// The first entry with an upload error aborts the call; no files are
// returned in that case.
func (x *Extractor) GetAll(ctx context.Context, field string) ([]*File, error) {
	_, span := x.tracer.Start(ctx, "upload.GetAll",
		trace.WithAttributes(attribute.String("upload.field", field)))
	defer span.End()

	entries, err := x.lookup(field)
	if err != nil {
		return nil, x.fail(span, field, err)
	}

	files := make([]*File, 0, len(entries))
	for _, e := range entries {
		if e.Error != ErrOK {
			x.metrics.recordUploadError(e.Error)
			return nil, x.fail(span, field, NewError(e.Error))
		}
		files = append(files, x.newFile(e))
	}

	span.SetAttributes(attribute.Int("upload.files", len(files)))
	x.metrics.recordExtracted("all", len(files))
	return files, nil
}

// lookup returns the entries to consider for field. For a non-array field
// only the last submitted entry counts.
func (x *Extractor) lookup(field string) ([]Entry, error) {
	fd, ok := x.table[field]
	if !ok || len(fd.Entries) == 0 {
		return nil, ErrMissingField
	}
	if !fd.Multiple {
		return fd.Entries[len(fd.Entries)-1:], nil
	}
	return fd.Entries, nil
}

func (x *Extractor) newFile(e Entry) *File {
	f := NewFile(e.Name, e.Size, e.TempPath, x.host)
	f.metrics = x.metrics
	return f
}

func (x *Extractor) fail(span trace.Span, field string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	x.logger.Debug("upload rejected", "field", field, "error", err)
	return &FieldError{Field: field, Err: err}
}

type extractorKey struct{}

// WithExtractor returns a copy of ctx carrying x.
func WithExtractor(ctx context.Context, x *Extractor) context.Context {
	return context.WithValue(ctx, extractorKey{}, x)
}

// FromContext returns the Extractor stored by Middleware, or nil.
func FromContext(ctx context.Context) *Extractor {
	x, _ := ctx.Value(extractorKey{}).(*Extractor)
	return x
}
