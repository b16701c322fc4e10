package upload

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingField is returned when no upload entry exists for a form field.
var ErrMissingField = errors.New("upload: no file was uploaded with this field name")

// ErrAlreadyMoved is returned by Move and SaveAs once a file has been relocated.
var ErrAlreadyMoved = errors.New("upload: file already moved")

// ErrNotUploaded is returned when asked to move a path that was not spooled
// from an upload.
var ErrNotUploaded = errors.New("upload: path is not an uploaded file")

// ErrSamePath is returned when asked to move an upload onto its own temp path.
var ErrSamePath = errors.New("upload: destination is the temp path")

// ErrTooLarge is returned when a body or part exceeds its size limit.
var ErrTooLarge = errors.New("upload: file too large")

// ErrNotMultipart is returned when a request body is not multipart/form-data.
var ErrNotMultipart = errors.New("upload: request is not multipart")

// ErrUpload matches any *Error with errors.Is.
var ErrUpload = errors.New("upload: upload failed")

// ErrorCode is the status the host recorded for a single upload entry.
// Values are compatible with PHP's UPLOAD_ERR_* constants.
type ErrorCode int

const (
	ErrOK        ErrorCode = 0
	ErrIniSize   ErrorCode = 1
	ErrFormSize  ErrorCode = 2
	ErrPartial   ErrorCode = 3
	ErrNoFile    ErrorCode = 4
	ErrNoTmpDir  ErrorCode = 6
	ErrCantWrite ErrorCode = 7
	ErrExtension ErrorCode = 8
)

// codeInfo is the registered name and message for a code.
type codeInfo struct {
	Name    string
	Message string
	Status  int
}

var codeTable = map[ErrorCode]codeInfo{
	ErrOK: {
		Name:    "ok",
		Message: "There is no error, the file uploaded with success",
		Status:  http.StatusOK,
	},
	ErrIniSize: {
		Name:    "ini_size",
		Message: "The uploaded file exceeds the upload_max_filesize directive in php.ini",
		Status:  http.StatusRequestEntityTooLarge,
	},
	ErrFormSize: {
		Name:    "form_size",
		Message: "The uploaded file exceeds the MAX_FILE_SIZE directive that was specified in the HTML form",
		Status:  http.StatusRequestEntityTooLarge,
	},
	ErrPartial: {
		Name:    "partial",
		Message: "The uploaded file was only partially uploaded",
		Status:  http.StatusBadRequest,
	},
	ErrNoFile: {
		Name:    "no_file",
		Message: "No file was uploaded",
		Status:  http.StatusBadRequest,
	},
	ErrNoTmpDir: {
		Name:    "no_tmp_dir",
		Message: "Missing a temporary folder",
		Status:  http.StatusInternalServerError,
	},
	ErrCantWrite: {
		Name:    "cant_write",
		Message: "Failed to write file to disk",
		Status:  http.StatusInternalServerError,
	},
	ErrExtension: {
		Name:    "extension",
		Message: "File upload stopped by extension",
		Status:  http.StatusUnsupportedMediaType,
	},
}

const unknownMessage = "Unknown upload error"

// String returns the symbolic name of the code, or "unknown".
func (c ErrorCode) String() string {
	if info, ok := codeTable[c]; ok {
		return info.Name
	}
	return "unknown"
}

// ErrorMessage returns the human readable message for code.
// Codes outside the table map to "Unknown upload error".
func ErrorMessage(code ErrorCode) string {
	if code == ErrOK {
		// OK is not an error; callers should not reach this.
		return unknownMessage
	}
	if info, ok := codeTable[code]; ok {
		return info.Message
	}
	return unknownMessage
}

// StatusCode returns the HTTP status a handler should answer with for code.
func StatusCode(code ErrorCode) int {
	if info, ok := codeTable[code]; ok && code != ErrOK {
		return info.Status
	}
	return http.StatusInternalServerError
}

// Error reports a non-success upload status for an entry.
type Error struct {
	// Code is the raw status recorded by the host.
	Code ErrorCode

	// Message is the resolved description of Code.
	Message string
}

// NewError returns an *Error carrying code and its message.
func NewError(code ErrorCode) *Error {
	return &Error{Code: code, Message: ErrorMessage(code)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "upload: " + e.Message
}

// Is makes errors.Is(err, ErrUpload) true for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrUpload
}

// CodeOf extracts the upload code from err, if err wraps an *Error.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return ErrOK, false
}

// FieldError ties a failure to the form field it came from.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s (field %q)", e.Err.Error(), e.Field)
}

func (e *FieldError) Unwrap() error { return e.Err }
