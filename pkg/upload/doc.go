// Package upload turns the files of a multipart request into File values.
//
// A request is read once into a Table: one Entry per submitted file, each
// with its original name, size, temp path and an ErrorCode. An Extractor
// then hands out Files for a form field:
//
//	f, err := x.GetSingle(ctx, "avatar")   // first file only
//	fs, err := x.GetAll(ctx, "attachments") // every file, in request order
//
// Both fail with ErrMissingField when nothing was sent under the name, and
// with an *Error carrying the code when the host recorded a problem for
// the file (too large, partial, blocked extension ...).
//
// # Files
//
// A File detects its content type from the bytes on disk; the client's
// Content-Type header is never trusted. Files live in a TempStore until
// moved:
//
//	if err := f.Move(filepath.Join(dest, upload.SanitizeFilename(f.Name()))); err != nil {
//	    return err
//	}
//
// A file can be moved once. Only paths the TempStore spooled can be moved,
// so a forged temp path cannot be used to relocate arbitrary files.
//
// The content helpers (Text, Base64, Uint32s) return an empty value along
// with the error when the file cannot be read. String drops the error.
//
// # Request Scope
//
// Middleware parses the request, stores the Extractor in the context and
// removes every unmoved temp file once the handler returns:
//
//	r.Use(upload.Middleware(store, upload.DefaultConfig()))
//
// # Limitations
//
// Only flat field names are understood: "file" and "file[]". Nested names
// like "doc[pages][]" are stored verbatim without the trailing "[]" and are
// not grouped.
package upload
