// Package contenttype names the MIME types formfile cares about.
//
// The set is small on purpose: data transmission and web app formats.
// Use the constants for Content-Type headers or to compare against the
// type detected for an uploaded file:
//
//	if contenttype.Matches(f.ContentType(), contenttype.CSV) {
//	    // ...
//	}
package contenttype

import (
	"mime"
	"strings"
)

const (
	// Binary is an arbitrary binary file.
	Binary = "application/octet-stream"

	// CSS is a Cascading Style Sheet (.css).
	CSS = "text/css"

	// CSV is comma separated values (.csv).
	CSV = "text/csv"

	// Excel2003 is a Microsoft Excel workbook (.xls).
	Excel2003 = "application/vnd.ms-excel"

	// Excel2007 is a Microsoft Excel OpenXML workbook (.xlsx).
	Excel2007 = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// FormData is a multipart request body. Each value is sent as a body
	// part, separated by a user agent defined boundary.
	FormData = "multipart/form-data"

	// HTML is an HTML document (.htm, .html).
	HTML = "text/html"

	// JavaScript (.js, .mjs). The older text/javascript is obsolete.
	JavaScript = "application/javascript"

	// JSON is UTF-8 encoded JSON data.
	JSON = "application/json"

	// JSONLD is JSON for Linked Data.
	JSONLD = "application/ld+json"

	// Spreadsheet is an OpenDocument spreadsheet (.ods).
	Spreadsheet = "application/vnd.oasis.opendocument.spreadsheet"

	// Text is plain text (.txt).
	Text = "text/plain"

	// Unknown is used when the type could not be determined.
	Unknown = "application/octet-stream"

	// URLEncoded is a form body of '&' separated key=value tuples.
	URLEncoded = "application/x-www-form-urlencoded"

	// XHTML (.xhtml).
	XHTML = "application/xhtml+xml"

	// XML not meant to be read by casual users (.xml).
	XML = "application/xml"

	// XMLPublic is XML readable by casual users (.xml).
	XMLPublic = "text/xml"
)

// Matches reports whether detected names the same media type as want.
// Parameters such as charset are ignored, and the comparison is
// case-insensitive. An empty detected type never matches.
func Matches(detected, want string) bool {
	d := mediaType(detected)
	return d != "" && d == mediaType(want)
}

func mediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		// Fall back to the part before any parameters.
		if idx := strings.Index(v, ";"); idx >= 0 {
			v = v[:idx]
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

// known lists the constants in lookup order. Unknown shares its value
// with Binary and is never reported.
var known = []struct{ name, value string }{
	{"Binary", Binary},
	{"CSS", CSS},
	{"CSV", CSV},
	{"Excel2003", Excel2003},
	{"Excel2007", Excel2007},
	{"FormData", FormData},
	{"HTML", HTML},
	{"JavaScript", JavaScript},
	{"JSON", JSON},
	{"JSONLD", JSONLD},
	{"Spreadsheet", Spreadsheet},
	{"Text", Text},
	{"URLEncoded", URLEncoded},
	{"XHTML", XHTML},
	{"XML", XML},
	{"XMLPublic", XMLPublic},
}

// Lookup returns the name of the constant that detected matches,
// e.g. "CSV" for "text/csv; charset=utf-8".
func Lookup(detected string) (string, bool) {
	for _, k := range known {
		if Matches(detected, k.value) {
			return k.name, true
		}
	}
	return "", false
}
