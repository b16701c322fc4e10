package upload

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename turns a client supplied name into a single safe path
// element. Separators become '_', NUL bytes are dropped and the result is
// capped at 255 bytes. An empty result becomes "unnamed".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.Trim(name, " .")

	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) > 32 {
			ext = ""
		}
		base := name[:len(name)-len(ext)]
		name = strings.ToValidUTF8(base[:255-len(ext)], "") + ext
	}

	if name == "" {
		name = "unnamed"
	}
	return name
}
