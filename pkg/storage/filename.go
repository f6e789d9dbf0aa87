package storage

import (
	"regexp"
	"strings"
)

var (
	// Disallowed characters are removed together with any whitespace touching them.
	disallowedRun = regexp.MustCompile(`\s*[^A-Za-z0-9\-_\s]+\s*`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	separatorRun  = regexp.MustCompile(`([_-])[_-]+`)
	extensionChar = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// SanitizeFilename makes name safe for use as an object key segment.
// Whitespace becomes "_", characters outside [A-Za-z0-9-_] are stripped,
// repeated separators collapse and the extension is kept:
//
//	SanitizeFilename("My Report (Final)!!.pdf") == "My_ReportFinal.pdf"
func SanitizeFilename(name string) string {
	base, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		base, ext = name[:i], extensionChar.ReplaceAllString(name[i+1:], "")
	}

	base = disallowedRun.ReplaceAllString(base, "")
	base = whitespaceRun.ReplaceAllString(strings.TrimSpace(base), "_")
	base = separatorRun.ReplaceAllString(base, "$1")
	base = strings.Trim(base, "_-")
	if base == "" {
		base = "file"
	}

	if ext == "" {
		return base
	}
	return base + "." + ext
}
