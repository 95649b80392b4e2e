// Package validate checks and sanitizes proposed filenames before any
// storage call. Both backends are key/path addressed, so the same
// sanitization applies regardless of where the file ends up.
package validate

import (
	"strings"

	"github.com/supriyameruva/filegate/internal/apperr"
)

// DefaultAllowedExtensions is the extension allow-list used when none is
// configured.
func DefaultAllowedExtensions() map[string]bool {
	return map[string]bool{
		"png":  true,
		"jpg":  true,
		"jpeg": true,
		"gif":  true,
		"txt":  true,
		"pdf":  true,
	}
}

// FileObject is a validated, storage-safe filename.
type FileObject struct {
	// Name is the sanitized filename with no path separators or
	// traversal segments. Case is preserved.
	Name string
	// Extension is the lower-cased substring after the last dot.
	Extension string
}

// FileName validates rawName against the allow-list and returns a sanitized
// FileObject. It is pure and performs no I/O.
func FileName(rawName string, allowed map[string]bool) (FileObject, error) {
	if strings.TrimSpace(rawName) == "" {
		return FileObject{}, apperr.New(apperr.KindNoFile, "no file selected for upload")
	}

	name := sanitize(rawName)
	if name == "" || name == "." {
		return FileObject{}, apperr.New(apperr.KindBadName, "filename is not valid")
	}

	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return FileObject{}, apperr.New(apperr.KindBadName, "filename must have an extension")
	}

	ext := strings.ToLower(name[dot+1:])
	if !allowed[ext] {
		return FileObject{}, apperr.New(apperr.KindBadExtension, "file type not allowed")
	}

	return FileObject{Name: name, Extension: ext}, nil
}

// sanitize strips directory components and traversal segments so the result
// is safe to use as a flat blob key or a filename inside the share.
func sanitize(raw string) string {
	s := strings.ReplaceAll(raw, "\\", "/")

	// Keep only the final path element.
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}

	// Collapse traversal segments and control characters.
	s = strings.ReplaceAll(s, "..", "")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)

	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".")
	return s
}
