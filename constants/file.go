package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for CV ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// PDFContentType is the media type accepted for raw uploads.
const PDFContentType = "application/pdf"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without the dot) is ingestible.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
