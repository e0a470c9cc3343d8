package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType maps a file path to a MIME type by extension.
// Unknown extensions fall back to application/octet-stream.
func DetectContentType(path string) string {
	if isTextLike(path) {
		return "text/plain; charset=utf-8"
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(path)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// config-ish formats that browsers should render as text, not download
func isTextLike(path string) bool {
	return strings.HasSuffix(path, ".yaml") ||
		strings.HasSuffix(path, ".yml") ||
		strings.HasSuffix(path, ".toml") ||
		strings.HasSuffix(path, ".md") ||
		strings.HasSuffix(path, ".log")
}
