package data

import (
	"path/filepath"
	"strings"
)

const ContentTypeStream = "application/octet-stream"

// extensionToMIME maps file extensions to MIME types
var extensionToMIME = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

// ContentTypeOf guesses the MIME type of key from its extension.
func ContentTypeOf(key string) string {
	ext := strings.ToLower(filepath.Ext(key))

	if mimeType, exists := extensionToMIME[ext]; exists {
		return mimeType
	}

	return ContentTypeStream
}
