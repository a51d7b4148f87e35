// Package mimetypes maps file names to content types and content types back to extensions.
//
// Lookups consult a small built-in table first so results do not depend on the host's
// mime.types files, then the standard library registry, then gabriel-vasile/mimetype.
package mimetypes

import (
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// OctetStream is returned when nothing better is known.
	OctetStream = "application/octet-stream"
	// Gzip is forced for .gz and .tgz names.
	Gzip = "application/gzip"
)

// byExtension holds the preferred content type per lower-case extension.
var byExtension = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".go":   "text/x-go",
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".toml": "application/toml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   Gzip,
	".tgz":  Gzip,
	".zst":  "application/zstd",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".heic": "image/heic",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// preferredExtension resolves types that several extensions share.
var preferredExtension = map[string]string{
	"text/plain":         ".txt",
	"text/html":          ".html",
	"text/javascript":    ".js",
	"application/yaml":   ".yaml",
	"image/jpeg":         ".jpg",
	Gzip:                 ".gz",
	"application/x-gzip": ".gz",
}

// TypeByName returns the content type for name, falling back to hint and then to
// OctetStream. Names ending in .gz or .tgz always resolve to application/gzip.
func TypeByName(name, hint string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".tgz") {
		return Gzip
	}

	if ext := filepath.Ext(lower); ext != "" {
		if ct, ok := byExtension[ext]; ok {
			return ct
		}
		if ct := mime.TypeByExtension(ext); ct != "" {
			return Normalize(ct)
		}
	}

	if hint = Normalize(hint); hint != "" {
		return hint
	}
	return OctetStream
}

// ExtensionByType returns the extension (with leading dot) for a content type, or "" when
// the type is unknown.
func ExtensionByType(contentType string) string {
	ct := Normalize(contentType)
	if ct == "" || ct == OctetStream {
		return ""
	}

	if ext, ok := preferredExtension[ct]; ok {
		return ext
	}
	for ext, t := range byExtension {
		if t == ct && preferredExtension[t] == "" {
			return ext
		}
	}
	if m := mimetype.Lookup(ct); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Detect sniffs the content type from the first bytes of r.
func Detect(r io.Reader) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	return Normalize(m.String()), nil
}

// DetectBytes sniffs the content type of a buffer.
func DetectBytes(b []byte) string {
	return Normalize(mimetype.Detect(b).String())
}

// IsText reports whether a content type carries text.
func IsText(contentType string) bool {
	ct := Normalize(contentType)
	switch ct {
	case "application/json", "application/xml", "application/yaml", "application/toml", "image/svg+xml":
		return true
	}
	return strings.HasPrefix(ct, "text/")
}

// Normalize strips parameters and lower-cases a content type.
func Normalize(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
