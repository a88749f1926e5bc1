package httpapi

import (
	"path"
	"strings"
)

// mimeByExtension is the spec's MIME inference table for binary reads,
// keyed by final path extension (case-insensitive, no leading dot).
var mimeByExtension = map[string]string{
	"html":  "text/html",
	"css":   "text/css",
	"js":    "application/javascript",
	"mjs":   "application/javascript",
	"json":  "application/json",
	"xml":   "application/xml",
	"txt":   "text/plain",
	"md":    "text/markdown",
	"csv":   "text/csv",
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"gif":   "image/gif",
	"webp":  "image/webp",
	"svg":   "image/svg+xml",
	"ico":   "image/x-icon",
	"avif":  "image/avif",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"eot":   "application/vnd.ms-fontobject",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"webm":  "video/webm",
	"ogg":   "audio/ogg",
	"wav":   "audio/wav",
	"wasm":  "application/wasm",
	"pdf":   "application/pdf",
	"zip":   "application/zip",
	"gz":    "application/gzip",
	"tar":   "application/x-tar",
}

// inferMIME returns the MIME type for a URI path's final extension, or
// application/octet-stream when the extension is unrecognized or absent.
func inferMIME(uriPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(uriPath), "."))
	if mt, ok := mimeByExtension[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
