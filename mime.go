package pagehaven

import "strings"

// DefaultContentType is served when an extension is unknown or missing.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	"html":        "text/html",
	"htm":         "text/html",
	"css":         "text/css",
	"js":          "application/javascript",
	"mjs":         "application/javascript",
	"json":        "application/json",
	"map":         "application/json",
	"webmanifest": "application/manifest+json",
	"xml":         "application/xml",
	"txt":         "text/plain",
	"md":          "text/markdown",
	"csv":         "text/csv",
	"png":         "image/png",
	"jpg":         "image/jpeg",
	"jpeg":        "image/jpeg",
	"gif":         "image/gif",
	"webp":        "image/webp",
	"avif":        "image/avif",
	"svg":         "image/svg+xml",
	"ico":         "image/x-icon",
	"woff":        "font/woff",
	"woff2":       "font/woff2",
	"ttf":         "font/ttf",
	"otf":         "font/otf",
	"eot":         "application/vnd.ms-fontobject",
	"pdf":         "application/pdf",
	"zip":         "application/zip",
	"wasm":        "application/wasm",
	"mp4":         "video/mp4",
	"webm":        "video/webm",
	"mp3":         "audio/mpeg",
	"wav":         "audio/wav",
	"ogg":         "audio/ogg",
}

// ContentType infers a MIME type from the extension of p, case-insensitively.
func ContentType(p string) string {
	i := strings.LastIndexByte(p, '.')
	if i < 0 {
		return DefaultContentType
	}

	if ct, ok := contentTypes[strings.ToLower(p[i+1:])]; ok {
		return ct
	}

	return DefaultContentType
}
