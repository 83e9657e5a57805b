package engine

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"

	"github.com/fixitrock/rockdl/internal/utils"
)

// DefaultFilename is used when neither the caller, the server nor the URL
// yield a usable name.
const DefaultFilename = "download.bin"

// DetermineFilename picks the file name for a download. The caller's hint
// wins, then Content-Disposition, then the last URL path segment.
func DetermineFilename(hint, rawurl string, header http.Header) string {
	if name := utils.SanitizeFilename(hint); name != "" {
		return name
	}

	if header != nil {
		if _, name, _ := httpheader.ContentDisposition(header); name != "" {
			if clean := utils.SanitizeFilename(name); clean != "" {
				return clean
			}
		}
	}

	if u, err := url.Parse(rawurl); err == nil {
		base := path.Base(u.Path)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		if base != "/" && base != "." {
			if clean := utils.SanitizeFilename(base); clean != "" {
				return clean
			}
		}
	}

	return DefaultFilename
}

// SniffExtension returns ".ext" for the file's magic bytes, or "" when the
// type is unknown.
func SniffExtension(filePath string) string {
	f, err := os.Open(filePath)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 262)
	n, _ := f.Read(head)
	if n == 0 {
		return ""
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown || kind.Extension == "" {
		return ""
	}
	return "." + kind.Extension
}

// WithSniffedExtension appends a sniffed extension to name when it has none.
func WithSniffedExtension(name, contentPath string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	ext := SniffExtension(contentPath)
	if ext == "" {
		return name
	}
	return strings.TrimSuffix(name, ".") + ext
}
