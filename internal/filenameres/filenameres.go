// Package filenameres infers a filename extension for a declared stem that
// lacks one, following the five-step precedence pinned in spec §4.3. It is
// only consulted when a manifest-declared file_name has no extension.
package filenameres

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// multiPartExtensions are suffixes that span two dot-segments and must be
// matched before the generic 1-8 char single-segment rule.
var multiPartExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz"}

// contentTypeExt maps a HEAD response Content-Type to an extension.
var contentTypeExt = map[string]string{
	"application/java-archive":     ".jar",
	"application/zip":              ".zip",
	"application/x-zip-compressed": ".zip",
	"image/png":                    ".png",
	"image/gif":                    ".gif",
	"image/jpeg":                   ".jpg",
	"application/pdf":              ".pdf",
	"application/json":             ".json",
	"text/plain":                   ".txt",
}

// magicSignatures maps leading byte signatures to an extension, checked in
// order; no signature is a prefix of another.
var magicSignatures = []struct {
	sig string
	ext string
}{
	{"PK\x03\x04", ".jar"}, // also matches .zip; mod artifacts default to .jar
	{"\x89PNG", ".png"},
	{"GIF8", ".gif"},
	{"\xFF\xD8\xFF", ".jpg"},
	{"%PDF", ".pdf"},
}

const defaultExtension = ".jar"

// HasExtension reports whether the step-1 rule is already satisfied: name
// ends in a known multi-part extension, or a 1-8 char alphanumeric
// extension.
func HasExtension(name string) bool {
	for _, ext := range multiPartExtensions {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return true
		}
	}
	ext := path.Ext(name)
	if ext == "" {
		return false
	}
	stripped := strings.TrimPrefix(ext, ".")
	if len(stripped) < 1 || len(stripped) > 8 {
		return false
	}
	for _, r := range stripped {
		if !isAlphanumeric(r) {
			return false
		}
	}
	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// extFromURL applies step 2: the URL's last path segment extension, after
// stripping query and fragment.
func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segment := path.Base(u.Path)
	decoded, err := url.PathUnescape(segment)
	if err == nil {
		segment = decoded
	}
	if HasExtension(segment) {
		return extractExtension(segment)
	}
	return ""
}

func extractExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range multiPartExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[len(name)-len(ext):]
		}
	}
	return path.Ext(name)
}

// extFromContentType applies step 3: an optional HEAD probe's Content-Type.
func extFromContentType(ctx context.Context, rawURL string, timeout time.Duration) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ""
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))
	return contentTypeExt[ct]
}

// extFromMagicBytes applies step 4: leading magic bytes of a slice holding
// the artifact's first bytes (e.g. the start of a streamed download body).
func extFromMagicBytes(head []byte) string {
	for _, m := range magicSignatures {
		if len(head) >= len(m.sig) && string(head[:len(m.sig)]) == m.sig {
			return m.ext
		}
	}
	return ""
}

// Resolve derives a final filename for stem, applying the §4.3 precedence
// when stem has no extension already. head, if non-nil, is the first bytes
// of the downloaded/probed content for the magic-byte step; it may be nil if
// unavailable, in which case that step is skipped.
func Resolve(ctx context.Context, stem, downloadURL string, head []byte, headProbeTimeout time.Duration) string {
	if HasExtension(stem) {
		return stem
	}

	if ext := extFromURL(downloadURL); ext != "" {
		return stem + ext
	}

	if downloadURL != "" {
		if ext := extFromContentType(ctx, downloadURL, headProbeTimeout); ext != "" {
			return stem + ext
		}
	}

	if ext := extFromMagicBytes(head); ext != "" {
		return stem + ext
	}

	return stem + defaultExtension
}

// Sanitize replaces any character outside [A-Za-z0-9_.-] with underscore,
// used to turn an untrusted display name into a safe filename stem (spec
// §4.4 step 1 "sanitize display_name").
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isAlphanumeric(r) || r == '_' || r == '.' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
