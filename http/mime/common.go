package mime

import (
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

type MIME = string

const (
	OctetStream MIME = "application/octet-stream"
	Plain       MIME = "text/plain"
	HTML        MIME = "text/html"
	JSON        MIME = "application/json"
)

// WithCharset renders the Content-Type value for text MIMEs.
func WithCharset(mime MIME) string {
	return mime + "; charset=utf-8"
}

// Complies returns whether a Content-Type value matches the MIME, ignoring parameters.
// An empty value is considered compatible with any MIME.
func Complies(mime MIME, with string) bool {
	with, _, _ = strings.Cut(with, ";")
	with = strings.TrimSpace(with)
	return len(with) == 0 || strcomp.EqualFold(with, mime)
}
