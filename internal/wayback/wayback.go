// Package wayback parses and renders Wayback Machine capture URLs.
package wayback

import (
	"fmt"
	"regexp"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/timestamp"
)

var captureURL = regexp.MustCompile(`^https?://web\.archive\.org/web/(?P<timestamp>\d{14})(?:id_)?/(?P<url>.+)$`)

// Capture identifies one archived copy of a URL.
type Capture struct {
	URL       string
	Timestamp timestamp.Timestamp
}

// CaptureInfo pairs a capture with the digest the index reports for it.
type CaptureInfo struct {
	Capture
	ExpectedDigest digest.Digest
}

// URLError reports a URL that is not a Wayback Machine capture URL.
type URLError struct {
	URL string
	Err error // set when the timestamp part is malformed
}

func (e *URLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid capture URL %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("invalid capture URL %q", e.URL)
}

func (e *URLError) Unwrap() error {
	return e.Err
}

// ParseURL splits a web.archive.org capture URL, with or without the id_
// modifier, into the original URL and timestamp.
func ParseURL(s string) (Capture, error) {
	m := captureURL.FindStringSubmatch(s)
	if m == nil {
		return Capture{}, &URLError{URL: s}
	}
	ts, err := timestamp.Parse(m[captureURL.SubexpIndex("timestamp")])
	if err != nil {
		return Capture{}, &URLError{URL: s, Err: err}
	}
	return Capture{URL: m[captureURL.SubexpIndex("url")], Timestamp: ts}, nil
}

// WaybackURL renders the capture URL. original selects the id_ form, which
// serves the archived bytes without Wayback rewriting.
func (c Capture) WaybackURL(https, original bool) string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	modifier := ""
	if original {
		modifier = "id_"
	}
	return fmt.Sprintf("%s://web.archive.org/web/%s%s/%s", scheme, c.Timestamp, modifier, c.URL)
}

// Compare orders captures by URL, then timestamp.
func (c Capture) Compare(other Capture) int {
	switch {
	case c.URL < other.URL:
		return -1
	case c.URL > other.URL:
		return 1
	}
	return c.Timestamp.Compare(other.Timestamp)
}
