package cdx

import "strings"

// MimeType is the mimetype column. TextHTML and ApplicationJSON are the
// recognized values; anything else is carried verbatim.
type MimeType string

const (
	TextHTML        MimeType = "text/html"
	ApplicationJSON MimeType = "application/json"
)

// MimeKind is the closed classification of a MimeType.
type MimeKind int

const (
	MimeTextHTML MimeKind = iota
	MimeApplicationJSON
	MimeOther
)

// Kind classifies m.
func (m MimeType) Kind() MimeKind {
	switch m {
	case TextHTML:
		return MimeTextHTML
	case ApplicationJSON:
		return MimeApplicationJSON
	default:
		return MimeOther
	}
}

// String returns the column text.
func (m MimeType) String() string {
	return string(m)
}

// Compare orders recognized types first, then other types by text.
func (m MimeType) Compare(other MimeType) int {
	if a, b := m.Kind(), other.Kind(); a != b {
		if a < b {
			return -1
		}
		return 1
	}
	return strings.Compare(string(m), string(other))
}
