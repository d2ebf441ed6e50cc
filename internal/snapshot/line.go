package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/timestamp"
)

// DefaultClosingWhitespace is the trailer assumed when a record stores none.
const DefaultClosingWhitespace = "\r\r\n"

// Line is one snapshot record.
type Line struct {
	// Digest is the SHA-1 of Content followed by the closing whitespace.
	Digest digest.Sha1

	// ExpectedDigest is the digest the index reported, when it differed.
	ExpectedDigest *digest.Sha1

	// ClosingWhitespace is the trailing CR/LF run removed from the captured
	// document. Nil means the default trailer; an empty non-nil slice means
	// the document had no trailing whitespace.
	ClosingWhitespace []byte

	Timestamp *timestamp.Timestamp
	URL       *string

	// Content is the captured document without its closing whitespace.
	Content []byte
}

var (
	// ErrMultilineContent is returned when content holds a line feed and
	// cannot be stored on one line.
	ErrMultilineContent = errors.New("content contains a line feed")

	// ErrInvalidURL is returned for a URL holding a quote or line feed.
	ErrInvalidURL = errors.New("url contains a quote or line feed")

	// ErrInvalidClosingWhitespace is returned for closing whitespace holding
	// anything other than CR and LF.
	ErrInvalidClosingWhitespace = errors.New("closing whitespace contains a byte other than CR or LF")
)

// New builds a record for a freshly imported document. The maximal trailing
// CR/LF run is split off raw; it is recorded explicitly unless it equals the
// default trailer and follows at least one content byte.
func New(d digest.Sha1, raw []byte) Line {
	end := len(raw)
	for end > 0 && (raw[end-1] == '\r' || raw[end-1] == '\n') {
		end--
	}
	l := Line{Digest: d, Content: raw[:end:end]}
	if run := raw[end:]; end == 0 || string(run) != DefaultClosingWhitespace {
		l.ClosingWhitespace = append([]byte{}, run...)
	}
	return l
}

// Trailer returns the bytes hashed after Content.
func (l *Line) Trailer() []byte {
	if l.ClosingWhitespace == nil {
		return []byte(DefaultClosingWhitespace)
	}
	return l.ClosingWhitespace
}

// Raw reassembles the captured document.
func (l *Line) Raw() []byte {
	raw := make([]byte, 0, len(l.Content)+len(l.Trailer()))
	raw = append(raw, l.Content...)
	return append(raw, l.Trailer()...)
}

// Validate recomputes the digest with h, which is reset first. On mismatch it
// returns a *digest.MismatchError whose Found field is the computed digest.
func (l *Line) Validate(h *digest.Hasher) error {
	h.Reset()
	_, _ = h.Write(l.Content)
	_, _ = h.Write(l.Trailer())
	if found := h.Sum(); found != l.Digest {
		return &digest.MismatchError{Expected: l.Digest, Found: found}
	}
	return nil
}

// Field names in serialization order.
const (
	digestKey            = "digest"
	expectedDigestKey    = "expected_digest"
	closingWhitespaceKey = "closing_whitespace"
	timestampKey         = "timestamp"
	urlKey               = "url"
	contentKey           = "content"
)

// AppendText appends the serialized record, without a line terminator, to dst.
func (l *Line) AppendText(dst []byte) ([]byte, error) {
	if bytes.IndexByte(l.Content, '\n') >= 0 {
		return dst, ErrMultilineContent
	}

	dst = appendStringField(dst, '{', digestKey, l.Digest.String())
	if l.ExpectedDigest != nil {
		dst = appendStringField(dst, ',', expectedDigestKey, l.ExpectedDigest.String())
	}
	if l.ClosingWhitespace != nil {
		escaped := make([]byte, 0, 2*len(l.ClosingWhitespace))
		for _, c := range l.ClosingWhitespace {
			switch c {
			case '\r':
				escaped = append(escaped, '\\', 'r')
			case '\n':
				escaped = append(escaped, '\\', 'n')
			default:
				return dst, ErrInvalidClosingWhitespace
			}
		}
		dst = appendStringField(dst, ',', closingWhitespaceKey, string(escaped))
	}
	if l.Timestamp != nil {
		dst = appendStringField(dst, ',', timestampKey, l.Timestamp.String())
	}
	if l.URL != nil {
		if bytes.ContainsAny([]byte(*l.URL), "\"\n") {
			return dst, ErrInvalidURL
		}
		dst = appendStringField(dst, ',', urlKey, *l.URL)
	}

	dst = append(dst, `,"`+contentKey+`":`...)
	dst = append(dst, l.Content...)
	return append(dst, '}'), nil
}

func appendStringField(dst []byte, sep byte, key, value string) []byte {
	dst = append(dst, sep, '"')
	dst = append(dst, key...)
	dst = append(dst, `":"`...)
	dst = append(dst, value...)
	return append(dst, '"')
}

// MarshalText implements encoding.TextMarshaler.
func (l Line) MarshalText() ([]byte, error) {
	return l.AppendText(nil)
}

// String returns the serialized record, or a placeholder when the record
// cannot be serialized.
func (l Line) String() string {
	text, err := l.AppendText(nil)
	if err != nil {
		return fmt.Sprintf("<unserializable record %s: %v>", l.Digest, err)
	}
	return string(text)
}
