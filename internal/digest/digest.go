package digest

import (
	"bytes"
	"crypto/sha1"
	"encoding/base32"
	"fmt"
)

// Size is the length of a SHA-1 digest in bytes.
const Size = sha1.Size

// TextLen is the length of the Base32 text form of a SHA-1 digest.
const TextLen = 32

// Sha1 is a raw SHA-1 digest. Values order byte-lexicographically.
type Sha1 [Size]byte

var (
	// Min sorts before every other digest.
	Min = Sha1{}

	// Max sorts after every other digest.
	Max = Sha1{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
)

// ParseError reports text that is not a Base32 SHA-1 digest.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid SHA-1 digest %q: %s", e.Text, e.Reason)
}

// ParseSha1 decodes the 32-character Base32 form of a digest.
func ParseSha1(s string) (Sha1, error) {
	var d Sha1
	if len(s) != TextLen {
		return d, &ParseError{Text: s, Reason: fmt.Sprintf("length %d, expected %d", len(s), TextLen)}
	}
	n, err := base32.StdEncoding.Decode(d[:], []byte(s))
	if err != nil {
		return Sha1{}, &ParseError{Text: s, Reason: err.Error()}
	}
	if n != Size {
		return Sha1{}, &ParseError{Text: s, Reason: fmt.Sprintf("decoded %d bytes", n)}
	}
	return d, nil
}

// String returns the Base32 text form.
func (d Sha1) String() string {
	return base32.StdEncoding.EncodeToString(d[:])
}

// Compare orders digests byte-lexicographically.
func (d Sha1) Compare(other Sha1) int {
	return bytes.Compare(d[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Sha1) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Sha1) UnmarshalText(text []byte) error {
	parsed, err := ParseSha1(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Digest is a digest as reported by a CDX index: either a valid SHA-1 or
// the raw text that failed to decode. The zero value is the valid Min digest.
type Digest struct {
	sha     Sha1
	invalid string
	bad     bool
}

// Parse never fails. Text that is not a 32-character Base32 SHA-1 becomes an
// invalid Digest carrying the original text.
func Parse(s string) Digest {
	sha, err := ParseSha1(s)
	if err != nil {
		return Digest{invalid: s, bad: true}
	}
	return Digest{sha: sha}
}

// FromSha1 wraps a valid digest.
func FromSha1(d Sha1) Digest {
	return Digest{sha: d}
}

// Valid returns the SHA-1 value and true when the digest decoded.
func (d Digest) Valid() (Sha1, bool) {
	if d.bad {
		return Sha1{}, false
	}
	return d.sha, true
}

// IsValid reports whether the digest decoded to a SHA-1 value.
func (d Digest) IsValid() bool {
	return !d.bad
}

// String returns the text the digest was parsed from.
func (d Digest) String() string {
	if d.bad {
		return d.invalid
	}
	return d.sha.String()
}

// Compare orders valid digests before invalid ones, valid digests by value
// and invalid digests by text.
func (d Digest) Compare(other Digest) int {
	switch {
	case !d.bad && !other.bad:
		return d.sha.Compare(other.sha)
	case !d.bad:
		return -1
	case !other.bad:
		return 1
	}
	switch {
	case d.invalid < other.invalid:
		return -1
	case d.invalid > other.invalid:
		return 1
	}
	return 0
}

// MismatchError reports content whose computed digest differs from the digest
// it claims.
type MismatchError struct {
	Expected Sha1
	Found    Sha1
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, found %s", e.Expected, e.Found)
}
