// Package surt implements the Sort-friendly URI Reordering Transform keys used
// by the Wayback Machine CDX index.
//
// Only the subset the CDX index produces is supported: a reversed,
// comma-separated list of domain labels terminated by ')' and followed by a
// cleaned path and sorted query.
package surt

import (
	"fmt"
	"iter"
	"strings"
)

// MaxLabelLen is the longest domain label a Surt can hold.
const MaxLabelLen = 255

// Surt is a parsed SURT key. The source text is kept verbatim so String always
// reproduces the parsed input byte for byte.
type Surt struct {
	source string
	labels []uint8 // label lengths, in stored (reversed) order
}

// SyntaxError reports input that does not match label(,label)*)path.
type SyntaxError struct {
	Input  string
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid SURT %q at offset %d: %s", e.Input, e.Offset, e.Reason)
}

// Parse validates s and records its domain label table.
func Parse(s string) (Surt, error) {
	labels := make([]uint8, 0, 2)
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isLabelByte(c):
			n++
			if n > MaxLabelLen {
				return Surt{}, &SyntaxError{Input: s, Offset: i, Reason: "domain label too long"}
			}
		case c == ',' || c == ')':
			if n == 0 {
				return Surt{}, &SyntaxError{Input: s, Offset: i, Reason: "empty domain label"}
			}
			labels = append(labels, uint8(n))
			n = 0
			if c == ')' {
				return Surt{source: s, labels: labels}, nil
			}
		default:
			return Surt{}, &SyntaxError{Input: s, Offset: i, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return Surt{}, &SyntaxError{Input: s, Offset: len(s), Reason: "missing ')'"}
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Surt {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

func isLabelByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

// String returns the source text.
func (k Surt) String() string {
	return k.source
}

func (k Surt) pathStart() int {
	start := len(k.labels)
	for _, n := range k.labels {
		start += int(n)
	}
	return start
}

// Path returns everything after the closing ')', including any query.
func (k Surt) Path() string {
	return k.source[k.pathStart():]
}

// Len returns the number of domain labels.
func (k Surt) Len() int {
	return len(k.labels)
}

// Labels yields the domain labels in stored order, top-level domain first.
func (k Surt) Labels() iter.Seq[string] {
	return func(yield func(string) bool) {
		off := 0
		for _, n := range k.labels {
			if !yield(k.source[off : off+int(n)]) {
				return
			}
			off += int(n) + 1
		}
	}
}

// Backward yields the domain labels in host order, top-level domain last.
func (k Surt) Backward() iter.Seq[string] {
	return func(yield func(string) bool) {
		end := k.pathStart() - 1
		for i := len(k.labels) - 1; i >= 0; i-- {
			start := end - int(k.labels[i])
			if !yield(k.source[start:end]) {
				return
			}
			end = start - 1
		}
	}
}

// Host joins the domain labels in host order.
func (k Surt) Host() string {
	var b strings.Builder
	for label := range k.Backward() {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(label)
	}
	return b.String()
}

// CanonicalURL renders a human-facing https URL. The original scheme and any
// dropped www label are not recoverable.
func (k Surt) CanonicalURL() string {
	return "https://" + k.Host() + k.Path()
}

// Compare orders keys by source text.
func (k Surt) Compare(other Surt) int {
	return strings.Compare(k.source, other.source)
}

// Equal reports whether both keys have the same source text.
func (k Surt) Equal(other Surt) bool {
	return k.source == other.source
}

// MarshalText implements encoding.TextMarshaler.
func (k Surt) MarshalText() ([]byte, error) {
	return []byte(k.source), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Surt) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
