package snapshot

import (
	"bytes"
	"fmt"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/timestamp"
)

// SyntaxError reports a record that does not follow the field grammar.
type SyntaxError struct {
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid snapshot record at byte %d: %s", e.Offset, e.Reason)
}

// scanner walks a record left to right. Every field is a literal key prefix
// followed by a bounded value.
type scanner struct {
	buf []byte
	off int
}

func (s *scanner) rest() []byte {
	return s.buf[s.off:]
}

func (s *scanner) fail(format string, args ...any) error {
	return &SyntaxError{Offset: s.off, Reason: fmt.Sprintf(format, args...)}
}

// skip consumes lit if the remaining input starts with it.
func (s *scanner) skip(lit string) bool {
	if !bytes.HasPrefix(s.rest(), []byte(lit)) {
		return false
	}
	s.off += len(lit)
	return true
}

func (s *scanner) expect(lit string) error {
	if !s.skip(lit) {
		return s.fail("expected %q", lit)
	}
	return nil
}

// fixed consumes exactly n bytes.
func (s *scanner) fixed(n int) ([]byte, error) {
	if len(s.rest()) < n {
		return nil, s.fail("truncated value, need %d bytes", n)
	}
	v := s.buf[s.off : s.off+n]
	s.off += n
	return v, nil
}

// quoted consumes bytes up to the next '"', which is also consumed. No
// escapes are recognized.
func (s *scanner) quoted() ([]byte, error) {
	i := bytes.IndexByte(s.rest(), '"')
	if i < 0 {
		return nil, s.fail("unterminated string")
	}
	v := s.buf[s.off : s.off+i]
	s.off += i + 1
	return v, nil
}

// field reports whether the next field is key and consumes its opening.
func (s *scanner) field(key string) bool {
	return s.skip(`,"` + key + `":"`)
}

func (s *scanner) digest() (digest.Sha1, error) {
	start := s.off
	text, err := s.fixed(digest.TextLen)
	if err != nil {
		return digest.Sha1{}, err
	}
	d, err := digest.ParseSha1(string(text))
	if err != nil {
		s.off = start
		return digest.Sha1{}, s.fail("%v", err)
	}
	return d, s.expect(`"`)
}

// Parse decodes one record. The line terminator must already be removed.
// Content is copied out of line.
func Parse(line []byte) (Line, error) {
	s := &scanner{buf: line}
	var l Line
	var err error

	if err = s.expect(`{"` + digestKey + `":"`); err != nil {
		return Line{}, err
	}
	if l.Digest, err = s.digest(); err != nil {
		return Line{}, err
	}

	if s.field(expectedDigestKey) {
		d, err := s.digest()
		if err != nil {
			return Line{}, err
		}
		l.ExpectedDigest = &d
	}

	if s.field(closingWhitespaceKey) {
		if l.ClosingWhitespace, err = s.closingWhitespace(); err != nil {
			return Line{}, err
		}
	}

	if s.field(timestampKey) {
		start := s.off
		text, err := s.fixed(timestamp.Len)
		if err != nil {
			return Line{}, err
		}
		ts, err := timestamp.Parse(string(text))
		if err != nil {
			s.off = start
			return Line{}, s.fail("%v", err)
		}
		l.Timestamp = &ts
		if err := s.expect(`"`); err != nil {
			return Line{}, err
		}
	}

	if s.field(urlKey) {
		v, err := s.quoted()
		if err != nil {
			return Line{}, err
		}
		url := string(v)
		l.URL = &url
	}

	if err := s.expect(`,"` + contentKey + `":`); err != nil {
		return Line{}, err
	}
	rest := s.rest()
	if len(rest) == 0 || rest[len(rest)-1] != '}' {
		s.off = len(line)
		return Line{}, s.fail("record does not end with '}'")
	}
	l.Content = bytes.Clone(rest[:len(rest)-1])
	if l.Content == nil {
		l.Content = []byte{}
	}
	return l, nil
}

// closingWhitespace decodes a run of \r and \n escapes up to the closing quote.
func (s *scanner) closingWhitespace() ([]byte, error) {
	ws := []byte{}
	for {
		if s.skip(`"`) {
			return ws, nil
		}
		switch {
		case s.skip(`\r`):
			ws = append(ws, '\r')
		case s.skip(`\n`):
			ws = append(ws, '\n')
		case len(s.rest()) == 0:
			return nil, s.fail("unterminated closing whitespace")
		default:
			return nil, s.fail("unexpected closing whitespace escape")
		}
	}
}
