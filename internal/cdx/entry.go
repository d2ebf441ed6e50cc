package cdx

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/surt"
	"github.com/roach88/archivindex/internal/timestamp"
	"github.com/roach88/archivindex/internal/wayback"
)

// Schema is the column layout fixed by a page's header row.
type Schema int

const (
	// SchemaNone is the schema of a page with no header.
	SchemaNone Schema = iota
	SchemaShort
	SchemaExtended
)

var (
	shortHeader = []string{"urlkey", "timestamp", "original", "mimetype", "statuscode", "digest", "length"}

	extendedHeader = []string{
		"urlkey", "timestamp", "original", "mimetype", "statuscode", "digest",
		"redirect", "robotflags", "length", "offset", "filename",
	}
)

// Header returns the header row for s, or nil for SchemaNone.
func (s Schema) Header() []string {
	switch s {
	case SchemaShort:
		return slices.Clone(shortHeader)
	case SchemaExtended:
		return slices.Clone(extendedHeader)
	default:
		return nil
	}
}

func (s Schema) String() string {
	switch s {
	case SchemaShort:
		return "short"
	case SchemaExtended:
		return "extended"
	default:
		return "none"
	}
}

// absent is the column text for a missing value.
const absent = "-"

// Entry is one decoded CDX row.
type Entry struct {
	Key        surt.Surt
	Timestamp  timestamp.Timestamp
	Original   string
	MimeType   MimeType
	StatusCode StatusCode
	Digest     digest.Digest
	Length     *uint32   // nil for "-"
	Extended   *Extended // nil for short-schema rows
}

// Extended holds the WARC location columns of the extended schema.
type Extended struct {
	Redirect   *string // nil for "-"
	RobotFlags *string // nil for "-"
	Offset     uint64
	FileName   string
}

// Info returns the capture the entry describes with its reported digest.
func (e Entry) Info() wayback.CaptureInfo {
	return wayback.CaptureInfo{
		Capture:        wayback.Capture{URL: e.Original, Timestamp: e.Timestamp},
		ExpectedDigest: e.Digest,
	}
}

// Row renders the entry in wire form. Extended entries produce 11 columns.
func (e Entry) Row() []string {
	row := []string{
		e.Key.String(),
		e.Timestamp.String(),
		e.Original,
		e.MimeType.String(),
		e.StatusCode.String(),
		e.Digest.String(),
	}
	if e.Extended == nil {
		return append(row, formatLength(e.Length))
	}
	return append(row,
		formatOptional(e.Extended.Redirect),
		formatOptional(e.Extended.RobotFlags),
		formatLength(e.Length),
		strconv.FormatUint(e.Extended.Offset, 10),
		e.Extended.FileName,
	)
}

func formatLength(n *uint32) string {
	if n == nil {
		return absent
	}
	return strconv.FormatUint(uint64(*n), 10)
}

func formatOptional(s *string) string {
	if s == nil {
		return absent
	}
	return *s
}

// Compare orders entries by key, timestamp, original URL, MIME type, status,
// digest, length and extended columns. Absent values sort first.
func (e Entry) Compare(other Entry) int {
	if c := e.Key.Compare(other.Key); c != 0 {
		return c
	}
	if c := e.Timestamp.Compare(other.Timestamp); c != 0 {
		return c
	}
	if c := strings.Compare(e.Original, other.Original); c != 0 {
		return c
	}
	if c := e.MimeType.Compare(other.MimeType); c != 0 {
		return c
	}
	if c := cmp.Compare(e.StatusCode, other.StatusCode); c != 0 {
		return c
	}
	if c := e.Digest.Compare(other.Digest); c != 0 {
		return c
	}
	if c := compareOptional(e.Length, other.Length, cmp.Compare[uint32]); c != 0 {
		return c
	}
	return compareOptional(e.Extended, other.Extended, Extended.compare)
}

func (x Extended) compare(other Extended) int {
	if c := compareOptional(x.Redirect, other.Redirect, strings.Compare); c != 0 {
		return c
	}
	if c := compareOptional(x.RobotFlags, other.RobotFlags, strings.Compare); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Offset, other.Offset); c != 0 {
		return c
	}
	return strings.Compare(x.FileName, other.FileName)
}

func compareOptional[T any](a, b *T, f func(T, T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return f(*a, *b)
}

// List is one decoded page.
type List struct {
	Schema    Schema
	Entries   []Entry
	ResumeKey *string // set when the page ended with a resumption key
}

// SortEntries sorts l.Entries by Entry.Compare.
func (l *List) SortEntries() {
	slices.SortStableFunc(l.Entries, Entry.Compare)
}

// MarshalJSON renders the page in wire form.
func (l List) MarshalJSON() ([]byte, error) {
	rows := make([][]string, 0, len(l.Entries)+3)
	if l.Schema != SchemaNone {
		rows = append(rows, l.Schema.Header())
	}
	for _, e := range l.Entries {
		rows = append(rows, e.Row())
	}
	if l.ResumeKey != nil {
		rows = append(rows, []string{}, []string{*l.ResumeKey})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rows); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
