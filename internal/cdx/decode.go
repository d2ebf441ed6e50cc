package cdx

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/surt"
	"github.com/roach88/archivindex/internal/timestamp"
)

// ErrMissingResumeKey is returned when the end-of-rows sentinel is the last
// element of a page.
var ErrMissingResumeKey = errors.New("missing resumption key after end-of-rows sentinel")

// HeaderError reports a first row that matches neither schema.
type HeaderError struct {
	Header []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("unrecognized CDX header %q", e.Header)
}

// RowLengthError reports a data row whose column count differs from the
// header's. Row is 1-based and counts data rows only.
type RowLengthError struct {
	Row  int
	Want int
	Got  int
}

func (e *RowLengthError) Error() string {
	return fmt.Sprintf("CDX row %d: %d columns, expected %d", e.Row, e.Got, e.Want)
}

// FieldError reports a malformed column value.
type FieldError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("CDX row %d: invalid %s %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ResumeKeyError reports an element after the sentinel that is not a
// one-element array.
type ResumeKeyError struct {
	Row []string
}

func (e *ResumeKeyError) Error() string {
	return fmt.Sprintf("resumption key row has %d elements, expected 1", len(e.Row))
}

// TrailingRowError reports an element after the resumption key.
type TrailingRowError struct {
	Row []string
}

func (e *TrailingRowError) Error() string {
	return fmt.Sprintf("unexpected row %q after resumption key", e.Row)
}

// Decoder pulls entries from a RowReader:
// header, then data rows, then optionally the sentinel and the resumption key.
type Decoder struct {
	rows   RowReader
	schema Schema
	row    int
	resume *string
	err    error
}

// NewDecoder decodes the page read from rows.
func NewDecoder(rows RowReader) *Decoder {
	return &Decoder{rows: rows}
}

// Next returns the next entry in page order. It returns io.EOF after the last
// entry; any other error is final and repeated by later calls.
func (d *Decoder) Next() (Entry, error) {
	if d.err != nil {
		return Entry{}, d.err
	}
	e, err := d.next()
	if err != nil {
		d.err = err
	}
	return e, err
}

// Schema returns the schema fixed by the header, SchemaNone before the header
// is read or for an empty page.
func (d *Decoder) Schema() Schema {
	return d.schema
}

// ResumeKey returns the resumption key once Next has returned io.EOF.
func (d *Decoder) ResumeKey() (string, bool) {
	if d.resume == nil {
		return "", false
	}
	return *d.resume, true
}

func (d *Decoder) next() (Entry, error) {
	if d.schema == SchemaNone {
		if err := d.readHeader(); err != nil {
			return Entry{}, err
		}
	}

	row, err := d.rows.ReadRow()
	if err != nil {
		return Entry{}, err
	}
	if len(row) == 0 {
		if err := d.readResumeKey(); err != nil {
			return Entry{}, err
		}
		return Entry{}, io.EOF
	}

	d.row++
	return d.decodeRow(row)
}

func (d *Decoder) readHeader() error {
	header, err := d.rows.ReadRow()
	if err != nil {
		return err
	}
	switch {
	case slices.Equal(header, shortHeader):
		d.schema = SchemaShort
	case slices.Equal(header, extendedHeader):
		d.schema = SchemaExtended
	default:
		return &HeaderError{Header: header}
	}
	return nil
}

func (d *Decoder) readResumeKey() error {
	row, err := d.rows.ReadRow()
	if errors.Is(err, io.EOF) {
		return ErrMissingResumeKey
	}
	if err != nil {
		return err
	}
	if len(row) != 1 {
		return &ResumeKeyError{Row: row}
	}

	extra, err := d.rows.ReadRow()
	switch {
	case errors.Is(err, io.EOF):
	case err != nil:
		return err
	default:
		return &TrailingRowError{Row: extra}
	}

	key := row[0]
	d.resume = &key
	return nil
}

func (d *Decoder) decodeRow(row []string) (Entry, error) {
	var header []string
	if d.schema == SchemaExtended {
		header = extendedHeader
	} else {
		header = shortHeader
	}
	if len(row) != len(header) {
		return Entry{}, &RowLengthError{Row: d.row, Want: len(header), Got: len(row)}
	}

	var e Entry
	var err error
	if e.Key, err = surt.Parse(row[0]); err != nil {
		return Entry{}, d.fieldError(0, row, err)
	}
	if e.Timestamp, err = timestamp.Parse(row[1]); err != nil {
		return Entry{}, d.fieldError(1, row, err)
	}
	e.Original = row[2]
	e.MimeType = MimeType(row[3])
	if e.StatusCode, err = ParseStatusCode(row[4]); err != nil {
		return Entry{}, d.fieldError(4, row, err)
	}
	e.Digest = digest.Parse(row[5])

	if d.schema == SchemaShort {
		if e.Length, err = parseLength(row[6]); err != nil {
			return Entry{}, d.fieldError(6, row, err)
		}
		return e, nil
	}

	x := &Extended{
		Redirect:   parseOptional(row[6]),
		RobotFlags: parseOptional(row[7]),
		FileName:   row[10],
	}
	if e.Length, err = parseLength(row[8]); err != nil {
		return Entry{}, d.fieldError(8, row, err)
	}
	if x.Offset, err = strconv.ParseUint(row[9], 10, 64); err != nil {
		return Entry{}, d.fieldError(9, row, err)
	}
	e.Extended = x
	return e, nil
}

func (d *Decoder) fieldError(col int, row []string, err error) error {
	return &FieldError{Row: d.row, Column: d.schema.columnName(col), Value: row[col], Err: err}
}

func (s Schema) columnName(col int) string {
	if s == SchemaExtended {
		return extendedHeader[col]
	}
	return shortHeader[col]
}

func parseLength(s string) (*uint32, error) {
	if s == absent {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, err
	}
	length := uint32(n)
	return &length, nil
}

func parseOptional(s string) *string {
	if s == absent {
		return nil
	}
	return &s
}

// Decode reads a whole page.
func Decode(rows RowReader) (List, error) {
	d := NewDecoder(rows)
	list := List{Entries: []Entry{}}
	for {
		e, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return List{}, err
		}
		list.Entries = append(list.Entries, e)
	}
	list.Schema = d.Schema()
	if key, ok := d.ResumeKey(); ok {
		list.ResumeKey = &key
	}
	return list, nil
}

// DecodeJSON reads a whole page of JSON from r.
func DecodeJSON(r io.Reader) (List, error) {
	return Decode(NewJSONRows(r))
}
