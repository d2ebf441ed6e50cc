package cdx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// RowReader yields the elements of a page's outer array in order. ReadRow
// returns io.EOF once the outer array is exhausted.
type RowReader interface {
	ReadRow() ([]string, error)
}

// JSONError reports input that is not an array of string arrays.
type JSONError struct {
	Offset int64
	Reason string
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("malformed CDX JSON at offset %d: %s", e.Offset, e.Reason)
}

// JSONRows tokenizes a JSON page one row at a time without buffering the
// whole document.
type JSONRows struct {
	dec     *json.Decoder
	started bool
	done    bool
}

// NewJSONRows reads rows from r.
func NewJSONRows(r io.Reader) *JSONRows {
	return &JSONRows{dec: json.NewDecoder(r)}
}

// ReadRow implements RowReader.
func (j *JSONRows) ReadRow() ([]string, error) {
	if j.done {
		return nil, io.EOF
	}
	if !j.started {
		if err := j.expectDelim('['); err != nil {
			return nil, err
		}
		j.started = true
	}

	if !j.dec.More() {
		if err := j.expectDelim(']'); err != nil {
			return nil, err
		}
		if _, err := j.dec.Token(); !errors.Is(err, io.EOF) {
			return nil, &JSONError{Offset: j.dec.InputOffset(), Reason: "data after outer array"}
		}
		j.done = true
		return nil, io.EOF
	}

	if err := j.expectDelim('['); err != nil {
		return nil, err
	}
	row := []string{}
	for j.dec.More() {
		tok, err := j.dec.Token()
		if err != nil {
			return nil, j.wrap(err)
		}
		s, ok := tok.(string)
		if !ok {
			return nil, &JSONError{Offset: j.dec.InputOffset(), Reason: fmt.Sprintf("expected string, found %v", tok)}
		}
		row = append(row, s)
	}
	if err := j.expectDelim(']'); err != nil {
		return nil, err
	}
	return row, nil
}

func (j *JSONRows) expectDelim(want json.Delim) error {
	tok, err := j.dec.Token()
	if err != nil {
		return j.wrap(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return &JSONError{Offset: j.dec.InputOffset(), Reason: fmt.Sprintf("expected %q, found %v", want, tok)}
	}
	return nil
}

func (j *JSONRows) wrap(err error) error {
	if errors.Is(err, io.EOF) {
		return &JSONError{Offset: j.dec.InputOffset(), Reason: "unexpected end of input"}
	}
	return &JSONError{Offset: j.dec.InputOffset(), Reason: err.Error()}
}

// SliceRows is a RowReader over rows already in memory.
type SliceRows struct {
	rows [][]string
}

// NewSliceRows reads rows in order.
func NewSliceRows(rows [][]string) *SliceRows {
	return &SliceRows{rows: rows}
}

// ReadRow implements RowReader.
func (s *SliceRows) ReadRow() ([]string, error) {
	if len(s.rows) == 0 {
		return nil, io.EOF
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row, nil
}
