package snapshot

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/roach88/archivindex/internal/digest"
)

// Mismatch pairs a recorded digest with the digest computed from the record.
type Mismatch struct {
	Recorded digest.Sha1 `json:"recorded"`
	Computed digest.Sha1 `json:"computed"`
}

// Report summarizes a validation pass over a store.
type Report struct {
	Valid        int           `json:"valid"`
	InvalidLines []int         `json:"invalid_lines"` // 1-based
	Mismatches   []Mismatch    `json:"mismatches"`
	OutOfOrder   []digest.Sha1 `json:"out_of_order"`
}

// Successful reports whether every record parsed, matched its digest and
// appeared in strictly ascending order.
func (r *Report) Successful() bool {
	return len(r.InvalidLines) == 0 && len(r.Mismatches) == 0 && len(r.OutOfOrder) == 0
}

// Add folds other into r.
func (r *Report) Add(other Report) {
	r.Valid += other.Valid
	r.InvalidLines = append(r.InvalidLines, other.InvalidLines...)
	r.Mismatches = append(r.Mismatches, other.Mismatches...)
	r.OutOfOrder = append(r.OutOfOrder, other.OutOfOrder...)
}

// ValidateLines checks every record read from r in file order. Problems are
// reported, not repaired; only read errors are returned. A valid record counts
// as in order only if its digest is greater than the last in-order digest.
func ValidateLines(r io.Reader, src digest.Source) (Report, error) {
	h, release := src.Hasher()
	defer release()

	report := Report{
		InvalidLines: []int{},
		Mismatches:   []Mismatch{},
		OutOfOrder:   []digest.Sha1{},
	}
	last := digest.Min
	br := bufio.NewReaderSize(r, 1<<20)

	for n := 1; ; n++ {
		line, err := readLine(br)
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		if err != nil {
			return report, err
		}

		l, err := Parse(line)
		if err != nil {
			report.InvalidLines = append(report.InvalidLines, n)
			continue
		}

		var mismatch *digest.MismatchError
		switch err := l.Validate(h); {
		case errors.As(err, &mismatch):
			report.Mismatches = append(report.Mismatches, Mismatch{Recorded: l.Digest, Computed: mismatch.Found})
		case l.Digest.Compare(last) > 0:
			report.Valid++
			last = l.Digest
		default:
			report.OutOfOrder = append(report.OutOfOrder, l.Digest)
		}
	}
}

// readLine returns the next line without its terminator. A final line with no
// terminator is returned as is; io.EOF means no bytes remained.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(line) == 0 {
		return nil, io.EOF
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r")), nil
}
