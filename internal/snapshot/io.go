package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/archivindex/internal/digest"
)

// DefaultCompressionLevel is the zstd level used for new stores.
const DefaultCompressionLevel = 19

// LineError attaches a 1-based line number to a record error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader decodes records lazily, one line at a time.
type Reader struct {
	br     *bufio.Reader
	closer io.Closer
	line   int

	peeked  *Line
	peekErr error
}

// NewReader reads uncompressed records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 1<<20)}
}

// OpenFile returns the raw record stream of a store file. Files ending in
// .zst are decompressed.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return &decompressed{zr: zr, f: f}, nil
}

type decompressed struct {
	zr *zstd.Decoder
	f  *os.File
}

func (d *decompressed) Read(p []byte) (int, error) {
	return d.zr.Read(p)
}

func (d *decompressed) Close() error {
	d.zr.Close()
	return d.f.Close()
}

// Open opens a store file for record-at-a-time reading.
func Open(path string) (*Reader, error) {
	rc, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(rc)
	r.closer = rc
	return r, nil
}

// Next returns the next record, or io.EOF after the last one. A malformed
// record is returned as a *LineError; reading may continue past it.
func (r *Reader) Next() (Line, error) {
	if r.peeked != nil || r.peekErr != nil {
		l, err := r.peeked, r.peekErr
		r.peeked, r.peekErr = nil, nil
		if err != nil {
			return Line{}, err
		}
		return *l, nil
	}
	return r.read()
}

// Peek returns the next record without consuming it.
func (r *Reader) Peek() (*Line, error) {
	if r.peeked == nil && r.peekErr == nil {
		l, err := r.read()
		if err != nil {
			r.peekErr = err
		} else {
			r.peeked = &l
		}
	}
	return r.peeked, r.peekErr
}

func (r *Reader) read() (Line, error) {
	raw, err := readLine(r.br)
	if err != nil {
		return Line{}, err
	}
	r.line++
	l, err := Parse(raw)
	if err != nil {
		return Line{}, &LineError{Line: r.line, Err: err}
	}
	return l, nil
}

// Close releases the underlying file and decompressor.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Writer appends records and drops a record whose digest equals the
// previously written one. Input must arrive in ascending digest order for
// this to deduplicate fully.
type Writer struct {
	out  *bufio.Writer
	zw   *zstd.Encoder
	f    *os.File
	path string

	last    digest.Sha1
	hasLast bool
	buf     []byte
	done    bool

	written int
	skipped int
}

// NewWriter writes uncompressed records to w. Finish flushes them.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: bufio.NewWriterSize(w, 1<<20)}
}

// Create starts a new zstd-compressed store at path. The file must not already
// exist. Finish must be called on success; Abort removes the partial file.
func Create(path string, level int) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("create store %s: %w", path, err)
	}
	return &Writer{out: bufio.NewWriterSize(zw, 1<<20), zw: zw, f: f, path: path}, nil
}

// Write appends l unless its digest repeats the last written digest. It
// reports whether the record was written.
func (w *Writer) Write(l *Line) (bool, error) {
	if w.done {
		return false, errors.New("write to finished store")
	}
	if w.hasLast && l.Digest == w.last {
		w.skipped++
		return false, nil
	}
	text, err := l.AppendText(w.buf[:0])
	if err != nil {
		return false, fmt.Errorf("record %s: %w", l.Digest, err)
	}
	w.buf = append(text, '\n')
	if _, err := w.out.Write(w.buf); err != nil {
		return false, err
	}
	w.last, w.hasLast = l.Digest, true
	w.written++
	return true, nil
}

// WriteContent builds a record for a freshly imported document with New and
// writes it.
func (w *Writer) WriteContent(d digest.Sha1, r io.Reader) (bool, error) {
	if w.hasLast && d == w.last {
		w.skipped++
		return false, nil
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return false, err
	}
	l := New(d, raw)
	return w.Write(&l)
}

// Written returns the number of records written.
func (w *Writer) Written() int {
	return w.written
}

// Skipped returns the number of adjacent duplicates dropped.
func (w *Writer) Skipped() int {
	return w.skipped
}

// Finish flushes buffered records and, for compressed stores, writes the
// final zstd frame and closes the file. It must be called exactly once on the
// success path; a store that was never finished is unreadable.
func (w *Writer) Finish() error {
	if w.done {
		return errors.New("store already finished")
	}
	w.done = true
	if err := w.out.Flush(); err != nil {
		w.discard()
		return fmt.Errorf("flush store: %w", err)
	}
	if w.zw == nil {
		return nil
	}
	if err := w.zw.Close(); err != nil {
		w.discard()
		return fmt.Errorf("finish zstd frame: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Abort closes and removes an unfinished store. It is a no-op after Finish,
// so it is safe to defer.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.discard()
}

func (w *Writer) discard() error {
	if w.f == nil {
		return nil
	}
	_ = w.zw.Close()
	_ = w.f.Close()
	return os.Remove(w.path)
}
