// Package cas reads content-addressed capture directories, where every file
// is named by the Base32 SHA-1 of its decompressed content.
package cas

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/roach88/archivindex/internal/digest"
)

// Compression is the encoding implied by a file name extension.
type Compression uint8

const (
	None Compression = iota
	Zstd
	Gzip
)

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	default:
		return "none"
	}
}

// File is one classified entry of a capture directory.
type File struct {
	Path        string
	Compression Compression
	Digest      digest.Sha1
	// Skipped marks a file whose name is not <digest>[.zst|.gz].
	Skipped bool
}

// Classify inspects a file name only. Stray files are marked Skipped rather
// than treated as errors.
func Classify(path string) File {
	parts := strings.Split(filepath.Base(path), ".")
	f := File{Path: path}

	switch len(parts) {
	case 1:
	case 2:
		switch strings.ToLower(parts[1]) {
		case "zst":
			f.Compression = Zstd
		case "gz":
			f.Compression = Gzip
		default:
			f.Skipped = true
			return f
		}
	default:
		f.Skipped = true
		return f
	}

	d, err := digest.ParseSha1(parts[0])
	if err != nil {
		f.Skipped = true
		return f
	}
	f.Digest = d
	return f
}

// Open returns the decompressed content of f.
func (f File) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}

	switch f.Compression {
	case Zstd:
		zr, err := zstd.NewReader(file, zstd.WithDecoderConcurrency(1))
		if err != nil {
			file.Close()
			return nil, err
		}
		return &readCloser{Reader: zr, close: func() error { zr.Close(); return file.Close() }}, nil
	case Gzip:
		gr, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		return &readCloser{Reader: gr, close: func() error { return errors.Join(gr.Close(), file.Close()) }}, nil
	default:
		return file, nil
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error {
	return r.close()
}

// Read returns the decompressed content of f after checking it against the
// digest in its name. A mismatch is returned as a *FileError wrapping a
// *digest.MismatchError.
func (f File) Read(h *digest.Hasher) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &FileError{Path: f.Path, Err: err}
	}
	defer rc.Close()

	h.Reset()
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, h), rc); err != nil {
		return nil, &FileError{Path: f.Path, Err: err}
	}
	if found := h.Sum(); found != f.Digest {
		return nil, &FileError{Path: f.Path, Err: &digest.MismatchError{Expected: f.Digest, Found: found}}
	}
	return buf.Bytes(), nil
}

func (f File) verify(h *digest.Hasher) error {
	rc, err := f.Open()
	if err != nil {
		return &FileError{Path: f.Path, Err: err}
	}
	defer rc.Close()

	found, err := h.Compute(rc)
	if err != nil {
		return &FileError{Path: f.Path, Err: err}
	}
	if found != f.Digest {
		return &FileError{Path: f.Path, Err: &digest.MismatchError{Expected: f.Digest, Found: found}}
	}
	return nil
}

// FileError attaches a path to an I/O or integrity error.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// RootError reports that the walk root itself could not be read.
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("read capture root %s: %v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error {
	return e.Err
}

// Walk visits every non-directory entry below root in lexical order. Only
// regular files are classified; other entries, including symlinks, are
// yielded as skipped. Errors for individual entries are yielded and the walk
// continues; a *RootError ends it. When validate is set, each classified file is decompressed and
// hashed, and a mismatch is yielded as an error alongside the file.
func Walk(root string, validate bool) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		var h *digest.Hasher
		if validate {
			h = digest.NewHasher()
		}
		stop := errors.New("stop")

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					yield(File{Path: root}, &RootError{Root: root, Err: err})
					return stop
				}
				if !yield(File{Path: path, Skipped: true}, &FileError{Path: path, Err: err}) {
					return stop
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				// Symlinks are not followed; devices, sockets and pipes are never captures.
				if !yield(File{Path: path, Skipped: true}, nil) {
					return stop
				}
				return nil
			}

			f := Classify(path)
			if validate && !f.Skipped {
				if err := f.verify(h); err != nil {
					if !yield(f, err) {
						return stop
					}
					return nil
				}
			}
			if !yield(f, nil) {
				return stop
			}
			return nil
		})
	}
}

// Mismatch is a file whose content does not hash to its name.
type Mismatch struct {
	Path     string      `json:"path"`
	Expected digest.Sha1 `json:"expected"`
	Found    digest.Sha1 `json:"found"`
}

// Failure is a file or directory that could not be read.
type Failure struct {
	Path string
	Err  error
}

// Result collects an import over one or more roots.
type Result struct {
	// Files holds every classified file, sorted by digest.
	Files      []File
	Skipped    []string
	Mismatches []Mismatch
	Failures   []Failure
}

// Successful reports whether every file was readable and intact. Skipped
// files do not count against an import.
func (r *Result) Successful() bool {
	return len(r.Mismatches) == 0 && len(r.Failures) == 0
}

// Import walks each root and returns the files sorted by digest, ready to
// drive a merge. Only an unreadable root is returned as an error.
func Import(roots []string, validate bool) (*Result, error) {
	logger := slog.Default()
	res := &Result{}

	for _, root := range roots {
		for f, err := range Walk(root, validate) {
			var rootErr *RootError
			var mismatch *digest.MismatchError
			switch {
			case errors.As(err, &rootErr):
				return nil, rootErr
			case errors.As(err, &mismatch):
				logger.Warn("digest mismatch", "path", f.Path, "expected", mismatch.Expected, "found", mismatch.Found)
				res.Mismatches = append(res.Mismatches, Mismatch{Path: f.Path, Expected: mismatch.Expected, Found: mismatch.Found})
			case err != nil:
				logger.Warn("unreadable capture file", "path", f.Path, "error", err)
				res.Failures = append(res.Failures, Failure{Path: f.Path, Err: err})
			case f.Skipped:
				logger.Debug("skipping stray file", "path", f.Path)
				res.Skipped = append(res.Skipped, f.Path)
			default:
				res.Files = append(res.Files, f)
			}
		}
	}

	slices.SortStableFunc(res.Files, func(a, b File) int {
		return a.Digest.Compare(b.Digest)
	})
	logger.Info("imported capture files",
		"roots", len(roots),
		"count", len(res.Files),
		"skipped", len(res.Skipped),
		"mismatches", len(res.Mismatches),
		"failures", len(res.Failures),
	)
	return res, nil
}
