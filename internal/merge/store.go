package merge

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/snapshot"
)

// StoreError reports a corrupt existing store. It ends the run.
type StoreError struct {
	Shape string
	Path  string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("existing %s store %s: %v", e.Shape, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrStoreOrder is wrapped by a StoreError when an existing store is not in
// ascending digest order.
var ErrStoreOrder = errors.New("records out of digest order")

// Store pairs the output for one shape with the optional existing store it
// extends.
type Store struct {
	Shape string

	inPath string
	in     *snapshot.Reader
	out    *snapshot.Writer

	last    digest.Sha1
	hasLast bool
}

// NewStore builds a store from already opened streams. in may be nil when
// there is no existing store for the shape.
func NewStore(shape string, in *snapshot.Reader, out *snapshot.Writer) *Store {
	return &Store{Shape: shape, in: in, out: out}
}

// StoreSpec locates the files of one store.
type StoreSpec struct {
	Shape  string `yaml:"shape" json:"shape"`
	Input  string `yaml:"input,omitempty" json:"input,omitempty"`
	Output string `yaml:"output" json:"output"`
}

// OpenStores opens every existing input and creates every output. On error
// anything already opened is aborted.
func OpenStores(specs []StoreSpec, level int) ([]*Store, error) {
	stores := make([]*Store, 0, len(specs))
	fail := func(err error) ([]*Store, error) {
		AbortStores(stores)
		return nil, err
	}

	for _, spec := range specs {
		s := &Store{Shape: spec.Shape, inPath: spec.Input}
		if spec.Input != "" {
			in, err := snapshot.Open(spec.Input)
			if err != nil {
				return fail(err)
			}
			s.in = in
		}
		out, err := snapshot.Create(spec.Output, level)
		if err != nil {
			if s.in != nil {
				s.in.Close()
			}
			return fail(err)
		}
		s.out = out
		stores = append(stores, s)
	}
	return stores, nil
}

// FinishStores finalizes every output. It must run once, after a successful
// merge.
func FinishStores(stores []*Store) error {
	var errs []error
	for _, s := range stores {
		if s.in != nil {
			errs = append(errs, s.in.Close())
		}
		if err := s.out.Finish(); err != nil {
			errs = append(errs, fmt.Errorf("%s store: %w", s.Shape, err))
		}
	}
	return errors.Join(errs...)
}

// AbortStores closes inputs and removes unfinished outputs. Stores that were
// already finished are left alone.
func AbortStores(stores []*Store) {
	for _, s := range stores {
		if s.in != nil {
			s.in.Close()
		}
		if s.out != nil {
			_ = s.out.Abort()
		}
	}
}

// peek returns the next existing record, or nil when there is none.
func (s *Store) peek() (*snapshot.Line, error) {
	if s.in == nil {
		return nil, nil
	}
	l, err := s.in.Peek()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(err)
	}
	return l, nil
}

// copyNext passes the next existing record through unchanged.
func (s *Store) copyNext(rep *Report) error {
	l, err := s.in.Next()
	if err != nil {
		return s.fail(err)
	}
	if s.hasLast && l.Digest.Compare(s.last) < 0 {
		return s.fail(fmt.Errorf("%w: %s after %s", ErrStoreOrder, l.Digest, s.last))
	}
	s.last, s.hasLast = l.Digest, true

	written, err := s.out.Write(&l)
	if err != nil {
		return s.fail(err)
	}
	if written {
		rep.Existing++
	} else {
		rep.Duplicates++
	}
	return nil
}

// drainBefore copies through every existing record with a digest below d.
func (s *Store) drainBefore(d digest.Sha1, rep *Report) error {
	for {
		l, err := s.peek()
		if err != nil || l == nil || l.Digest.Compare(d) >= 0 {
			return err
		}
		if err := s.copyNext(rep); err != nil {
			return err
		}
	}
}

// copyEqual copies through the existing record for d, if the store holds one.
func (s *Store) copyEqual(d digest.Sha1, rep *Report) (bool, error) {
	l, err := s.peek()
	if err != nil || l == nil || l.Digest != d {
		return false, err
	}
	return true, s.copyNext(rep)
}

func (s *Store) drainAll(rep *Report) error {
	for {
		l, err := s.peek()
		if err != nil || l == nil {
			return err
		}
		if err := s.copyNext(rep); err != nil {
			return err
		}
	}
}

func (s *Store) fail(err error) error {
	return &StoreError{Shape: s.Shape, Path: s.inPath, Err: err}
}
