// Package merge folds freshly imported capture files into sorted snapshot
// stores, one store per payload shape.
//
// The merge is a streaming join over two ascending digest sequences: the
// imported files and the records of each existing store. Records already in
// a store are trusted and copied through unchanged; in particular, when a
// store already holds a digest, the imported bytes for it are neither read
// nor compared against the stored record.
package merge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/archivindex/internal/cas"
	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/snapshot"
)

// OrderError reports imported files that are not sorted by digest.
type OrderError struct {
	Path     string
	Previous digest.Sha1
	Digest   digest.Sha1
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("import out of digest order at %s: %s after %s", e.Path, e.Digest, e.Previous)
}

// Failure is an imported file that could not be merged.
type Failure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Report counts the outcome of one run.
type Report struct {
	RunID string `json:"run_id"`
	// Imported counts new records built from capture files.
	Imported int `json:"imported"`
	// Existing counts records copied through from existing stores.
	Existing int `json:"existing"`
	// Matched counts imported digests already present in a store.
	Matched int `json:"matched"`
	// Duplicates counts repeated digests that were dropped.
	Duplicates   int            `json:"duplicates"`
	Written      map[string]int `json:"written"`
	Unrecognized []string       `json:"unrecognized"`
	Failures     []Failure      `json:"failures"`
}

// Successful reports whether every imported file was merged.
func (r *Report) Successful() bool {
	return len(r.Unrecognized) == 0 && len(r.Failures) == 0
}

// Merger runs merges. The zero value uses DefaultShapes, a fresh hasher and
// UUIDv7 run IDs, and logs through slog.Default.
type Merger struct {
	Shapes Shapes
	Source digest.Source
	RunIDs RunIDGenerator
	Logger *slog.Logger
}

// Run merges files, which must be sorted by digest, into stores. Skipped files
// are ignored. Every output receives the union of its existing records and the
// new records of its shape, in ascending digest order with adjacent duplicates
// dropped.
//
// A file that cannot be read, does not hash to its name, or cannot be stored
// on one line is reported and skipped. A corrupt existing store or unsorted
// input ends the run with an error; the caller must then abort the outputs
// rather than finish them.
func (m *Merger) Run(files []cas.File, stores []*Store) (*Report, error) {
	runIDs := m.RunIDs
	if runIDs == nil {
		runIDs = UUIDv7Generator{}
	}
	shapes := m.Shapes
	if shapes == nil {
		shapes = DefaultShapes
	}
	src := m.Source
	if src == nil {
		src = digest.NewShared()
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rep := &Report{
		RunID:        runIDs.Generate(),
		Written:      make(map[string]int, len(stores)),
		Unrecognized: []string{},
		Failures:     []Failure{},
	}
	logger = logger.With("run_id", rep.RunID)
	logger.Info("merge started", "files", len(files), "stores", len(stores))

	byShape := make(map[string]*Store, len(stores))
	for _, s := range stores {
		if _, ok := byShape[s.Shape]; !ok {
			byShape[s.Shape] = s
		}
	}

	h, release := src.Hasher()
	defer release()

	var prev cas.File
	started := false
	for _, f := range files {
		if f.Skipped {
			continue
		}
		if started {
			switch c := f.Digest.Compare(prev.Digest); {
			case c < 0:
				return rep, &OrderError{Path: f.Path, Previous: prev.Digest, Digest: f.Digest}
			case c == 0:
				logger.Debug("duplicate capture file", "path", f.Path, "digest", f.Digest)
				rep.Duplicates++
				continue
			}
		}
		prev, started = f, true

		matched := false
		for _, s := range stores {
			if err := s.drainBefore(f.Digest, rep); err != nil {
				return rep, err
			}
			ok, err := s.copyEqual(f.Digest, rep)
			if err != nil {
				return rep, err
			}
			matched = matched || ok
		}
		if matched {
			rep.Matched++
			continue
		}

		if err := m.add(f, h, shapes, byShape, rep, logger); err != nil {
			return rep, err
		}
	}

	for _, s := range stores {
		if err := s.drainAll(rep); err != nil {
			return rep, err
		}
	}
	for _, s := range stores {
		rep.Written[s.Shape] += s.out.Written()
	}

	logger.Info("merge finished",
		"imported", rep.Imported,
		"existing", rep.Existing,
		"matched", rep.Matched,
		"duplicates", rep.Duplicates,
		"unrecognized", len(rep.Unrecognized),
		"failures", len(rep.Failures),
	)
	return rep, nil
}

// add builds a record for one new capture file and routes it by shape.
// Problems with the file itself are recorded in rep; only output errors are
// returned.
func (m *Merger) add(f cas.File, h *digest.Hasher, shapes Shapes, byShape map[string]*Store, rep *Report, logger *slog.Logger) error {
	content, err := f.Read(h)
	if err != nil {
		logger.Warn("skipping unreadable capture file", "path", f.Path, "error", err)
		rep.Failures = append(rep.Failures, Failure{Path: f.Path, Err: err.Error()})
		return nil
	}

	shape, ok := shapes.Classify(content)
	if !ok {
		logger.Warn("unrecognized payload shape", "path", f.Path, "digest", f.Digest)
		rep.Unrecognized = append(rep.Unrecognized, f.Path)
		return nil
	}
	s, ok := byShape[shape.Name]
	if !ok {
		logger.Warn("no store for payload shape", "path", f.Path, "shape", shape.Name)
		rep.Unrecognized = append(rep.Unrecognized, f.Path)
		return nil
	}

	l := snapshot.New(f.Digest, content)
	written, err := s.out.Write(&l)
	switch {
	case errors.Is(err, snapshot.ErrMultilineContent):
		logger.Warn("skipping multiline capture", "path", f.Path)
		rep.Failures = append(rep.Failures, Failure{Path: f.Path, Err: err.Error()})
		return nil
	case err != nil:
		return fmt.Errorf("write %s store: %w", s.Shape, err)
	}
	if written {
		rep.Imported++
	} else {
		rep.Duplicates++
	}
	return nil
}
