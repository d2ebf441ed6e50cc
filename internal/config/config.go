// Package config loads merge job files.
//
// A job file is YAML. It is checked against an embedded CUE schema before it
// is decoded, so out-of-range values and unknown fields are reported with
// their field path.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/archivindex/internal/merge"
	"github.com/roach88/archivindex/internal/snapshot"
)

//go:embed schema.cue
var schemaCUE string

// Job describes one merge run.
type Job struct {
	// CompressionLevel is the zstd level for new stores.
	CompressionLevel int `yaml:"compression_level"`
	// Validate re-hashes every capture file during import.
	Validate *bool             `yaml:"validate"`
	CAS      []string          `yaml:"cas"`
	Stores   []merge.StoreSpec `yaml:"stores"`
	Shapes   []merge.Shape     `yaml:"shapes"`
}

// Error reports a job file that cannot be used.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid job: %v", e.Err)
	}
	return fmt.Sprintf("invalid job %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads the job file at path. Relative CAS and store paths are resolved
// against the directory holding the file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	job, err := Parse(data, filepath.Dir(path))
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Path = path
		}
		return nil, err
	}
	return job, nil
}

// Parse validates and decodes a job, resolving relative paths against dir.
func Parse(data []byte, dir string) (*Job, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Err: err}
	}
	if err := checkSchema(raw); err != nil {
		return nil, &Error{Err: err}
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, &Error{Err: err}
	}
	job.applyDefaults()
	job.resolve(dir)

	if err := job.check(); err != nil {
		return nil, &Error{Err: err}
	}
	return &job, nil
}

func checkSchema(raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return err
	}
	unified := schema.LookupPath(cue.ParsePath("#Job")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", cueerrors.Details(err, nil))
	}
	return nil
}

func (j *Job) applyDefaults() {
	if j.CompressionLevel == 0 {
		j.CompressionLevel = snapshot.DefaultCompressionLevel
	}
	if j.Validate == nil {
		validate := true
		j.Validate = &validate
	}
}

func (j *Job) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range j.CAS {
		j.CAS[i] = abs(j.CAS[i])
	}
	for i := range j.Stores {
		j.Stores[i].Input = abs(j.Stores[i].Input)
		j.Stores[i].Output = abs(j.Stores[i].Output)
	}
}

// check enforces the cross-field rules the schema cannot express.
func (j *Job) check() error {
	shapes := j.ShapeSet()
	if err := shapes.Validate(); err != nil {
		return err
	}

	known := make(map[string]bool, len(shapes))
	for _, s := range shapes {
		known[s.Name] = true
	}
	seen := make(map[string]bool, len(j.Stores))
	outputs := make(map[string]bool, len(j.Stores))
	for _, s := range j.Stores {
		if !known[s.Shape] {
			return fmt.Errorf("store for unknown shape %q", s.Shape)
		}
		if seen[s.Shape] {
			return fmt.Errorf("shape %q has more than one store", s.Shape)
		}
		seen[s.Shape] = true
		if outputs[s.Output] || s.Output == s.Input {
			return fmt.Errorf("output %s is used twice", s.Output)
		}
		outputs[s.Output] = true
	}
	return nil
}

// ShapeSet returns the default shapes extended by the job's shapes.
func (j *Job) ShapeSet() merge.Shapes {
	return merge.DefaultShapes.With(j.Shapes...)
}

// ValidateFiles reports whether capture files are re-hashed during import.
func (j *Job) ValidateFiles() bool {
	return j.Validate == nil || *j.Validate
}
