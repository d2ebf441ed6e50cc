package merge

import (
	"bytes"
	"fmt"
)

// Shape names a payload layout recognized by a literal prefix.
type Shape struct {
	Name   string `yaml:"name" json:"name"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Shapes is an ordered, closed set of recognized payload layouts. A payload
// matching none of them is dropped, so a new upstream layout must be added
// here (or in job configuration) before its captures can be merged.
type Shapes []Shape

// DefaultShapes are the two tweet payload layouts.
var DefaultShapes = Shapes{
	{Name: "data", Prefix: `{"data":`},
	{Name: "flat", Prefix: `{"created_at":`},
}

// Classify returns the first shape whose prefix starts content.
func (s Shapes) Classify(content []byte) (Shape, bool) {
	for _, shape := range s {
		if bytes.HasPrefix(content, []byte(shape.Prefix)) {
			return shape, true
		}
	}
	return Shape{}, false
}

// With returns s extended by extra. An extra shape whose name already exists
// replaces the earlier prefix in place.
func (s Shapes) With(extra ...Shape) Shapes {
	out := append(Shapes{}, s...)
	for _, e := range extra {
		replaced := false
		for i := range out {
			if out[i].Name == e.Name {
				out[i] = e
				replaced = true
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}

// Validate rejects empty names or prefixes and duplicate names.
func (s Shapes) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, shape := range s {
		if shape.Name == "" || shape.Prefix == "" {
			return fmt.Errorf("shape %q: name and prefix are required", shape.Name)
		}
		if seen[shape.Name] {
			return fmt.Errorf("shape %q defined twice", shape.Name)
		}
		seen[shape.Name] = true
	}
	return nil
}
