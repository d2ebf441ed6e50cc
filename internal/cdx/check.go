package cdx

import "github.com/roach88/archivindex/internal/surt"

// KeyMismatch is an entry whose key differs from the SURT computed from its
// original URL.
type KeyMismatch struct {
	Original string `json:"original"`
	Key      string `json:"key"`
	Computed string `json:"computed,omitempty"`
	Err      string `json:"error,omitempty"`
}

// KeyCheck counts the outcome of CheckKeys.
type KeyCheck struct {
	Good int           `json:"good"`
	Bad  []KeyMismatch `json:"bad"`
}

// Add folds other into c.
func (c *KeyCheck) Add(other KeyCheck) {
	c.Good += other.Good
	c.Bad = append(c.Bad, other.Bad...)
}

// CheckKeys recomputes the key of every application/json entry from its
// original URL and compares it with the key the index reported. Other MIME
// types are not checked: their originals are often not canonical.
func CheckKeys(entries []Entry) KeyCheck {
	check := KeyCheck{Bad: []KeyMismatch{}}
	for _, e := range entries {
		if e.MimeType.Kind() != MimeApplicationJSON {
			continue
		}
		computed, err := surt.FromURL(e.Original)
		switch {
		case err != nil:
			check.Bad = append(check.Bad, KeyMismatch{Original: e.Original, Key: e.Key.String(), Err: err.Error()})
		case !computed.Equal(e.Key):
			check.Bad = append(check.Bad, KeyMismatch{Original: e.Original, Key: e.Key.String(), Computed: computed.String()})
		default:
			check.Good++
		}
	}
	return check
}
