package index

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/archivindex/internal/cdx"
	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/timestamp"
)

// Captures is the collection mapping a content digest to the capture it was
// first indexed from.
const Captures = "captures"

// Capture is the metadata recorded for a digest.
type Capture struct {
	Timestamp timestamp.Timestamp `cbor:"timestamp" json:"timestamp"`
	URL       string              `cbor:"url" json:"url"`
	MimeType  cdx.MimeType        `cbor:"mime" json:"mime"`
	Status    cdx.StatusCode      `cbor:"status" json:"status"`
}

// CaptureFromEntry extracts the indexed fields of a CDX entry.
func CaptureFromEntry(e cdx.Entry) Capture {
	return Capture{Timestamp: e.Timestamp, URL: e.Original, MimeType: e.MimeType, Status: e.StatusCode}
}

// Equal reports whether two captures describe the same snapshot.
func (c Capture) Equal(other Capture) bool {
	return c.Timestamp.Equal(other.Timestamp) && c.URL == other.URL &&
		c.MimeType == other.MimeType && c.Status == other.Status
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Deterministic encoding makes equal captures byte-identical.
	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("index: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("index: CBOR decoder initialization failed: " + err.Error())
	}
}

// PutCapture records c for d unless d is already indexed. When it is, the
// stored capture is returned as well.
func (ix *Index) PutCapture(ctx context.Context, d digest.Sha1, c Capture) (stored bool, existing Capture, err error) {
	return putCapture(ctx, ix.db, d, c)
}

func putCapture(ctx context.Context, q querier, d digest.Sha1, c Capture) (bool, Capture, error) {
	value, err := encMode.Marshal(c)
	if err != nil {
		return false, Capture{}, fmt.Errorf("encode capture %s: %w", d, err)
	}
	stored, err := put(ctx, q, Captures, d[:], value)
	if err != nil || stored {
		return stored, Capture{}, err
	}

	prev, _, err := get(ctx, q, Captures, d[:])
	if err != nil {
		return false, Capture{}, err
	}
	if bytes.Equal(prev, value) {
		return false, c, nil
	}
	var existing Capture
	if err := decMode.Unmarshal(prev, &existing); err != nil {
		return false, Capture{}, fmt.Errorf("decode capture %s: %w", d, err)
	}
	return false, existing, nil
}

// GetCapture returns the capture recorded for d.
func (ix *Index) GetCapture(ctx context.Context, d digest.Sha1) (Capture, bool, error) {
	value, ok, err := ix.Get(ctx, Captures, d[:])
	if err != nil || !ok {
		return Capture{}, ok, err
	}
	var c Capture
	if err := decMode.Unmarshal(value, &c); err != nil {
		return Capture{}, false, fmt.Errorf("decode capture %s: %w", d, err)
	}
	return c, true, nil
}

// Stats counts the outcome of indexing CDX results.
type Stats struct {
	Pages     int `json:"pages"`
	BadPages  int `json:"bad_pages"`
	Entries   int `json:"entries"`
	Added     int `json:"added"`
	Same      int `json:"same"`
	Conflicts int `json:"conflicts"`
	// InvalidDigests counts entries whose digest is not a SHA-1.
	InvalidDigests int `json:"invalid_digests"`
}

// Add folds other into s.
func (s *Stats) Add(other Stats) {
	s.Pages += other.Pages
	s.BadPages += other.BadPages
	s.Entries += other.Entries
	s.Added += other.Added
	s.Same += other.Same
	s.Conflicts += other.Conflicts
	s.InvalidDigests += other.InvalidDigests
}

// IndexEntries records every entry with a valid digest in one transaction.
// A digest seen again with different metadata is logged and counted but the
// first capture is kept.
func (ix *Index) IndexEntries(ctx context.Context, entries []cdx.Entry) (stats Stats, err error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	logger := slog.Default()
	for _, e := range entries {
		stats.Entries++
		d, ok := e.Digest.Valid()
		if !ok {
			stats.InvalidDigests++
			continue
		}

		c := CaptureFromEntry(e)
		stored, existing, err := putCapture(ctx, tx, d, c)
		switch {
		case err != nil:
			return Stats{}, err
		case stored:
			stats.Added++
		case existing.Equal(c):
			stats.Same++
		default:
			logger.Warn("multiple entries for digest",
				"digest", d,
				"kept_timestamp", existing.Timestamp,
				"kept_url", existing.URL,
				"timestamp", c.Timestamp,
				"url", c.URL,
			)
			stats.Conflicts++
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

// IndexFiles indexes every saved result page below root, newest first, so
// the most recent capture of a digest wins. Pages that fail to decode are
// logged and counted.
func (ix *Index) IndexFiles(ctx context.Context, root string) (Stats, error) {
	paths, err := cdx.Files(root)
	if err != nil {
		return Stats{}, err
	}

	var total Stats
	for _, path := range paths {
		list, err := cdx.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable result page", "path", path, "error", err)
			total.BadPages++
			continue
		}

		stats, err := ix.IndexEntries(ctx, list.Entries)
		if err != nil {
			return total, fmt.Errorf("%s: %w", path, err)
		}
		stats.Pages = 1
		total.Add(stats)
	}

	slog.Info("indexed result pages",
		"pages", total.Pages,
		"bad_pages", total.BadPages,
		"entries", total.Entries,
		"added", total.Added,
		"conflicts", total.Conflicts,
	)
	return total, nil
}
