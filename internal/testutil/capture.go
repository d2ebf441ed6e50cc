package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivindex/internal/digest"
)

// CaptureDir builds a content-addressed capture directory for tests.
type CaptureDir struct {
	t    testing.TB
	Root string
}

// NewCaptureDir creates an empty capture directory under t.TempDir().
func NewCaptureDir(t testing.TB) *CaptureDir {
	t.Helper()
	return &CaptureDir{t: t, Root: t.TempDir()}
}

// Add stores content under its digest in subdir. ext selects the encoding:
// "" for plain, ".zst" or ".gz".
func (c *CaptureDir) Add(subdir, content, ext string) digest.Sha1 {
	c.t.Helper()
	d, err := digest.Compute(bytes.NewReader([]byte(content)))
	require.NoError(c.t, err)
	c.Write(filepath.Join(subdir, d.String()+ext), Encode(c.t, []byte(content), ext))
	return d
}

// Write places raw bytes at a path relative to Root, creating parents.
func (c *CaptureDir) Write(rel string, data []byte) string {
	c.t.Helper()
	path := filepath.Join(c.Root, rel)
	require.NoError(c.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(c.t, os.WriteFile(path, data, 0o644))
	return path
}

// Encode compresses data according to ext.
func Encode(t testing.TB, data []byte, ext string) []byte {
	t.Helper()
	switch ext {
	case ".zst", ".ZST":
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		defer enc.Close()
		return enc.EncodeAll(data, nil)
	case ".gz", ".GZ":
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		_, err := gw.Write(data)
		require.NoError(t, err)
		require.NoError(t, gw.Close())
		return buf.Bytes()
	default:
		return data
	}
}
