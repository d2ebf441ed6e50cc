package testutil

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivindex/internal/snapshot"
)

// WriteStore writes a compressed snapshot store at path holding lines in the
// given order.
func WriteStore(t testing.TB, path string, lines ...snapshot.Line) {
	t.Helper()
	w, err := snapshot.Create(path, 3)
	require.NoError(t, err)
	defer w.Abort()
	for _, l := range lines {
		_, err := w.Write(&l)
		require.NoError(t, err)
	}
	require.NoError(t, w.Finish())
}

// ReadStore returns the decompressed records of the store at path, one
// string per line.
func ReadStore(t testing.TB, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
