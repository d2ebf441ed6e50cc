package snapshot

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/timestamp"
)

// sampleLines returns three records in ascending digest order.
func sampleLines(t *testing.T) []Line {
	t.Helper()
	ts := timestamp.MustParse("20160508215503")
	expected := mustSha1(t, helloHash)
	return []Line{
		New(mustSha1(t, crlfDigest), []byte("{\"data\":[]}\r\n")),
		New(mustSha1(t, flatDigest), []byte(`{"created_at":"x"}`)),
		{
			Digest:         mustSha1(t, dataDigest),
			ExpectedDigest: &expected,
			Timestamp:      &ts,
			URL:            ptr("https://twitter.com/jack/status/20"),
			Content:        []byte(`{"data":{"id":"1"}}`),
		},
	}
}

func TestWriter_Golden(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, l := range sampleLines(t) {
		written, err := w.Write(&l)
		require.NoError(t, err)
		assert.True(t, written)
	}
	require.NoError(t, w.Finish())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "store", buf.Bytes())

	report, err := ValidateLines(&buf, digest.NewShared())
	require.NoError(t, err)
	assert.True(t, report.Successful())
	assert.Equal(t, 3, report.Valid)
}

func TestWriter_DropsAdjacentDuplicates(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	lines := sampleLines(t)

	for _, l := range []Line{lines[0], lines[0], lines[1], lines[1], lines[1]} {
		_, err := w.Write(&l)
		require.NoError(t, err)
	}
	written, err := w.WriteContent(lines[1].Digest, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.False(t, written)
	require.NoError(t, w.Finish())

	assert.Equal(t, 2, w.Written())
	assert.Equal(t, 4, w.Skipped())
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestWriter_WriteContent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	written, err := w.WriteContent(mustSha1(t, dataDigest), strings.NewReader("{\"data\":{\"id\":\"1\"}}\r\r\n"))
	require.NoError(t, err)
	assert.True(t, written)
	require.NoError(t, w.Finish())

	assert.Equal(t, `{"digest":"`+dataDigest+`","content":{"data":{"id":"1"}}}`+"\n", buf.String())
}

func TestWriter_RejectsMultilineContent(t *testing.T) {
	w := NewWriter(io.Discard)
	_, err := w.WriteContent(mustSha1(t, helloHash), strings.NewReader("{\n}"))
	assert.ErrorIs(t, err, ErrMultilineContent)
	assert.Equal(t, 0, w.Written())
}

func TestStore_ZstdRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.ndjson.zst")
	lines := sampleLines(t)

	w, err := Create(path, 3)
	require.NoError(t, err)
	defer w.Abort()
	for _, l := range lines {
		_, err := w.Write(&l)
		require.NoError(t, err)
	}
	require.NoError(t, w.Finish())
	require.NoError(t, w.Abort(), "abort after finish is a no-op")
	require.FileExists(t, path)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	peeked, err := r.Peek()
	require.NoError(t, err)
	assert.Equal(t, lines[0].Digest, peeked.Digest)

	var got []Line
	for {
		l, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, l)
	}
	assert.Equal(t, lines, got)

	_, err = r.Peek()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCreate_RefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.ndjson.zst")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o644))

	_, err := Create(path, 3)
	require.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(content))
}

func TestWriter_AbortRemovesPartialStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.ndjson.zst")
	w, err := Create(path, 3)
	require.NoError(t, err)
	l := sampleLines(t)[0]
	_, err = w.Write(&l)
	require.NoError(t, err)

	require.NoError(t, w.Abort())
	assert.NoFileExists(t, path)
	assert.Error(t, w.Finish())
}

func TestReader_LineErrors(t *testing.T) {
	input := `{"digest":"` + crlfDigest + `","content":{}}` + "\n" +
		"garbage\n" +
		`{"digest":"` + flatDigest + `","content":{}}` + "\r\n"
	r := NewReader(strings.NewReader(input))

	l, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, crlfDigest, l.Digest.String())

	_, err = r.Next()
	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 2, lineErr.Line)
	var syntaxErr *SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))

	l, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, flatDigest, l.Digest.String())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
