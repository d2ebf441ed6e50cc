package snapshot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/timestamp"
)

const (
	dataDigest = "4E4ITULNEWB4W4BFE6MGMVBTGO6NPZVQ" // {"data":{"id":"1"}}\r\r\n
	flatDigest = "QXHWWXR5NDPFTKQUJEXYTHY3BXFACFKN" // {"created_at":"x"}
	crlfDigest = "L2C3SE3ZXEHYX5ZAHPKBD2I2IXWWAAGG" // {"data":[]}\r\n
	helloHash  = "VL2MMHO4YXUKFWV63YHTWSBM3GXKSQ2N"
)

func mustSha1(t *testing.T, s string) digest.Sha1 {
	t.Helper()
	d, err := digest.ParseSha1(s)
	require.NoError(t, err)
	return d
}

func ptr[T any](v T) *T {
	return &v
}

func TestNew_ClosingWhitespace(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		content string
		stored  []byte
		trailer string
	}{
		{"default trailer", "{\"data\":{\"id\":\"1\"}}\r\r\n", `{"data":{"id":"1"}}`, nil, "\r\r\n"},
		{"no trailer", `{"created_at":"x"}`, `{"created_at":"x"}`, []byte{}, ""},
		{"crlf", "{\"data\":[]}\r\n", `{"data":[]}`, []byte("\r\n"), "\r\n"},
		{"longer run", "{}\n\r\r\n", `{}`, []byte("\n\r\r\n"), "\n\r\r\n"},
		{"only whitespace", "\r\n", ``, []byte("\r\n"), "\r\n"},
		{"only default trailer", "\r\r\n", ``, []byte("\r\r\n"), "\r\r\n"},
		{"empty", "", ``, []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(digest.Sha1{}, []byte(tt.raw))
			assert.Equal(t, tt.content, string(l.Content))
			assert.Equal(t, tt.stored, l.ClosingWhitespace)
			assert.Equal(t, tt.trailer, string(l.Trailer()))
			assert.Equal(t, tt.raw, string(l.Raw()))
		})
	}
}

func TestLine_Validate(t *testing.T) {
	h := digest.NewHasher()

	l := New(mustSha1(t, dataDigest), []byte("{\"data\":{\"id\":\"1\"}}\r\r\n"))
	require.NoError(t, l.Validate(h))
	// Repeated validation with the same hasher gives the same answer.
	require.NoError(t, l.Validate(h))

	l.Digest = mustSha1(t, helloHash)
	err := l.Validate(h)
	var mismatch *digest.MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, helloHash, mismatch.Expected.String())
	assert.Equal(t, dataDigest, mismatch.Found.String())
}

func TestLine_RoundTrip(t *testing.T) {
	ts := timestamp.MustParse("20160508215503")
	expected := mustSha1(t, helloHash)

	// Every combination of the optional fields, each present or absent.
	const (
		withExpected = 1 << iota
		withWhitespace
		withTimestamp
		withURL
		allFields
	)
	for mask := 0; mask < allFields; mask++ {
		for _, content := range []string{`{"data":[]}`, ``} {
			l := Line{Digest: mustSha1(t, crlfDigest), Content: []byte(content)}
			if mask&withExpected != 0 {
				l.ExpectedDigest = &expected
			}
			if mask&withWhitespace != 0 {
				l.ClosingWhitespace = []byte("\r\n")
			}
			if mask&withTimestamp != 0 {
				l.Timestamp = &ts
			}
			if mask&withURL != 0 {
				l.URL = ptr("https://twitter.com/jack/status/20?a=b&c")
			}

			t.Run(fmt.Sprintf("fields=%04b/content=%d", mask, len(content)), func(t *testing.T) {
				text, err := l.MarshalText()
				require.NoError(t, err)
				parsed, err := Parse(text)
				require.NoError(t, err)
				assert.Equal(t, l, parsed)
			})
		}
	}
}

func TestLine_RoundTripWhitespace(t *testing.T) {
	for _, ws := range [][]byte{{}, []byte("\n"), []byte("\r\r\n"), []byte("\n\r\r\n")} {
		t.Run(fmt.Sprintf("%q", ws), func(t *testing.T) {
			l := Line{Digest: mustSha1(t, crlfDigest), ClosingWhitespace: ws, Content: []byte(`{"data":[]}`)}
			text, err := l.MarshalText()
			require.NoError(t, err)
			parsed, err := Parse(text)
			require.NoError(t, err)
			assert.Equal(t, l, parsed)
		})
	}
}

func TestLine_AppendTextFieldOrder(t *testing.T) {
	ts := timestamp.MustParse("20160508215503")
	expected := mustSha1(t, helloHash)
	l := Line{
		Digest:            mustSha1(t, dataDigest),
		ExpectedDigest:    &expected,
		ClosingWhitespace: []byte("\r\n"),
		Timestamp:         &ts,
		URL:               ptr("https://twitter.com/"),
		Content:           []byte(`{"data":1}`),
	}
	want := `{"digest":"` + dataDigest + `","expected_digest":"` + helloHash +
		`","closing_whitespace":"\r\n","timestamp":"20160508215503","url":"https://twitter.com/","content":{"data":1}}`
	assert.Equal(t, want, l.String())
}

func TestLine_AppendTextErrors(t *testing.T) {
	tests := []struct {
		name string
		line Line
		err  error
	}{
		{"multiline content", Line{Content: []byte("{\n}")}, ErrMultilineContent},
		{"quote in url", Line{URL: ptr(`a"b`), Content: []byte("{}")}, ErrInvalidURL},
		{"newline in url", Line{URL: ptr("a\nb"), Content: []byte("{}")}, ErrInvalidURL},
		{"tab whitespace", Line{ClosingWhitespace: []byte("\t"), Content: []byte("{}")}, ErrInvalidClosingWhitespace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.line.MarshalText()
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParse_ContentIsVerbatim(t *testing.T) {
	// Content is not reformatted, even when it is not canonical JSON.
	text := `{"digest":"` + dataDigest + `","content":{ "b" : 1,"a":[ ] }}`
	l, err := Parse([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, `{ "b" : 1,"a":[ ] }`, string(l.Content))
	assert.Nil(t, l.ClosingWhitespace)
	assert.Equal(t, text, l.String())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		offset int
	}{
		{"empty", ``, 0},
		{"not a record", `{"data":{}}`, 0},
		{"short digest", `{"digest":"ABC","content":{}}`, 11},
		{"bad digest", `{"digest":"` + dataDigest[:31] + `1","content":{}}`, 11},
		{"missing content", `{"digest":"` + dataDigest + `"}`, 44},
		{"fields out of order", `{"digest":"` + dataDigest + `","url":"x","timestamp":"20160508215503","content":{}}`, 54},
		{"bad timestamp", `{"digest":"` + dataDigest + `","timestamp":"2016050821550x","content":{}}`, 58},
		{"bad whitespace escape", `{"digest":"` + dataDigest + `","closing_whitespace":"\t","content":{}}`, 67},
		{"unterminated url", `{"digest":"` + dataDigest + `","url":"abc`, 52},
		{"missing brace", `{"digest":"` + dataDigest + `","content":[1]`, 58},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.line))
			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr), "got %v", err)
			assert.Equal(t, tt.offset, syntaxErr.Offset)
		})
	}
}
