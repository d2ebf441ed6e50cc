package cdx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivindex/internal/surt"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func compact(t *testing.T, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.Compact(&buf, data))
	return buf.String()
}

func TestDecodeJSON_Empty(t *testing.T) {
	list, err := DecodeJSON(strings.NewReader("[]"))
	require.NoError(t, err)

	assert.Empty(t, list.Entries)
	assert.NotNil(t, list.Entries)
	assert.Nil(t, list.ResumeKey)
	assert.Equal(t, SchemaNone, list.Schema)
}

func TestDecodeJSON_HeaderOnlyWithResumeKey(t *testing.T) {
	input := `[["urlkey","timestamp","original","mimetype","statuscode","digest","redirect","robotflags","length","offset","filename"],[],["abc"]]`

	list, err := DecodeJSON(strings.NewReader(input))
	require.NoError(t, err)

	assert.Empty(t, list.Entries)
	require.NotNil(t, list.ResumeKey)
	assert.Equal(t, "abc", *list.ResumeKey)
	assert.Equal(t, SchemaExtended, list.Schema)
}

func TestDecodeJSON_HeaderOnly(t *testing.T) {
	list, err := DecodeJSON(strings.NewReader(`[["urlkey","timestamp","original","mimetype","statuscode","digest","length"]]`))
	require.NoError(t, err)
	assert.Empty(t, list.Entries)
	assert.Nil(t, list.ResumeKey)
	assert.Equal(t, SchemaShort, list.Schema)
}

func TestDecodeJSON_Short(t *testing.T) {
	list, err := DecodeJSON(bytes.NewReader(readFixture(t, "short.json")))
	require.NoError(t, err)

	require.Len(t, list.Entries, 3)
	require.NotNil(t, list.ResumeKey)
	assert.Equal(t, "eJwNxzEOgCAMAMCvuJqYtKViy3MIdGAgGqj6fb3tytk3f5u7jRVKvrw9VoflbkNgevZ7Amkilj0xBoqKCVWWgCH-FTyYWD9RQxSp", *list.ResumeKey)

	first := list.Entries[0]
	assert.Equal(t, "com,twitter)/farleftwatch/status/999825423977639936", first.Key.String())
	assert.Equal(t, "20180525003032", first.Timestamp.String())
	assert.Equal(t, TextHTML, first.MimeType)
	assert.Equal(t, StatusOK, first.StatusCode)
	assert.True(t, first.Digest.IsValid())
	require.NotNil(t, first.Length)
	assert.Equal(t, uint32(9423), *first.Length)
	assert.Nil(t, first.Extended)

	second := list.Entries[1]
	assert.Equal(t, ApplicationJSON, second.MimeType)
	assert.Equal(t, StatusEmpty, second.StatusCode)
	assert.Nil(t, second.Length)

	third := list.Entries[2]
	assert.False(t, third.Digest.IsValid())
	assert.Equal(t, "not-sha1-shaped", third.Digest.String())
	assert.Equal(t, StatusMovedPermanently, third.StatusCode)
}

func TestDecodeJSON_Extended(t *testing.T) {
	list, err := DecodeJSON(bytes.NewReader(readFixture(t, "extended.json")))
	require.NoError(t, err)

	require.Len(t, list.Entries, 2)
	assert.Nil(t, list.ResumeKey)

	first := list.Entries[0]
	require.NotNil(t, first.Extended)
	assert.Nil(t, first.Extended.Redirect)
	assert.Nil(t, first.Extended.RobotFlags)
	assert.Equal(t, uint64(772330519), first.Extended.Offset)
	assert.Equal(t, "WEB-20160508214720178-00040-2383~wwwb-app200.us.archive.org~8443.warc.gz", first.Extended.FileName)
	require.NotNil(t, first.Length)
	assert.Equal(t, uint32(18839), *first.Length)

	second := list.Entries[1]
	require.NotNil(t, second.Extended.Redirect)
	assert.Equal(t, "https://twitter.com/login", *second.Extended.Redirect)
	require.NotNil(t, second.Extended.RobotFlags)
	assert.Equal(t, "noarchive", *second.Extended.RobotFlags)
	assert.Nil(t, second.Length)
	assert.Equal(t, MimeOther, second.MimeType.Kind())
}

func TestList_MarshalJSONRoundTrip(t *testing.T) {
	for _, name := range []string{"short.json", "extended.json"} {
		t.Run(name, func(t *testing.T) {
			data := readFixture(t, name)
			list, err := DecodeJSON(bytes.NewReader(data))
			require.NoError(t, err)

			out, err := list.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, compact(t, data), string(out))
		})
	}

	out, err := List{}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestDecode_PreservesRowOrder(t *testing.T) {
	list, err := DecodeJSON(bytes.NewReader(readFixture(t, "short.json")))
	require.NoError(t, err)

	var keys []string
	for _, e := range list.Entries {
		keys = append(keys, e.Key.String())
	}
	assert.Equal(t, []string{
		"com,twitter)/farleftwatch/status/999825423977639936",
		"com,twitter)/i/web/status/999825423977639936",
		"com,twitter)/richardbspencer",
	}, keys)

	list.Entries[0], list.Entries[2] = list.Entries[2], list.Entries[0]
	list.SortEntries()
	assert.Equal(t, "com,twitter)/farleftwatch/status/999825423977639936", list.Entries[0].Key.String())
}

func TestDecode_Errors(t *testing.T) {
	short := []string{"urlkey", "timestamp", "original", "mimetype", "statuscode", "digest", "length"}
	row := func(cols ...string) []string { return cols }
	good := row("com,twitter)/x", "20160508215503", "https://twitter.com/x", "text/html", "200", "-", "-")

	tests := []struct {
		name  string
		rows  [][]string
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown header",
			rows: [][]string{{"urlkey", "timestamp"}},
			check: func(t *testing.T, err error) {
				var headerErr *HeaderError
				assert.True(t, errors.As(err, &headerErr))
			},
		},
		{
			name: "reordered header",
			rows: [][]string{{"timestamp", "urlkey", "original", "mimetype", "statuscode", "digest", "length"}},
			check: func(t *testing.T, err error) {
				var headerErr *HeaderError
				assert.True(t, errors.As(err, &headerErr))
			},
		},
		{
			name: "extended row under short header",
			rows: [][]string{short, good, row("com,twitter)/x", "20160508215503", "u", "text/html", "200", "-", "-", "-", "1", "2", "f")},
			check: func(t *testing.T, err error) {
				var lengthErr *RowLengthError
				require.True(t, errors.As(err, &lengthErr))
				assert.Equal(t, 2, lengthErr.Row)
				assert.Equal(t, 7, lengthErr.Want)
				assert.Equal(t, 11, lengthErr.Got)
			},
		},
		{
			name: "bad key",
			rows: [][]string{short, row("com twitter)/x", "20160508215503", "u", "text/html", "200", "-", "-")},
			check: func(t *testing.T, err error) {
				var fieldErr *FieldError
				require.True(t, errors.As(err, &fieldErr))
				assert.Equal(t, "urlkey", fieldErr.Column)
				var syntaxErr *surt.SyntaxError
				assert.True(t, errors.As(err, &syntaxErr))
			},
		},
		{
			name: "bad timestamp",
			rows: [][]string{short, row("com,twitter)/x", "2016", "u", "text/html", "200", "-", "-")},
			check: func(t *testing.T, err error) {
				var fieldErr *FieldError
				require.True(t, errors.As(err, &fieldErr))
				assert.Equal(t, "timestamp", fieldErr.Column)
				assert.Equal(t, "2016", fieldErr.Value)
			},
		},
		{
			name: "unknown status",
			rows: [][]string{short, row("com,twitter)/x", "20160508215503", "u", "text/html", "418", "-", "-")},
			check: func(t *testing.T, err error) {
				var statusErr *StatusCodeError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, "418", statusErr.Text)
			},
		},
		{
			name: "bad length",
			rows: [][]string{short, row("com,twitter)/x", "20160508215503", "u", "text/html", "200", "-", "4294967296")},
			check: func(t *testing.T, err error) {
				var fieldErr *FieldError
				require.True(t, errors.As(err, &fieldErr))
				assert.Equal(t, "length", fieldErr.Column)
			},
		},
		{
			name: "sentinel without key",
			rows: [][]string{short, good, {}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingResumeKey)
			},
		},
		{
			name: "wide key row",
			rows: [][]string{short, {}, {"a", "b"}},
			check: func(t *testing.T, err error) {
				var keyErr *ResumeKeyError
				assert.True(t, errors.As(err, &keyErr))
			},
		},
		{
			name: "row after key",
			rows: [][]string{short, {}, {"key"}, good},
			check: func(t *testing.T, err error) {
				var trailingErr *TrailingRowError
				require.True(t, errors.As(err, &trailingErr))
				assert.Equal(t, good, trailingErr.Row)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(NewSliceRows(tt.rows))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestDecoder_ErrorIsSticky(t *testing.T) {
	d := NewDecoder(NewSliceRows([][]string{{"bogus"}}))

	_, err := d.Next()
	require.Error(t, err)
	_, again := d.Next()
	assert.Equal(t, err, again)
}

func TestDecoder_Pull(t *testing.T) {
	d := NewDecoder(NewJSONRows(bytes.NewReader(readFixture(t, "short.json"))))

	count := 0
	for {
		_, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, SchemaShort, d.Schema())
	key, ok := d.ResumeKey()
	assert.True(t, ok)
	assert.NotEmpty(t, key)
}

func TestJSONRows_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`{}`,
		`[["a", 1]]`,
		`[["a"]`,
		`[["a"]] []`,
		`["a"]`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			rows := NewJSONRows(strings.NewReader(input))
			var err error
			for err == nil {
				_, err = rows.ReadRow()
			}
			var jsonErr *JSONError
			assert.True(t, errors.As(err, &jsonErr), "got %v", err)
		})
	}
}
