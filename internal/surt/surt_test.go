package surt

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"com,twitter)/farleftwatch/status/999825423977639936",
		"com,twitter)",
		"com,twitter,mobile)/i/web/status/1?lang=en",
		"org,archive-it)/",
		"de,xn--bcher-kva)/x",
	}

	for _, input := range inputs {
		k, err := Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, input, k.String())
	}
}

func TestParse_Labels(t *testing.T) {
	k := MustParse("com,twitter)/farleftwatch/status/999825423977639936")

	assert.Equal(t, 2, k.Len())
	assert.Equal(t, []string{"com", "twitter"}, slices.Collect(k.Labels()))
	assert.Equal(t, []string{"twitter", "com"}, slices.Collect(k.Backward()))
	assert.Equal(t, "/farleftwatch/status/999825423977639936", k.Path())
	assert.Equal(t, "twitter.com", k.Host())

	// Sequences restart from the beginning on each use.
	assert.Equal(t, slices.Collect(k.Labels()), slices.Collect(k.Labels()))
}

func TestParse_LabelsStopEarly(t *testing.T) {
	k := MustParse("com,twitter,mobile)/x")

	var first string
	for label := range k.Backward() {
		first = label
		break
	}
	assert.Equal(t, "mobile", first)
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"com,twitter)/farleftwatch/status/999825423977639936", "https://twitter.com/farleftwatch/status/999825423977639936"},
		{"com,twitter,mobile)/x", "https://mobile.twitter.com/x"},
		{"com,twitter)", "https://twitter.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MustParse(tt.input).CanonicalURL())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{"missing close", "com,twitter", 11},
		{"empty", "", 0},
		{"empty label", "com,,twitter)/", 4},
		{"leading comma", ",com)/", 0},
		{"bad character", "com,twit_ter)/", 8},
		{"path before close", "com,twitter/x)", 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, tt.input, syntaxErr.Input)
			assert.Equal(t, tt.offset, syntaxErr.Offset)
		})
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trailing slash", "https://twitter.com/RichardBSpencer/", "com,twitter)/richardbspencer"},
		{"www dropped", "http://www.twitter.com/foo", "com,twitter)/foo"},
		{"root", "https://twitter.com/", "com,twitter)"},
		{"no path", "https://twitter.com", "com,twitter)"},
		{"default port", "https://twitter.com:443/a", "com,twitter)/a"},
		{"subdomain", "https://mobile.twitter.com/x", "com,twitter,mobile)/x"},
		{"doubled slash", "https://twitter.com/a//b", "com,twitter)/a/b"},
		{"dot segments", "https://example.com/a/../b/./c", "com,example)/b/c"},
		{"fragment", "https://example.com/a#frag", "com,example)/a"},
		{"unescaped quote", "https://twitter.com/a%22b", `com,twitter)/a"b`},
		{"unescaped brackets", "https://example.com/%3Cb%3E", "com,example)/<b>"},
		{"raw brackets stay escaped", "https://example.com/<b>", "com,example)/%3Cb%3E"},
		{"sorted query", "https://twitter.com/search?q=a+b&f=live", "com,twitter)/search?f=live&q=a+b"},
		{"empty value", "https://twitter.com/x?b=&a=1", "com,twitter)/x?a=1&b"},
		{"stable ties", "https://twitter.com/x?b=2&a=x&b=1", "com,twitter)/x?a=x&b=2&b=1"},
		{"plus in value", "https://example.com/?q=%2B", "com,example)?q=%20"},
		{"caret in value", "https://example.com/?q=%255E", "com,example)?q=^"},
		{"empty query", "https://example.com/x?", "com,example)/x"},
		{"idn host", "https://bücher.de/x", "de,xn--bcher-kva)/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := FromURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, k.String())

			reparsed, err := Parse(k.String())
			require.NoError(t, err)
			assert.True(t, reparsed.Equal(k))
			assert.Equal(t, k.Len(), reparsed.Len())
		})
	}
}

func TestFromURL_MatchesParsedKey(t *testing.T) {
	k, err := FromURL("https://twitter.com/RichardBSpencer/")
	require.NoError(t, err)
	assert.Equal(t, MustParse("com,twitter)/richardbspencer"), k)
}

func TestFromURL_Errors(t *testing.T) {
	inputs := []string{
		"ftp://twitter.com/a",
		"twitter.com/a",
		"https://twitter.com:8080/a",
		"http://127.0.0.1/",
		"http://[::1]/",
		"https://www/",
		"https://under_score.com/",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := FromURL(input)
			var urlErr *URLError
			require.True(t, errors.As(err, &urlErr), "expected URLError, got %v", err)
			assert.Equal(t, input, urlErr.URL)
		})
	}
}

func TestCompare(t *testing.T) {
	a := MustParse("com,twitter)/a")
	b := MustParse("com,twitter)/b")
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 0, a.Compare(a))
}
