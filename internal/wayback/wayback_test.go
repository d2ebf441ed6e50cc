package wayback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivindex/internal/timestamp"
)

const tweetCapture = "https://web.archive.org/web/20160508215503/https://twitter.com/roman_dmowski99/status/725877225686454272"

func TestParseURL(t *testing.T) {
	c, err := ParseURL(tweetCapture)
	require.NoError(t, err)

	assert.Equal(t, "https://twitter.com/roman_dmowski99/status/725877225686454272", c.URL)
	assert.Equal(t, "20160508215503", c.Timestamp.String())
}

func TestParseURL_OriginalModifier(t *testing.T) {
	c, err := ParseURL("http://web.archive.org/web/20160508215503id_/https://twitter.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://twitter.com/x", c.URL)
}

func TestWaybackURL_RoundTrip(t *testing.T) {
	c := Capture{URL: "https://twitter.com/x", Timestamp: timestamp.MustParse("20160508215503")}

	assert.Equal(t, "https://web.archive.org/web/20160508215503/https://twitter.com/x", c.WaybackURL(true, false))
	assert.Equal(t, "http://web.archive.org/web/20160508215503id_/https://twitter.com/x", c.WaybackURL(false, true))

	for _, https := range []bool{true, false} {
		for _, original := range []bool{true, false} {
			parsed, err := ParseURL(c.WaybackURL(https, original))
			require.NoError(t, err)
			assert.Equal(t, 0, c.Compare(parsed))
		}
	}
}

func TestParseURL_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		timestamp bool
	}{
		{"bad scheme", "http:s://web.archive.org/web/20160508215503/https://twitter.com/x", false},
		{"other scheme", "ftp://web.archive.org/web/20160508215503/https://twitter.com/x", false},
		{"other host", "https://example.org/web/20160508215503/https://twitter.com/x", false},
		{"short timestamp", "https://web.archive.org/web/2016050821550/https://twitter.com/x", false},
		{"no url", "https://web.archive.org/web/20160508215503/", false},
		{"impossible date", "https://web.archive.org/web/20161399215503/https://twitter.com/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.input)
			var urlErr *URLError
			require.True(t, errors.As(err, &urlErr))
			var tsErr *timestamp.Error
			assert.Equal(t, tt.timestamp, errors.As(err, &tsErr))
		})
	}
}
