package timestamp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	for _, s := range []string{"20160508215503", "19960101000000", "20231231235959"} {
		ts, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, ts.String())
	}
}

func TestParse_Fields(t *testing.T) {
	ts, err := Parse("20160508215503")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 5, 8, 21, 55, 3, 0, time.UTC), ts.Time())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too short", "2016050821550"},
		{"too long", "201605082155030"},
		{"empty", ""},
		{"letters", "2016O508215503"},
		{"sign", "+016050821550X"},
		{"month out of range", "20161308215503"},
		{"day out of range", "20160231215503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var tsErr *Error
			require.True(t, errors.As(err, &tsErr))
			assert.Equal(t, tt.input, tsErr.Value)
		})
	}
}

func TestFromTime_RejectsSubsecond(t *testing.T) {
	_, err := FromTime(time.Date(2020, 1, 2, 3, 4, 5, 1, time.UTC))
	require.Error(t, err)

	ts, err := FromTime(time.Date(2020, 1, 2, 3, 4, 5, 0, time.FixedZone("EST", -5*3600)))
	require.NoError(t, err)
	assert.Equal(t, "20200102080405", ts.String())
}

func TestUnix_RoundTrip(t *testing.T) {
	ts, err := FromUnix(1462744503)
	require.NoError(t, err)
	assert.Equal(t, "20160508215503", ts.String())
	assert.Equal(t, int64(1462744503), ts.Unix())
	assert.True(t, ts.Equal(MustParse("20160508215503")))
}

func TestCompare(t *testing.T) {
	a := MustParse("20160508215503")
	b := MustParse("20160508215504")
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}
