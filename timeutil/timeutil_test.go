package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration_Units(t *testing.T) {
	cases := map[string]time.Duration{
		"30s":  30 * time.Second,
		"5m":   5 * time.Minute,
		"2h":   2 * time.Hour,
		"1d":   24 * time.Hour,
		"500ms": 500 * time.Millisecond,
		"0s":   0,
	}

	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, in := range []string{"", "s", "10", "10x", "-5s"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}
}

func TestParseTimestamp_RFC3339(t *testing.T) {
	got, err := ParseTimestamp("2022-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2022, got.Year())
}

func TestParseTimestamp_MillisecondPrecision(t *testing.T) {
	got, err := ParseTimestamp("2022-01-01T00:00:00.123456789Z")
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestParseTimestamp_Invalid(t *testing.T) {
	_, err := ParseTimestamp("")
	assert.Error(t, err)

	_, err = ParseTimestamp("not-a-timestamp")
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	a := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(25 * time.Second)

	assert.Equal(t, 25*time.Second, Distance(a, b))
	assert.Equal(t, 25*time.Second, Distance(b, a))
}

func TestEarliestLatest(t *testing.T) {
	a := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Second)

	assert.Equal(t, a, Earliest(a, b))
	assert.Equal(t, a, Earliest(b, a))
	assert.Equal(t, b, Latest(a, b))
	assert.Equal(t, b, Latest(b, a))
}
