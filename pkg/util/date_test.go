package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("not a time", def).Equal(def))
}

func TestDayPath(t *testing.T) {
	ts := time.Date(2025, 1, 2, 23, 0, 0, 0, time.FixedZone("X", -3*3600))
	assert.Equal(t, "2025/01/03", DayPath(ts))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", ""}, SplitLines("a\r\nb\n"))
	assert.Equal(t, "a\nb", JoinLines([]string{"a", "b"}))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
}
