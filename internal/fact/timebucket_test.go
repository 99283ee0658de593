package fact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketWeek(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"mid year", time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), "2026-W35"},
		{"same week later day", time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC), "2026-W35"},
		{"iso year rollover", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-W01"},
		{"single digit week padded", time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC), "2026-W02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bucket(tt.in, BucketWeek))
		})
	}
}

func TestBucketDayAndMonth(t *testing.T) {
	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-28", Bucket(ts, BucketDay))
	assert.Equal(t, "2026-08", Bucket(ts, BucketMonth))
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, BucketWeek, g)

	g, err = ParseGranularity("day")
	require.NoError(t, err)
	assert.Equal(t, BucketDay, g)

	_, err = ParseGranularity("fortnight")
	assert.Error(t, err)
}
