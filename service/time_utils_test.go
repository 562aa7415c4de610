package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayIndexAt(t *testing.T) {
	t.Parallel()

	epoch := time.Unix(0, 0).UTC()
	day := 24 * time.Hour

	tests := []struct {
		name     string
		at       time.Time
		expected int64
	}{
		{"epoch", epoch, 0},
		{"one second before first rollover", epoch.Add(day - time.Second), 0},
		{"first rollover", epoch.Add(day), 1},
		{"before epoch clamps to zero", epoch.Add(-time.Hour), 0},
		{"calendar date", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), 20089},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DayIndexAt(tt.at, epoch, day))
		})
	}
}

func TestDayStart(t *testing.T) {
	t.Parallel()

	epoch := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, epoch, DayStart(0, epoch, time.Hour))
	assert.Equal(t, epoch.Add(5*time.Hour), DayStart(5, epoch, time.Hour))

	// Round trip
	at := epoch.Add(7*time.Hour + 30*time.Minute)
	assert.Equal(t, epoch.Add(7*time.Hour), DayStart(DayIndexAt(at, epoch, time.Hour), epoch, time.Hour))
}

func TestGetNextRunTime(t *testing.T) {
	t.Parallel()

	morning := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), GetNextRunTime(morning, 9))
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), GetNextRunTime(morning, 0))

	exact := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), GetNextRunTime(exact, 9))

	assert.Equal(t, time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC), GetCurrentPeriodStart(morning, 9))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), GetCurrentPeriodStart(morning, 0))
}
