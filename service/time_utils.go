package service

import (
	"time"
)

// DayIndexAt returns the lottery day a timestamp falls into.
// Days are counted in whole dayLength periods since epoch.
func DayIndexAt(t, epoch time.Time, dayLength time.Duration) int64 {
	elapsed := t.Sub(epoch)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / dayLength)
}

// DayStart returns when a lottery day begins
func DayStart(dayIndex int64, epoch time.Time, dayLength time.Duration) time.Time {
	return epoch.Add(time.Duration(dayIndex) * dayLength).UTC()
}

// GetNextRunTime calculates the next daily run time based on the configured UTC hour
func GetNextRunTime(now time.Time, runHour int) time.Time {
	now = now.UTC()
	runTime := time.Date(now.Year(), now.Month(), now.Day(), runHour, 0, 0, 0, time.UTC)

	// If current time is past today's run, use tomorrow's
	if !now.Before(runTime) {
		runTime = runTime.AddDate(0, 0, 1)
	}

	return runTime
}

// GetCurrentPeriodStart calculates when the current daily period started
func GetCurrentPeriodStart(now time.Time, runHour int) time.Time {
	now = now.UTC()
	periodStart := time.Date(now.Year(), now.Month(), now.Day(), runHour, 0, 0, 0, time.UTC)

	// If current time is before today's run, use yesterday's run time
	if now.Before(periodStart) {
		periodStart = periodStart.AddDate(0, 0, -1)
	}

	return periodStart
}
