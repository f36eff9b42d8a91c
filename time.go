package contacts

import "time"

// IsWithinThresholdPeriod checks if t falls inside the threshold window
// ending at now.
func IsWithinThresholdPeriod(t time.Time, window time.Duration, now time.Time) bool {
	return t.After(now.Add(-window))
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, window time.Duration, now time.Time) bool {
	return !IsWithinThresholdPeriod(t, window, now)
}
