package account

import "time"

// IsWithinThresholdPeriod reports whether t falls inside the window of
// the given length ending at now. The caller supplies now so injected
// clocks keep working.
func IsWithinThresholdPeriod(now, t time.Time, window time.Duration) bool {
	return t.After(now.Add(-window))
}

// remainingMinutes reports the whole minutes between now and the given
// deadline, truncated the way users expect a countdown to behave
func remainingMinutes(now, deadline time.Time) int {
	if !deadline.After(now) {
		return 0
	}
	return int(deadline.Sub(now) / time.Minute)
}
