package analytics

import "time"

// civilDate truncates a timestamp to its UTC calendar day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StreakDays counts consecutive calendar days ending today that contain at
// least one activity timestamp. A day without activity breaks the count:
// days before the gap do not contribute, and a learner inactive today has a
// streak of zero.
func StreakDays(activity []time.Time, today time.Time) int {
	if len(activity) == 0 {
		return 0
	}

	days := make(map[time.Time]bool, len(activity))
	for _, ts := range activity {
		days[civilDate(ts)] = true
	}

	streak := 0
	for day := civilDate(today); days[day]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}
