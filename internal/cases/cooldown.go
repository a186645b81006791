package cases

import "time"

// Re-detection backoff after a resolved case. Once the calendar month turns,
// a student may be re-flagged immediately. Within the same calendar month as
// the resolution there is a minimum gap of a week: at least seven days
// elapsed AND a later ISO week than the one the case was resolved in.
const minCooldownDays = 7

// CanDetectAgain reports whether detection may open a fresh case at now,
// given when the previous case was resolved.
func CanDetectAgain(now, resolvedAt time.Time) bool {
	if !sameCalendarMonth(now, resolvedAt) {
		return true
	}
	if now.Sub(resolvedAt) < minCooldownDays*24*time.Hour {
		return false
	}
	return laterISOWeek(now, resolvedAt)
}

func sameCalendarMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func laterISOWeek(now, resolvedAt time.Time) bool {
	nowYear, nowWeek := now.ISOWeek()
	resYear, resWeek := resolvedAt.ISOWeek()
	if nowYear != resYear {
		return nowYear > resYear
	}
	return nowWeek > resWeek
}
