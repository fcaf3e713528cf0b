// Package expiry holds the pure date arithmetic behind warranty records:
// computing an expiry date from a purchase date and a period in calendar
// months, counting days until expiry, and classifying a warranty's status.
package expiry

import "time"

// Status is the derived state of a warranty relative to a reference day.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring-soon"
	StatusExpired      Status = "expired"
)

// ExpiringSoonWindowDays is the width of the "expiring-soon" window,
// counted inclusively from today.
const ExpiringSoonWindowDays = 30

// AddMonths adds n calendar months to d, clamping the day of month to the
// last valid day of the target month. Jan 31 + 1 month is Feb 29 in a leap
// year and Feb 28 otherwise, never a spillover into March.
func AddMonths(d time.Time, n int) time.Time {
	year, month, day := d.Date()

	// Normalize the target month first with day fixed at 1, then clamp.
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// ComputeExpiry returns the expiry date for a purchase date and a warranty
// period in whole months. The caller validates periodMonths > 0 beforehand.
func ComputeExpiry(purchaseDate time.Time, periodMonths int) time.Time {
	return AddMonths(purchaseDate, periodMonths)
}

// DaysUntil returns the signed whole-day difference between the expiry date
// and today, both truncated to calendar dates. Negative means expired.
func DaysUntil(expiryDate, today time.Time) int {
	d := truncateToDay(expiryDate).Sub(truncateToDay(today))
	return int(d.Hours() / 24)
}

// Classify maps an expiry date to a status for the given day. A nil or zero
// expiry date classifies as unknown; an expiry falling exactly on today
// counts as expiring-soon, not expired.
func Classify(expiryDate *time.Time, today time.Time) Status {
	if expiryDate == nil || expiryDate.IsZero() {
		return StatusUnknown
	}
	daysLeft := DaysUntil(*expiryDate, today)
	switch {
	case daysLeft < 0:
		return StatusExpired
	case daysLeft <= ExpiringSoonWindowDays:
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
