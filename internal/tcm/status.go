package tcm

import "time"

const (
	TCMMet    = "TCM ✓"
	TCMMissed = "TCM Missed"

	OutreachOverdue  = "Overdue"
	OutreachDueToday = "Due Today"
)

// TCMStatus reports whether the two-day contact was met. It is empty while
// the contact deadline is still ahead and nothing has been logged.
func TCMStatus(contactBy, outreach, discharge *time.Time, now time.Time) string {
	if contactBy == nil {
		return ""
	}
	if outreach != nil && discharge != nil && elapsedDays(*discharge, *outreach) <= ContactWindowDays {
		return TCMMet
	}
	if outreach == nil && contactBy.Before(now) {
		return TCMMissed
	}
	return ""
}

// OutreachStatus flags a next-outreach date that is past or due today.
func OutreachStatus(next *time.Time, now time.Time) string {
	if next == nil {
		return ""
	}
	switch days := DaysBetween(now, *next); {
	case days < 0:
		return OutreachOverdue
	case days == 0:
		return OutreachDueToday
	default:
		return ""
	}
}
