// Package tcm holds the transitional-care-management date rules: due-date
// badges, the two/fourteen day schedule, and compliance aggregation.
//
// Everything here is pure. Callers pass tenant-scoped data and the clock.
package tcm

import (
	"fmt"
	"math"
	"time"
)

// Tier ranks how urgent a due date is.
type Tier string

const (
	TierCritical Tier = "Critical" // overdue
	TierHigh     Tier = "High"     // due today
	TierElevated Tier = "Elevated" // 1-3 days
	TierModerate Tier = "Moderate" // 4-7 days
	TierNormal   Tier = "Normal"   // more than a week out
)

// Badge is the display bucket for a due date.
type Badge struct {
	Label     string `json:"label"`
	Tier      Tier   `json:"tier"`
	DaysUntil int    `json:"daysUntil"`
}

// Classify buckets target relative to now by whole calendar days in now's
// location. A nil target has no badge.
func Classify(target *time.Time, now time.Time) *Badge {
	if target == nil {
		return nil
	}

	days := DaysBetween(now, *target)

	switch {
	case days < 0:
		return &Badge{Label: fmt.Sprintf("%d days overdue", -days), Tier: TierCritical, DaysUntil: days}
	case days == 0:
		return &Badge{Label: "Due today", Tier: TierHigh, DaysUntil: days}
	case days <= 3:
		return &Badge{Label: fmt.Sprintf("%d days", days), Tier: TierElevated, DaysUntil: days}
	case days <= 7:
		return &Badge{Label: fmt.Sprintf("%d days", days), Tier: TierModerate, DaysUntil: days}
	default:
		return &Badge{Label: fmt.Sprintf("%d days", days), Tier: TierNormal, DaysUntil: days}
	}
}

// DaysBetween counts calendar days from from to to, both truncated to the
// start of their day in from's location.
func DaysBetween(from, to time.Time) int {
	loc := from.Location()
	a := startOfDay(from, loc)
	b := startOfDay(to, loc)
	// Rounding absorbs 23h and 25h days around DST changes.
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// elapsedDays is floor((later - earlier) / 24h).
func elapsedDays(earlier, later time.Time) int {
	return int(math.Floor(later.Sub(earlier).Hours() / 24))
}
