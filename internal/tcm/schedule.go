package tcm

import "time"

const (
	// ContactWindowDays is the interactive-contact deadline after discharge.
	ContactWindowDays = 2
	// FollowUpWindowDays is the face-to-face follow-up deadline after discharge.
	FollowUpWindowDays = 14
)

// Schedule is the pair of TCM deadlines for one discharge.
type Schedule struct {
	ContactBy  *time.Time `json:"contactBy,omitempty"`
	FollowUpBy *time.Time `json:"followUpBy,omitempty"`
}

// DeriveSchedule computes the deadlines for a discharge. Without a discharge
// both deadlines stay unset.
func DeriveSchedule(discharge *time.Time) Schedule {
	if discharge == nil {
		return Schedule{}
	}
	contact := discharge.AddDate(0, 0, ContactWindowDays)
	followUp := discharge.AddDate(0, 0, FollowUpWindowDays)
	return Schedule{ContactBy: &contact, FollowUpBy: &followUp}
}
