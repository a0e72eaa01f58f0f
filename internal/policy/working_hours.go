package policy

import "time"

// Working hours bounds, inclusive on both ends.
const (
	WorkdayStartHour = 9
	WorkdayEndHour   = 18
)

// AccessContext describes when an event happened. It is descriptive only and
// never gates a transition.
type AccessContext struct {
	IsWorkingHours bool `json:"is_working_hours"`
	HourOfDay      int  `json:"hour_of_day"`
	DayOfWeek      int  `json:"day_of_week"` // 0 = Sunday
}

// ClassifyAccess computes the access context for t in its own location.
func ClassifyAccess(t time.Time) AccessContext {
	h := t.Hour()
	return AccessContext{
		IsWorkingHours: h >= WorkdayStartHour && h <= WorkdayEndHour,
		HourOfDay:      h,
		DayOfWeek:      int(t.Weekday()),
	}
}

// AccessLabel is the dashboard wording for an access context.
func (c AccessContext) AccessLabel() string {
	if c.IsWorkingHours {
		return "Normal"
	}
	return "Unusual"
}
