package aggregate

import "time"

// NextWeek returns the reporting window for a run at now: the next Monday
// 00:00:00 through the following Sunday 23:59:59 in loc.
//
// The window always starts strictly after now. On a Monday, even at exactly
// midnight, the week that has just begun is skipped in favour of the next.
func NextWeek(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)

	// Days from local's weekday to the next Monday, in 1..7.
	daysUntilMonday := (8 - int(local.Weekday())) % 7
	if daysUntilMonday == 0 {
		daysUntilMonday = 7
	}

	// time.Date normalizes day overflow and keeps wall-clock midnight
	// across DST transitions.
	y, m, d := local.Date()
	start := time.Date(y, m, d+daysUntilMonday, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+daysUntilMonday+6, 23, 59, 59, 0, loc)

	return Window{Start: start, End: end, Location: loc}
}
