package ics

import (
	"errors"
	"math"
	"time"

	"github.com/teambition/rrule-go"

	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// expandWindow is the range occurrences must overlap, and the zone all-day
// dates are written in.
type expandWindow struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
	// MaxOccurrences caps each recurring series; 0 means the default.
	MaxOccurrences int
}

// expand turns parsed VEVENTs into raw records overlapping w:
//
//   - single events are kept when they overlap the window
//   - RRULE series are expanded with EXDATEs removed
//   - RECURRENCE-ID overrides replace the instance they name
func expand(events []vevent, w expandWindow) ([]model.RawEvent, error) {
	if w.End.Before(w.Start) {
		return nil, errors.New("expand: window end is before start")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxOccurrences <= 0 {
		w.MaxOccurrences = defaultMaxOccurrencesPerEvent
	}

	var (
		order     []string
		bases     = make(map[string][]vevent)
		overrides = make(map[string][]vevent)
	)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, ok := bases[ev.UID]; !ok {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	out := make([]model.RawEvent, 0)
	for _, uid := range order {
		for _, ev := range bases[uid] {
			if ev.RRule == "" {
				if overlaps(ev.Start, ev.End, w.Start, w.End) {
					out = append(out, toRaw(ev, ev.Start, ev.End, w.Location))
				}
				continue
			}
			occ, capped := expandSeries(ev, overrides[uid], w)
			if capped {
				appLog.Warn("ics series truncated", "uid", uid, "cap", w.MaxOccurrences)
			}
			out = append(out, occ...)
		}
	}
	return out, nil
}

func expandSeries(ev vevent, overrides []vevent, w expandWindow) ([]model.RawEvent, bool) {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Warn("ics RRULE not understood; event skipped", "uid", ev.UID, "rrule", ev.RRule, "err", err)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	// An instance starting before the window can still overlap it.
	from := w.Start.Add(-dur).In(ev.Start.Location())
	to := w.End.In(ev.Start.Location())

	starts := set.Between(from, to, true)
	capped := false
	if len(starts) > w.MaxOccurrences {
		starts = starts[:w.MaxOccurrences]
		capped = true
	}

	out := make([]model.RawEvent, 0, len(starts))
	for _, s := range starts {
		inst := ev
		start, end := s, s.Add(dur)
		if ev.AllDay {
			end = s.AddDate(0, 0, allDayLength(ev))
		}
		if o, ok := findOverride(overrides, s); ok {
			inst = o
			start, end = o.Start, o.End
		}
		if !overlaps(start, end, w.Start, w.End) {
			continue
		}
		out = append(out, toRaw(inst, start, end, w.Location))
	}
	return out, capped
}

// allDayLength counts calendar days so DST days do not shift the end date.
func allDayLength(ev vevent) int {
	days := int(math.Round(ev.End.Sub(ev.Start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

func findOverride(overrides []vevent, start time.Time) (vevent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

// toRaw writes all-day edges as plain dates and timed edges as RFC 3339.
func toRaw(ev vevent, start, end time.Time, loc *time.Location) model.RawEvent {
	raw := model.RawEvent{
		Summary: ev.Summary,
		Status:  ev.Status,
		Creator: ev.Organizer,
	}
	if ev.AllDay {
		raw.Start.Date = start.Format(model.DateLayout)
		raw.End.Date = end.Format(model.DateLayout)
		return raw
	}
	raw.Start.DateTime = start.In(loc).Format(time.RFC3339)
	raw.End.DateTime = end.In(loc).Format(time.RFC3339)
	return raw
}

// overlaps treats zero-length events as instants inside [start, end).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
