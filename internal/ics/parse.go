package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "weeklybrief/internal/log"
)

const (
	layoutUTC      = "20060102T150405Z"
	layoutFloating = "20060102T150405"
	layoutDate     = "20060102"
)

// vevent is one VEVENT with its times resolved. Recurrence is recorded
// here and expanded in expand.go.
type vevent struct {
	UID     string
	Seq     int
	Summary string
	Status  string
	// Organizer is the ORGANIZER address without the mailto: scheme.
	Organizer string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// parseCalendar decodes an ICS payload. Floating times and all-day dates
// are placed in loc. Events that cannot be understood are skipped with a
// warning; a payload that is not a calendar is an error.
func parseCalendar(feedID string, body []byte, loc *time.Location) ([]vevent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	events := make([]vevent, 0)
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(comp, loc)
		if err != nil {
			appLog.Warn("ics event skipped", "id", feedID, "err", err)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", feedID, "events", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return out, errors.New("missing UID")
	}
	out.UID = strings.TrimSpace(uid.Value)

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Status = strings.ToLower(strings.TrimSpace(p.Value))
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		out.Organizer = organizerAddress(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("event %s: missing DTSTART", out.UID)
	}
	start, allDay, err := propTime(dtStart, loc)
	if err != nil {
		return out, fmt.Errorf("event %s: DTSTART: %w", out.UID, err)
	}
	out.Start, out.AllDay = start, allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, _, err := propTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
		if err != nil {
			return out, fmt.Errorf("event %s: DTEND: %w", out.UID, err)
		}
		out.End = end
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := parseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return out, fmt.Errorf("event %s: DURATION: %w", out.UID, err)
		}
		out.End = out.Start.Add(d)
	case allDay:
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start
	}
	if out.End.Before(out.Start) {
		out.End = out.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tz := param(p, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseValue(part, tz, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, _, err := propTime(p, loc); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// propTime resolves a DATE or DATE-TIME property honoring VALUE and TZID.
func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	if strings.EqualFold(param(p, "VALUE"), "DATE") {
		t, err := time.ParseInLocation(layoutDate, strings.TrimSpace(p.Value), loc)
		return t, true, err
	}
	return parseValue(p.Value, param(p, "TZID"), loc)
}

// parseValue parses the three ICS time forms: UTC, zoned or floating
// date-time, and date. Unknown TZIDs fall back to loc.
func parseValue(v, tzid string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, false, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(layoutUTC, v)
		return t, false, err
	case strings.Contains(v, "T"):
		zone := loc
		if tzid != "" {
			if l, err := time.LoadLocation(tzid); err == nil {
				zone = l
			} else {
				appLog.Debug("unknown TZID; using run timezone", "tzid", tzid)
			}
		}
		t, err := time.ParseInLocation(layoutFloating, v, zone)
		return t, false, err
	default:
		t, err := time.ParseInLocation(layoutDate, v, loc)
		return t, true, err
	}
}

func param(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func organizerAddress(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	return strings.ToLower(v)
}

// parseDuration handles the RFC 5545 dur-value subset calendars emit:
// [+-]P[nW][nD][T[nH][nM][nS]].
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(strings.ToUpper(v))
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(v, "-"):
		sign, v = -1, v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") || len(v) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	v = v[1:]

	var (
		total  time.Duration
		inTime bool
		num    int
		digits bool
	)
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !digits {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		n := time.Duration(num)
		switch {
		case r == 'W' && !inTime:
			total += n * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += n * 24 * time.Hour
		case r == 'H' && inTime:
			total += n * time.Hour
		case r == 'M' && inTime:
			total += n * time.Minute
		case r == 'S' && inTime:
			total += n * time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		num, digits = 0, false
	}
	if digits {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return sign * total, nil
}
