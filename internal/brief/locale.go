package brief

import (
	"fmt"
	"time"
)

// eventKind is a keyword-matched event category with its sentence pattern.
// Patterns use {title}.
type eventKind struct {
	name     string
	keywords []string
	pattern  string
}

// Locale holds every language-specific string the renderers use.
type Locale struct {
	Tag string

	// Days is indexed Monday first.
	Days [7]string

	EmptyWeek string
	AllDay    string
	// AtPrefix precedes a clock time in sentences ("v 9:00").
	AtPrefix string
	Clock    func(time.Time) string

	// kinds are tried in order; the first keyword hit wins, genericPattern
	// applies otherwise.
	kinds          []eventKind
	genericPattern string

	// attributions use {name}; one is chosen per sentence by rotation.
	attributions []string
}

var locales = map[string]*Locale{
	"en": {
		Tag:       "en",
		Days:      [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		EmptyWeek: "You have no events scheduled for the coming week.",
		AllDay:    "all day",
		Clock:     clock12h,
		kinds: []eventKind{
			{name: "birthday", keywords: []string{"birthday", "bday", "b-day"}, pattern: "{title}, a birthday to celebrate"},
			{name: "medical", keywords: []string{"doctor", "dentist", "dr.", "clinic", "hospital", "checkup", "check-up", "physio"}, pattern: "{title}, a doctor's visit"},
			{name: "travel", keywords: []string{"flight", "airport", "train", "trip"}, pattern: "{title}, time to travel"},
		},
		genericPattern: "{title}",
		attributions: []string{
			", added by {name}",
			", from {name}",
			", which {name} put on the calendar",
			", courtesy of {name}",
		},
	},
	"cs": {
		Tag:       "cs",
		Days:      [7]string{"Pondělí", "Úterý", "Středa", "Čtvrtek", "Pátek", "Sobota", "Neděle"},
		EmptyWeek: "Na příští týden nemáte naplánované žádné události.",
		AllDay:    "celý den",
		AtPrefix:  "v ",
		Clock:     clock24h,
		kinds: []eventKind{
			{name: "birthday", keywords: []string{"narozenin", "birthday"}, pattern: "{title}, slavíme narozeniny"},
			{name: "medical", keywords: []string{"doktor", "lékař", "zubař", "ordinace", "nemocnice", "prohlídka", "mudr"}, pattern: "{title}, návštěva u lékaře"},
			{name: "travel", keywords: []string{"letadlo", "letiště", "odlet", "vlak", "výlet"}, pattern: "{title}, vyrážíte na cestu"},
		},
		genericPattern: "{title}",
		attributions: []string{
			", zapsal(a) {name}",
			", přidal(a) {name}",
			", v kalendáři to má {name}",
			", naplánoval(a) {name}",
		},
	},
}

// LookupLocale returns the tables for a language tag.
func LookupLocale(tag string) (*Locale, error) {
	l, ok := locales[tag]
	if !ok {
		return nil, fmt.Errorf("no narration locale for language %q", tag)
	}
	return l, nil
}

// DayName is the localized weekday of t.
func (l *Locale) DayName(t time.Time) string {
	return l.Days[dayIndex(t)]
}

// dayIndex maps a weekday to 0 = Monday … 6 = Sunday.
func dayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// clock12h renders 9am, 9:30am, 12pm, 12am.
func clock12h(t time.Time) string {
	h, m := t.Hour(), t.Minute()
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	if m == 0 {
		return fmt.Sprintf("%d%s", h12, suffix)
	}
	return fmt.Sprintf("%d:%02d%s", h12, m, suffix)
}

// clock24h renders 9:00, 14:30.
func clock24h(t time.Time) string {
	return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
}
