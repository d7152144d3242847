package model

import "time"

// DateLayout is the calendar-date form used in artifact names and feed GUIDs.
const DateLayout = "2006-01-02"

// UntitledEvent replaces an empty event title.
const UntitledEvent = "(No title)"

// StatusCancelled marks a raw record the source has cancelled.
const StatusCancelled = "cancelled"

// RawTime is one edge of a raw event. Timed records carry DateTime
// (RFC 3339), whole-day records carry Date (YYYY-MM-DD).
type RawTime struct {
	DateTime string
	Date     string
}

// RawEvent is a calendar record as returned by a calendar source, before
// normalization. Sources translate their own format into this shape.
type RawEvent struct {
	Summary string
	Status  string
	Creator string

	Start RawTime
	End   RawTime
}

// CanonicalEvent represents a single calendar entry after normalization
// into the run's timezone. All-day events start at local midnight.
type CanonicalEvent struct {
	SourceID string

	Title   string
	Creator string // email or identifier, empty when unknown

	AllDay bool

	Start time.Time
	End   time.Time
}

// SourceInfo describes a calendar that can be selected in config.
type SourceInfo struct {
	ID   string
	Name string
	Kind string
}

// Episode is one published weekly brief in the podcast feed.
type Episode struct {
	// Date is the week-start date at UTC midnight; it is the episode key.
	Date          time.Time
	AudioFilename string
	SizeBytes     int64
}

// NewEpisode builds an Episode with the filename derived from date.
func NewEpisode(date time.Time, size int64) Episode {
	d := DateOnly(date)
	if size < 0 {
		size = 0
	}
	return Episode{
		Date:          d,
		AudioFilename: ArtifactName(d, "mp3"),
		SizeBytes:     size,
	}
}

// DateOnly keeps the calendar date of t (in t's own location) as UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ArtifactName returns "weekly-brief-YYYY-MM-DD.<ext>".
func ArtifactName(date time.Time, ext string) string {
	return ArtifactStem(date) + "." + ext
}

// ArtifactStem returns "weekly-brief-YYYY-MM-DD"; it doubles as the feed GUID.
func ArtifactStem(date time.Time) string {
	return "weekly-brief-" + date.Format(DateLayout)
}
