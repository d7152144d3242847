package brief

import (
	"context"
	"strings"

	"weeklybrief/internal/model"
)

// Rotation picks among equivalent phrasings. It advances on every pick so
// consecutive attributions differ; the seed lets different weeks start at
// different phrasings.
type Rotation struct {
	next int
}

func NewRotation(seed int) *Rotation {
	if seed < 0 {
		seed = -seed
	}
	return &Rotation{next: seed}
}

// Pick returns an index in [0, n).
func (r *Rotation) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	i := r.next % n
	r.next++
	return i
}

// dayGroup is the events of one weekday in input order.
type dayGroup struct {
	index  int
	name   string
	events []model.CanonicalEvent
}

// groupByDay buckets events by localized weekday, Monday first. Days
// without events are omitted.
func groupByDay(l *Locale, events []model.CanonicalEvent) []dayGroup {
	var buckets [7][]model.CanonicalEvent
	for _, ev := range events {
		i := dayIndex(ev.Start)
		buckets[i] = append(buckets[i], ev)
	}

	out := make([]dayGroup, 0, 7)
	for i, evs := range buckets {
		if len(evs) == 0 {
			continue
		}
		out = append(out, dayGroup{index: i, name: l.Days[i], events: evs})
	}
	return out
}

// TemplateRenderer builds one deterministic sentence per event.
type TemplateRenderer struct {
	locale   *Locale
	people   map[string]string
	rotation *Rotation
}

func NewTemplateRenderer(l *Locale, people map[string]string, rotation *Rotation) *TemplateRenderer {
	if rotation == nil {
		rotation = NewRotation(0)
	}
	return &TemplateRenderer{locale: l, people: normalizePeople(people), rotation: rotation}
}

func (r *TemplateRenderer) Render(_ context.Context, events []model.CanonicalEvent) (string, error) {
	parts := make([]string, 0, len(events))
	for _, g := range groupByDay(r.locale, events) {
		for _, ev := range g.events {
			parts = append(parts, r.sentence(g.name, ev))
		}
	}
	return strings.Join(parts, " "), nil
}

// sentence renders "<day> <time>: <phrase><attribution>."
func (r *TemplateRenderer) sentence(day string, ev model.CanonicalEvent) string {
	var b strings.Builder
	b.WriteString(day)
	b.WriteString(" ")
	b.WriteString(r.timePhrase(ev))
	b.WriteString(": ")

	title := strings.TrimRight(ev.Title, ". !?")
	if title == "" {
		title = model.UntitledEvent
	}
	b.WriteString(strings.ReplaceAll(r.kindPattern(ev.Title), "{title}", title))

	if name := lookupPerson(r.people, ev.Creator); name != "" && len(r.locale.attributions) > 0 {
		phrase := r.locale.attributions[r.rotation.Pick(len(r.locale.attributions))]
		b.WriteString(strings.ReplaceAll(phrase, "{name}", name))
	}

	b.WriteString(".")
	return b.String()
}

func (r *TemplateRenderer) timePhrase(ev model.CanonicalEvent) string {
	if ev.AllDay {
		return r.locale.AllDay
	}
	return r.locale.AtPrefix + r.locale.Clock(ev.Start)
}

func (r *TemplateRenderer) kindPattern(title string) string {
	lower := strings.ToLower(title)
	for _, k := range r.locale.kinds {
		for _, kw := range k.keywords {
			if strings.Contains(lower, kw) {
				return k.pattern
			}
		}
	}
	return r.locale.genericPattern
}

func normalizePeople(people map[string]string) map[string]string {
	out := make(map[string]string, len(people))
	for k, v := range people {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func lookupPerson(people map[string]string, creator string) string {
	if creator == "" {
		return ""
	}
	return people[strings.ToLower(strings.TrimSpace(creator))]
}
