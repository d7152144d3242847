package brief

import (
	"context"
	"errors"
	"strings"

	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

// Generator is an external natural-language generator. It receives the
// event listing built by Listing and the narration language tag.
type Generator interface {
	Generate(ctx context.Context, listing, language string) (string, error)
}

// ErrEmptyGeneration is reported when the generator returns only whitespace.
var ErrEmptyGeneration = errors.New("generator returned empty text")

// Listing serializes events one per line, grouped by day:
//
//	Monday | 9am | Standup | Anna
//	Wednesday | all day | Conference
//
// The creator column is present only for creators found in people.
func Listing(l *Locale, people map[string]string, events []model.CanonicalEvent) string {
	people = normalizePeople(people)

	var b strings.Builder
	for _, g := range groupByDay(l, events) {
		for _, ev := range g.events {
			when := l.AllDay
			if !ev.AllDay {
				when = l.Clock(ev.Start)
			}
			b.WriteString(g.name)
			b.WriteString(" | ")
			b.WriteString(when)
			b.WriteString(" | ")
			b.WriteString(ev.Title)
			if name := lookupPerson(people, ev.Creator); name != "" {
				b.WriteString(" | ")
				b.WriteString(name)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// GenerativeRenderer asks a Generator for prose and falls back to the
// template renderer whenever the generator fails or returns nothing.
type GenerativeRenderer struct {
	gen      Generator
	locale   *Locale
	people   map[string]string
	fallback *TemplateRenderer
}

func NewGenerativeRenderer(gen Generator, l *Locale, people map[string]string, fallback *TemplateRenderer) *GenerativeRenderer {
	return &GenerativeRenderer{gen: gen, locale: l, people: people, fallback: fallback}
}

// Render never returns an error from the generator; it reports whether the
// generated text was used.
func (r *GenerativeRenderer) Render(ctx context.Context, events []model.CanonicalEvent) (string, bool) {
	text, err := r.generate(ctx, events)
	if err != nil {
		appLog.Warn("narration generator unavailable; using template", "err", err, "language", r.locale.Tag)
		fallback, _ := r.fallback.Render(ctx, events)
		return fallback, false
	}
	return text, true
}

func (r *GenerativeRenderer) generate(ctx context.Context, events []model.CanonicalEvent) (text string, err error) {
	// Generator panics count as failures.
	defer func() {
		if p := recover(); p != nil {
			err = errors.New("generator panicked")
		}
	}()

	text, err = r.gen.Generate(ctx, Listing(r.locale, r.people, events), r.locale.Tag)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}
