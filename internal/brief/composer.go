// Package brief turns the week's canonical events into a short narration,
// generated by a language model when one is available and built from
// locale templates otherwise.
package brief

import (
	"context"
	"fmt"

	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

// Mode records which strategy produced a narration.
type Mode string

const (
	ModeEmpty      Mode = "empty"
	ModeGenerative Mode = "generative"
	ModeTemplate   Mode = "template"
)

// Options are the run-level narration settings.
type Options struct {
	Language     string
	MaxWords     int
	MaxSentences int
	// People maps creator emails to spoken names.
	People map[string]string
	// RotationSeed selects the first attribution phrasing.
	RotationSeed int
}

// Result is a composed narration.
type Result struct {
	Text string
	Mode Mode
}

// Composer renders narration for one run.
type Composer struct {
	opts       Options
	locale     *Locale
	template   *TemplateRenderer
	generative *GenerativeRenderer
}

// NewComposer builds a Composer. gen may be nil, in which case only the
// template renderer is used.
func NewComposer(opts Options, gen Generator) (*Composer, error) {
	l, err := LookupLocale(opts.Language)
	if err != nil {
		return nil, err
	}
	if opts.MaxWords < 0 || opts.MaxSentences < 0 {
		return nil, fmt.Errorf("narration limits must not be negative (words=%d sentences=%d)", opts.MaxWords, opts.MaxSentences)
	}

	c := &Composer{
		opts:     opts,
		locale:   l,
		template: NewTemplateRenderer(l, opts.People, NewRotation(opts.RotationSeed)),
	}
	if gen != nil {
		c.generative = NewGenerativeRenderer(gen, l, opts.People, c.template)
	}
	return c, nil
}

// Locale exposes the tables in use.
func (c *Composer) Locale() *Locale { return c.locale }

// Compose produces the bounded narration for events. It never fails:
// generator problems degrade to template mode.
func (c *Composer) Compose(ctx context.Context, events []model.CanonicalEvent) Result {
	if len(events) == 0 {
		return Result{Text: c.locale.EmptyWeek, Mode: ModeEmpty}
	}

	var (
		text string
		mode = ModeTemplate
	)
	if c.generative != nil {
		var used bool
		text, used = c.generative.Render(ctx, events)
		if used {
			mode = ModeGenerative
		}
	} else {
		text, _ = c.template.Render(ctx, events)
	}

	out := Truncate(text, c.opts.MaxWords, c.opts.MaxSentences)
	appLog.Info("narration composed", "mode", mode, "events", len(events), "chars", len(out))
	return Result{Text: out, Mode: mode}
}
