package brief

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weeklybrief/internal/artifact"
	"weeklybrief/internal/model"
)

var monday = time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func event(title string, start time.Time) model.CanonicalEvent {
	return model.CanonicalEvent{SourceID: "primary", Title: title, Start: start, End: start.Add(30 * time.Minute)}
}

func allDayEvent(title string, day int) model.CanonicalEvent {
	start := at(day, 0, 0)
	return model.CanonicalEvent{SourceID: "primary", Title: title, Start: start, End: start.AddDate(0, 0, 1), AllDay: true}
}

type fakeGenerator struct {
	text  string
	err   error
	panic bool

	calls    int
	listing  string
	language string
}

func (f *fakeGenerator) Generate(_ context.Context, listing, language string) (string, error) {
	f.calls++
	f.listing = listing
	f.language = language
	if f.panic {
		panic("adapter bug")
	}
	return f.text, f.err
}

func newComposer(t *testing.T, opts Options, gen Generator) *Composer {
	t.Helper()
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.MaxWords == 0 {
		opts.MaxWords = 450
	}
	if opts.MaxSentences == 0 {
		opts.MaxSentences = 18
	}
	c, err := NewComposer(opts, gen)
	require.NoError(t, err)
	return c
}

func TestComposeTemplateExample(t *testing.T) {
	c := newComposer(t, Options{}, nil)

	res := c.Compose(context.Background(), []model.CanonicalEvent{event("Standup", at(0, 9, 0))})

	require.Equal(t, "Monday 9am: Standup.", res.Text)
	require.Equal(t, ModeTemplate, res.Mode)
}

func TestComposeTemplateTrimsTitlePunctuation(t *testing.T) {
	for _, title := range []string{"Party?", "Party!", "Party...", "Party ?! "} {
		c := newComposer(t, Options{}, nil)
		res := c.Compose(context.Background(), []model.CanonicalEvent{event(title, at(0, 9, 0))})
		require.Equal(t, "Monday 9am: Party.", res.Text, title)
	}
}

func TestComposeEmptyWeek(t *testing.T) {
	for _, lang := range []string{"en", "cs"} {
		t.Run(lang, func(t *testing.T) {
			gen := &fakeGenerator{text: "should not be used"}
			c := newComposer(t, Options{Language: lang}, gen)

			res := c.Compose(context.Background(), nil)

			require.Equal(t, ModeEmpty, res.Mode)
			require.Equal(t, locales[lang].EmptyWeek, res.Text)
			require.Zero(t, gen.calls, "no external call for an empty week")
		})
	}
}

func TestComposeTemplateEnglish(t *testing.T) {
	c := newComposer(t, Options{People: map[string]string{"Anna@Example.com": "Anna"}}, nil)

	events := []model.CanonicalEvent{
		allDayEvent("Offsite", 2),
		event("Dentist appointment", at(1, 14, 30)),
		event("Tom's Birthday party", at(5, 18, 0)),
		event("Flight to Berlin", at(6, 0, 15)),
		event("Lunch", at(2, 12, 0)),
	}
	events[4].Creator = "anna@example.com"

	res := c.Compose(context.Background(), events)

	want := strings.Join([]string{
		"Tuesday 2:30pm: Dentist appointment, a doctor's visit.",
		"Wednesday all day: Offsite.",
		"Wednesday 12pm: Lunch, added by Anna.",
		"Saturday 6pm: Tom's Birthday party, a birthday to celebrate.",
		"Sunday 12:15am: Flight to Berlin, time to travel.",
	}, " ")
	require.Equal(t, want, res.Text)
}

func TestComposeTemplateCzech(t *testing.T) {
	c := newComposer(t, Options{Language: "cs"}, nil)

	events := []model.CanonicalEvent{
		event("Porada", at(0, 9, 0)),
		allDayEvent("Narozeniny babičky", 3),
		event("Zubař", at(4, 14, 30)),
	}

	res := c.Compose(context.Background(), events)

	require.Equal(t,
		"Pondělí v 9:00: Porada. Čtvrtek celý den: Narozeniny babičky, slavíme narozeniny. Pátek v 14:30: Zubař, návštěva u lékaře.",
		res.Text)
}

func TestAttributionRotates(t *testing.T) {
	c := newComposer(t, Options{People: map[string]string{"anna@example.com": "Anna"}, RotationSeed: 1}, nil)

	var events []model.CanonicalEvent
	for d := 0; d < 4; d++ {
		ev := event("Call", at(d, 10, 0))
		ev.Creator = "anna@example.com"
		events = append(events, ev)
	}

	res := c.Compose(context.Background(), events)
	sentences := strings.Split(res.Text, ". ")
	require.Len(t, sentences, 4)

	phrasings := map[string]bool{}
	for i, s := range sentences {
		phrase := strings.TrimSuffix(s[strings.Index(s, "Call")+len("Call"):], ".")
		require.NotEmpty(t, phrase)
		phrasings[phrase] = true
		if i > 0 {
			prev := strings.TrimSuffix(sentences[i-1][strings.Index(sentences[i-1], "Call")+len("Call"):], ".")
			require.NotEqual(t, prev, phrase, "consecutive days reuse the same phrasing")
		}
	}
	require.Len(t, phrasings, 4)

	// Seed 1 starts at the second phrasing.
	assert.True(t, strings.HasPrefix(sentences[0], "Monday 10am: Call, from Anna"))
}

func TestUnknownCreatorIsNotAttributed(t *testing.T) {
	c := newComposer(t, Options{People: map[string]string{"anna@example.com": "Anna"}}, nil)
	ev := event("Standup", at(0, 9, 0))
	ev.Creator = "me@example.com"

	res := c.Compose(context.Background(), []model.CanonicalEvent{ev})
	require.Equal(t, "Monday 9am: Standup.", res.Text)
}

func TestComposeGenerative(t *testing.T) {
	gen := &fakeGenerator{text: "  Busy week ahead. Monday starts with a standup.  "}
	c := newComposer(t, Options{People: map[string]string{"anna@example.com": "Anna"}}, gen)

	ev := event("Standup", at(0, 9, 0))
	ev.Creator = "anna@example.com"
	res := c.Compose(context.Background(), []model.CanonicalEvent{ev, allDayEvent("Conference", 2)})

	require.Equal(t, ModeGenerative, res.Mode)
	require.Equal(t, "Busy week ahead. Monday starts with a standup.", res.Text)
	require.Equal(t, 1, gen.calls)
	require.Equal(t, "en", gen.language)
	require.Equal(t, "Monday | 9am | Standup | Anna\nWednesday | all day | Conference\n", gen.listing)
}

func TestComposeGenerativeFallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error", &fakeGenerator{err: errors.New("GEMINI_API_KEY rejected")}},
		{"empty", &fakeGenerator{text: " \n "}},
		{"panic", &fakeGenerator{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newComposer(t, Options{}, tt.gen)

			res := c.Compose(context.Background(), []model.CanonicalEvent{event("Standup", at(0, 9, 0))})

			require.Equal(t, ModeTemplate, res.Mode)
			require.Equal(t, "Monday 9am: Standup.", res.Text)
			require.Equal(t, 1, tt.gen.calls)
		})
	}
}

func TestComposeGenerativeIsTruncated(t *testing.T) {
	long := strings.Repeat("This is one sentence. ", 30) + "And a dangling tail without end"
	gen := &fakeGenerator{text: long}
	c := newComposer(t, Options{MaxWords: 22, MaxSentences: 3}, gen)

	res := c.Compose(context.Background(), []model.CanonicalEvent{event("Standup", at(0, 9, 0))})

	require.Equal(t, ModeGenerative, res.Mode)
	require.Equal(t, "This is one sentence. This is one sentence. This is one sentence.", res.Text)
}

func TestComposeBoundsHold(t *testing.T) {
	var events []model.CanonicalEvent
	for i := 0; i < 40; i++ {
		events = append(events, event(fmt.Sprintf("Meeting number %d with the team", i), at(i%7, 8+i%9, 0)))
	}

	for _, lim := range []struct{ words, sentences int }{{150, 4}, {450, 18}, {10, 2}, {7, 100}} {
		c := newComposer(t, Options{MaxWords: lim.words, MaxSentences: lim.sentences}, nil)
		res := c.Compose(context.Background(), events)

		require.LessOrEqual(t, len(strings.Fields(res.Text)), lim.words)
		require.LessOrEqual(t, len(strings.Split(res.Text, ". ")), lim.sentences)
		require.True(t, strings.HasSuffix(res.Text, "."), res.Text)
	}
}

func TestNewComposerRejectsUnknownLanguage(t *testing.T) {
	_, err := NewComposer(Options{Language: "de", MaxWords: 10, MaxSentences: 2}, nil)
	require.Error(t, err)
}

func TestSave(t *testing.T) {
	root := artifact.Dir(t.TempDir())

	path, err := Save(root, monday, "Monday 9am: Standup.")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(string(root), "weekly-brief-2025-02-03.txt"), path)

	_, err = Save(root, monday, "Rerun.")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "Rerun.", string(data))
}
