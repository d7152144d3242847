// Package pipeline runs one weekly brief: fetch, compose, synthesize,
// persist and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weeklybrief/internal/aggregate"
	"weeklybrief/internal/artifact"
	"weeklybrief/internal/brief"
	"weeklybrief/internal/config"
	"weeklybrief/internal/feed"
	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

// Synthesizer turns narration text into MP3 bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Deps are the external capabilities of a run.
type Deps struct {
	Calendar aggregate.Provider
	Lister   aggregate.Lister
	// Generator is optional; nil means template narration only.
	Generator   brief.Generator
	Synthesizer Synthesizer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Options are per-invocation switches.
type Options struct {
	SkipFeed bool
}

// Result describes what a run produced.
type Result struct {
	RunID     string
	WeekStart time.Time
	Events    int
	Mode      brief.Mode

	SummaryPath string
	AudioPath   string
	// FeedPath and FeedURL are empty when the feed was not updated.
	FeedPath string
	FeedURL  string
}

// Run executes the pipeline once for the week after now.
func Run(ctx context.Context, cfg *config.Config, deps Deps, opts Options) (*Result, error) {
	if deps.Calendar == nil {
		return nil, errors.New("pipeline: no calendar provider")
	}
	if deps.Synthesizer == nil {
		return nil, errors.New("pipeline: no speech synthesizer")
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	res := &Result{RunID: uuid.NewString()}
	started := now()
	appLog.Info("pipeline start", "run_id", res.RunID, "timezone", cfg.Timezone, "sources", len(cfg.Sources), "language", cfg.Narration.Language)

	w := aggregate.NextWeek(started, loc)
	res.WeekStart = w.Start

	events, err := aggregate.Collect(ctx, deps.Calendar, cfg.SourceIDs(), w)
	if err != nil {
		return nil, err
	}
	res.Events = len(events)

	composer, err := brief.NewComposer(brief.Options{
		Language:     cfg.Narration.Language,
		MaxWords:     cfg.Narration.MaxWords,
		MaxSentences: cfg.Narration.MaxSentences,
		People:       cfg.Narration.People,
		RotationSeed: w.Start.YearDay(),
	}, deps.Generator)
	if err != nil {
		return nil, err
	}
	narration := composer.Compose(ctx, events)
	res.Mode = narration.Mode

	out := artifact.Dir(cfg.OutputDir)
	res.SummaryPath, err = brief.Save(out, w.Start, narration.Text)
	if err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	appLog.Info("summary saved", "run_id", res.RunID, "path", res.SummaryPath)

	audio, err := deps.Synthesizer.Synthesize(ctx, narration.Text)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	res.AudioPath = out.AudioPath(w.Start)
	if err := artifact.WriteFile(res.AudioPath, audio, 0o644); err != nil {
		return nil, fmt.Errorf("save audio: %w", err)
	}
	appLog.Info("audio saved", "run_id", res.RunID, "path", res.AudioPath, "bytes", len(audio))

	if cfg.Feed.BaseURL != "" && !opts.SkipFeed {
		store := feed.NewStore(out.FeedPath(), ShowFor(cfg), now)
		if _, err := store.Publish(ctx, w.Start, res.AudioPath); err != nil {
			return nil, fmt.Errorf("update feed: %w", err)
		}
		res.FeedPath = store.Path()
		res.FeedURL = cfg.Feed.BaseURL + "/" + artifact.FeedFilename
	} else {
		appLog.Debug("feed update skipped", "run_id", res.RunID, "base_url_set", cfg.Feed.BaseURL != "", "skip_feed", opts.SkipFeed)
	}

	appLog.Info("pipeline done", "run_id", res.RunID, "week", w.Start.Format(model.DateLayout), "events", res.Events, "mode", res.Mode, "took", now().Sub(started).Round(time.Millisecond))
	return res, nil
}

// ListSources enumerates the calendars the configured providers can read.
func ListSources(ctx context.Context, deps Deps) ([]model.SourceInfo, error) {
	if deps.Lister == nil {
		return nil, errors.New("no calendar provider can list calendars")
	}
	return deps.Lister.ListSources(ctx)
}

// ShowFor maps feed config to channel metadata.
func ShowFor(cfg *config.Config) feed.Show {
	return feed.Show{
		Title:       cfg.Feed.Title,
		Description: cfg.Feed.Description,
		BaseURL:     cfg.Feed.BaseURL,
		ImageURL:    cfg.FeedImageURL(),
		Language:    cfg.FeedLanguage(),
	}
}

// Message is the confirmation printed after a successful run.
func (r *Result) Message() string {
	week := r.WeekStart.Format(model.DateLayout)
	if r.FeedURL != "" {
		return fmt.Sprintf("Weekly brief for %s ready. Summary: %s. MP3: %s. RSS feed: %s (add it in your podcast app by URL).",
			week, r.SummaryPath, r.AudioPath, r.FeedURL)
	}
	return fmt.Sprintf("Weekly brief for %s ready. Summary: %s. MP3 saved to %s. Set feed.base_url (RSS_BASE_URL) to publish a podcast feed.",
		week, r.SummaryPath, r.AudioPath)
}
