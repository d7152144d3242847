package pipeline

import (
	"context"
	"io"

	"weeklybrief/internal/aggregate"
	"weeklybrief/internal/config"
	"weeklybrief/internal/gcal"
	"weeklybrief/internal/ics"
	"weeklybrief/internal/llm"
	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/tts"
)

// Build wires the production adapters for cfg. in/out serve the one-time
// Google consent prompt.
func Build(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (Deps, error) {
	router, err := BuildCalendar(ctx, cfg, in, out)
	if err != nil {
		return Deps{}, err
	}

	speech, err := tts.NewDefaultClient(ctx, tts.Options{
		APIKey:   cfg.Speech.APIKey,
		Endpoint: cfg.Speech.Endpoint,
		Voice: tts.Voice{
			LanguageCode: cfg.Speech.LanguageCode,
			Name:         cfg.Speech.Voice,
			SpeakingRate: cfg.Speech.SpeakingRate,
		},
	})
	if err != nil {
		return Deps{}, err
	}

	deps := Deps{
		Calendar:    router,
		Lister:      router,
		Synthesizer: speech,
	}
	if g := generatorFor(cfg); g != nil {
		deps.Generator = g
	}
	return deps, nil
}

// BuildCalendar wires only the calendar providers. It needs no speech or
// generator credentials.
func BuildCalendar(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*aggregate.Router, error) {
	router := aggregate.NewRouter()

	var feeds []ics.Feed
	hasGoogle := false
	for _, s := range cfg.Sources {
		switch s.Kind {
		case config.KindICS:
			feeds = append(feeds, ics.Feed{ID: s.ID, Name: s.Name, URL: s.URL})
		case config.KindGoogle:
			hasGoogle = true
		}
	}

	if hasGoogle {
		g, err := gcal.New(ctx, gcal.Auth{
			CredentialsPath: cfg.Google.CredentialsPath,
			TokenPath:       cfg.Google.TokenPath,
			In:              in,
			Out:             out,
		})
		if err != nil {
			return nil, err
		}
		for _, s := range cfg.Sources {
			if s.Kind == config.KindGoogle {
				router.Add(s.ID, g)
			}
		}
	}

	if len(feeds) > 0 {
		p, err := ics.NewProvider(ics.NewFetcher(cfg.CacheDir, nil), feeds)
		if err != nil {
			return nil, err
		}
		for _, f := range feeds {
			router.Add(f.ID, p)
		}
	}
	return router, nil
}

// generatorFor returns the Gemini client, or nil when narration is
// template-only.
func generatorFor(cfg *config.Config) *llm.Client {
	switch {
	case cfg.Narration.TemplateOnly:
		appLog.Info("narration generator disabled by config; using templates")
		return nil
	case cfg.Generator.APIKey == "":
		appLog.Info("no GEMINI_API_KEY; using template narration")
		return nil
	}
	return llm.NewClient(llm.Options{
		APIKey:   cfg.Generator.APIKey,
		Model:    cfg.Generator.Model,
		Endpoint: cfg.Generator.Endpoint,
		Timeout:  cfg.Generator.Timeout,
	})
}
