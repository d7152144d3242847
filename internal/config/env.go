package config

import (
	"path/filepath"
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables on cfg. Secrets normally live
// here rather than in the YAML file.
//
//	CALENDAR_IDS    comma-separated Google calendar IDs (replaces google sources)
//	TIMEZONE        IANA zone
//	LANGUAGE        en | cs
//	GEMINI_API_KEY  enables generative narration
//	TTS_API_KEY     Google Cloud TTS API key
//	RSS_BASE_URL    public URL of output_dir
//	OUTPUT_DIR      artifact root
//	MAX_WORDS, MAX_SENTENCES
//	LOG_LEVEL
func ApplyEnv(c *Config, lookup LookupFunc) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("CALENDAR_IDS"); ok {
		ids := splitAndTrim(v)
		if len(ids) > 0 {
			kept := make([]SourceConfig, 0, len(c.Sources)+len(ids))
			for _, s := range c.Sources {
				if s.Kind != KindGoogle {
					kept = append(kept, s)
				}
			}
			for _, id := range ids {
				kept = append(kept, SourceConfig{ID: id, Kind: KindGoogle})
			}
			c.Sources = kept
		}
	}

	oldLang := c.Narration.Language
	if v, ok := get("TIMEZONE"); ok {
		c.Timezone = v
	}
	if v, ok := get("LANGUAGE"); ok {
		c.Narration.Language = strings.ToLower(v)
	}
	if v, ok := get("GEMINI_API_KEY"); ok {
		c.Generator.APIKey = v
	}
	if v, ok := get("TTS_API_KEY"); ok {
		c.Speech.APIKey = v
	}
	if v, ok := get("RSS_BASE_URL"); ok {
		c.Feed.BaseURL = v
	}
	if v, ok := get("OUTPUT_DIR"); ok {
		// A cache dir derived from the old output dir moves with it.
		if c.CacheDir == filepath.Join(c.OutputDir, ".ics-cache") {
			c.CacheDir = ""
		}
		c.OutputDir = v
	}
	if v, ok := get("MAX_WORDS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Narration.MaxWords = n
		}
	}
	if v, ok := get("MAX_SENTENCES"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Narration.MaxSentences = n
		}
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	// A voice that was only defaulted from the file's language follows
	// the new language.
	if c.Narration.Language != oldLang {
		if c.Speech.LanguageCode == speechLanguage(oldLang) {
			c.Speech.LanguageCode = ""
		}
		if c.Speech.Voice == speechVoice(oldLang) {
			c.Speech.Voice = ""
		}
	}
	c.Normalize()
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
