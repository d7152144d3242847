package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	KindGoogle = "google"
	KindICS    = "ics"
)

// Supported narration languages.
const (
	LangEnglish = "en"
	LangCzech   = "cs"
)

// SourceConfig describes a single calendar source.
type SourceConfig struct {
	// ID is the calendar identifier. For Google this is the calendar ID
	// ("primary", "family@group.calendar.google.com"); for ICS it is an
	// internal label used in logs and error messages.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Kind is "google" (default) or "ics".
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// URL is the ICS subscription endpoint (ICS sources only).
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}

// GoogleConfig locates the OAuth client secret and the cached user token.
type GoogleConfig struct {
	CredentialsPath string `yaml:"credentials_path" json:"credentials_path"`
	TokenPath       string `yaml:"token_path" json:"token_path"`
}

// NarrationConfig controls the brief composer.
type NarrationConfig struct {
	// Language is "en" or "cs".
	Language string `yaml:"language" json:"language"`
	// MaxWords / MaxSentences bound the narration in every mode.
	MaxWords     int `yaml:"max_words" json:"max_words"`
	MaxSentences int `yaml:"max_sentences" json:"max_sentences"`
	// TemplateOnly disables the language-model renderer even when an API
	// key is configured.
	TemplateOnly bool `yaml:"template_only" json:"template_only"`
	// People maps creator emails to the names spoken in attributions.
	People map[string]string `yaml:"people,omitempty" json:"people,omitempty"`
}

// GeneratorConfig configures the Gemini text generator.
type GeneratorConfig struct {
	APIKey   string        `yaml:"api_key,omitempty" json:"-"`
	Model    string        `yaml:"model" json:"model"`
	Endpoint string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// SpeechConfig configures Google Cloud Text-to-Speech.
type SpeechConfig struct {
	// APIKey is optional; without it Application Default Credentials are used.
	APIKey       string  `yaml:"api_key,omitempty" json:"-"`
	LanguageCode string  `yaml:"language_code" json:"language_code"`
	Voice        string  `yaml:"voice" json:"voice"`
	SpeakingRate float64 `yaml:"speaking_rate" json:"speaking_rate"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// FeedConfig holds podcast show metadata.
type FeedConfig struct {
	// BaseURL is where output_dir is published. Empty disables feed updates.
	BaseURL     string `yaml:"base_url" json:"base_url"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	// ImageURL overrides the default "<base_url>/cover.png".
	ImageURL string `yaml:"image_url,omitempty" json:"image_url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the feed server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone the week is computed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// OutputDir holds weekly-brief-*.txt/.mp3 and feed.xml.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Schedule is the cron expression used by `weeklybrief schedule`.
	Schedule string `yaml:"schedule" json:"schedule"`

	// Listen is the HTTP listen address for `weeklybrief serve`.
	Listen string `yaml:"listen" json:"listen"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Google    GoogleConfig    `yaml:"google" json:"google"`
	Sources   []SourceConfig  `yaml:"sources" json:"sources"`
	Narration NarrationConfig `yaml:"narration" json:"narration"`
	Generator GeneratorConfig `yaml:"generator" json:"generator"`
	Speech    SpeechConfig    `yaml:"speech" json:"speech"`
	Feed      FeedConfig      `yaml:"feed" json:"feed"`

	// BasicAuth, if non-nil, protects everything except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Sources: []SourceConfig{{ID: "primary", Kind: KindGoogle}},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./output"
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.OutputDir, ".ics-cache")
	}
	if c.Schedule == "" {
		// Sundays at 08:00.
		c.Schedule = "0 8 * * 0"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Google.CredentialsPath == "" {
		c.Google.CredentialsPath = "credentials.json"
	}
	if c.Google.TokenPath == "" {
		c.Google.TokenPath = "token.json"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		c.Sources[i].Kind = strings.ToLower(strings.TrimSpace(c.Sources[i].Kind))
		if c.Sources[i].Kind == "" {
			c.Sources[i].Kind = KindGoogle
		}
	}

	c.Narration.Language = strings.ToLower(strings.TrimSpace(c.Narration.Language))
	if c.Narration.Language == "" {
		c.Narration.Language = LangCzech
	}
	if c.Narration.MaxWords <= 0 {
		c.Narration.MaxWords = 450
	}
	if c.Narration.MaxSentences <= 0 {
		c.Narration.MaxSentences = 18
	}

	if c.Generator.Model == "" {
		c.Generator.Model = "gemini-2.0-flash"
	}
	if c.Generator.Timeout <= 0 {
		c.Generator.Timeout = 60 * time.Second
	}

	// Voice follows the narration language unless set explicitly.
	if c.Speech.LanguageCode == "" {
		c.Speech.LanguageCode = speechLanguage(c.Narration.Language)
	}
	if c.Speech.Voice == "" {
		c.Speech.Voice = speechVoice(c.Narration.Language)
	}
	if c.Speech.SpeakingRate <= 0 {
		c.Speech.SpeakingRate = 0.9
	}

	c.Feed.BaseURL = strings.TrimRight(strings.TrimSpace(c.Feed.BaseURL), "/")
	if c.Feed.Title == "" {
		c.Feed.Title = "My Weekly Brief"
	}
	if c.Feed.Description == "" {
		c.Feed.Description = "A private weekly brief of your upcoming calendar events."
	}
}

// Validate reports configuration that cannot work at runtime.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	switch c.Narration.Language {
	case LangEnglish, LangCzech:
	default:
		return fmt.Errorf("unsupported narration language %q (want %q or %q)", c.Narration.Language, LangEnglish, LangCzech)
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" {
			return errors.New("calendar source with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate calendar source %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case KindGoogle:
		case KindICS:
			if s.URL == "" {
				return fmt.Errorf("ics source %q has no url", s.ID)
			}
		default:
			return fmt.Errorf("calendar source %q has unknown kind %q", s.ID, s.Kind)
		}
	}
	return nil
}

// Location returns the configured timezone. Call Validate first.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SourceIDs returns the configured calendar IDs in config order.
func (c *Config) SourceIDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		ids = append(ids, s.ID)
	}
	return ids
}

// FeedLanguage is the RSS <language> tag for the narration language.
func (c *Config) FeedLanguage() string {
	if c.Narration.Language == LangCzech {
		return "cs-cz"
	}
	return "en-us"
}

// FeedImageURL is the channel artwork URL, empty when none can be derived.
func (c *Config) FeedImageURL() string {
	if c.Feed.ImageURL != "" {
		return c.Feed.ImageURL
	}
	if c.Feed.BaseURL == "" {
		return ""
	}
	return c.Feed.BaseURL + "/cover.png"
}

func speechLanguage(lang string) string {
	if lang == LangCzech {
		return "cs-CZ"
	}
	return "en-US"
}

func speechVoice(lang string) string {
	if lang == LangCzech {
		return "cs-CZ-Wavenet-B"
	}
	return "en-US-Neural2-D"
}

// Load loads configuration from the given YAML path and applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist:
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//   - In both cases env overrides are applied last and the result validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weeklybrief-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
