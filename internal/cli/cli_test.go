package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"weeklybrief/internal/aggregate"
	"weeklybrief/internal/config"
	"weeklybrief/internal/model"
	"weeklybrief/internal/pipeline"
)

type fakeCalendar struct{}

func (fakeCalendar) Fetch(context.Context, string, aggregate.Window) ([]model.RawEvent, error) {
	return nil, nil
}

func (fakeCalendar) ListSources(context.Context) ([]model.SourceInfo, error) {
	return []model.SourceInfo{
		{ID: "primary", Name: "Me", Kind: "google"},
		{ID: "family@group.calendar.google.com", Name: "Family", Kind: "google"},
	}, nil
}

type fakeSpeech struct{}

func (fakeSpeech) Synthesize(context.Context, string) ([]byte, error) {
	return []byte("ID3 audio"), nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CALENDAR_IDS", "TIMEZONE", "LANGUAGE", "GEMINI_API_KEY", "TTS_API_KEY",
		"RSS_BASE_URL", "OUTPUT_DIR", "MAX_WORDS", "MAX_SENTENCES", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	body = strings.ReplaceAll(body, "$DIR", dir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dir
}

func fakeDeps(t *testing.T) {
	t.Helper()
	orig := buildDeps
	buildDeps = func(context.Context, *config.Config, io.Reader, io.Writer) (pipeline.Deps, error) {
		cal := fakeCalendar{}
		return pipeline.Deps{Calendar: cal, Lister: cal, Synthesizer: fakeSpeech{}}, nil
	}
	origCal := buildCalendar
	buildCalendar = func(context.Context, *config.Config, io.Reader, io.Writer) (*aggregate.Router, error) {
		r := aggregate.NewRouter()
		r.Add("primary", fakeCalendar{})
		return r, nil
	}
	t.Cleanup(func() {
		buildDeps = orig
		buildCalendar = origCal
	})
}

// withoutDefaultCredentials points Application Default Credentials at a
// missing file so nothing on the host can satisfy them.
func withoutDefaultCredentials(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CLOUDSDK_CONFIG", filepath.Join(home, "gcloud"))
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(home, "missing-adc.json"))
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), NewRootCmd("1.2.3"), args, strings.NewReader(""), &out, &errOut)
	return code, out.String(), errOut.String()
}

const baseConfig = `
timezone: Europe/Prague
output_dir: $DIR/out
narration:
  language: en
feed:
  base_url: https://example.com/brief/
sources:
  - id: primary
`

func TestVersion(t *testing.T) {
	code, out, _ := execute(t, "version")
	require.Equal(t, 0, code)
	require.Equal(t, "weeklybrief 1.2.3\n", out)
}

func TestRunOnce(t *testing.T) {
	clearEnv(t)
	fakeDeps(t)
	path, dir := writeConfig(t, baseConfig)

	code, out, stderr := execute(t, "--config", path)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, out, "Weekly brief for ")
	require.Contains(t, out, "RSS feed: https://example.com/brief/feed.xml")
	require.FileExists(t, filepath.Join(dir, "out", "feed.xml"))
}

func TestRunOnceSkipFeed(t *testing.T) {
	clearEnv(t)
	fakeDeps(t)
	path, dir := writeConfig(t, baseConfig)

	code, out, stderr := execute(t, "--config", path, "--skip-feed")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, out, "MP3 saved to")
	require.NoFileExists(t, filepath.Join(dir, "out", "feed.xml"))
}

func TestListSources(t *testing.T) {
	clearEnv(t)
	fakeDeps(t)
	path, dir := writeConfig(t, baseConfig)

	code, out, _ := execute(t, "-c", path, "--list-sources")
	require.Equal(t, 0, code)
	require.Contains(t, out, "family@group.calendar.google.com\tFamily\t(google)\n")
	require.Contains(t, out, "CALENDAR_IDS")
	require.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestListSourcesICSNeedsNoSpeechCredentials(t *testing.T) {
	clearEnv(t)
	withoutDefaultCredentials(t)
	path, dir := writeConfig(t, `
timezone: Europe/Prague
output_dir: $DIR/out
feed:
  base_url: https://example.com/brief/
sources:
  - id: family
    kind: ics
    url: https://example.com/private/family.ics
`)

	code, out, stderr := execute(t, "--config", path, "--list-sources")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, out, "family\thttps://example.com/...(redacted)\t(ics)\n")
	require.NotContains(t, out, "private")
	require.NoDirExists(t, filepath.Join(dir, "out"))

	// A full run with the same environment still needs speech credentials.
	code, _, stderr = execute(t, "--config", path)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "text-to-speech credentials")
}

func TestMissingCredentialsPrintsFix(t *testing.T) {
	clearEnv(t)
	path, dir := writeConfig(t, baseConfig+fmt.Sprintf("google:\n  credentials_path: %s\n  token_path: %s\n",
		filepath.Join("$DIR", "credentials.json"), filepath.Join("$DIR", "token.json")))

	code, out, stderr := execute(t, "--config", path)
	require.Equal(t, 1, code)
	require.Empty(t, out)
	require.Contains(t, stderr, "Error: ")
	require.Contains(t, stderr, filepath.Join(dir, "credentials.json"))
	require.Contains(t, stderr, "Fix: Download OAuth client credentials")
}

func TestFirstRunWritesDefaultConfig(t *testing.T) {
	clearEnv(t)
	fakeDeps(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))

	code, _, stderr := execute(t, "--config", path)
	require.Equal(t, 0, code, stderr)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"primary"}, cfg.SourceIDs())
}

func TestInvalidConfig(t *testing.T) {
	clearEnv(t)
	path, _ := writeConfig(t, "timezone: Mars/Olympus\n")

	code, _, stderr := execute(t, "--config", path)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "invalid timezone")
}

func TestScheduleRejectsBadCron(t *testing.T) {
	clearEnv(t)
	fakeDeps(t)
	path, _ := writeConfig(t, baseConfig)

	code, _, stderr := execute(t, "schedule", "--config", path, "--cron", "whenever")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, `parse schedule "whenever"`)
}

func TestScheduleRunNowThenStops(t *testing.T) {
	clearEnv(t)
	fakeDeps(t)
	path, dir := writeConfig(t, baseConfig)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out, errOut bytes.Buffer
	code := run(ctx, NewRootCmd("dev"), []string{"schedule", "--config", path, "--now"}, strings.NewReader(""), &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "Weekly brief for ")
	require.FileExists(t, filepath.Join(dir, "out", "feed.xml"))
}

func TestUnknownArgument(t *testing.T) {
	code, _, stderr := execute(t, "bogus")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Error:")
}
