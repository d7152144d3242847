package brief

import (
	"time"

	"weeklybrief/internal/artifact"
)

// Save writes the narration to <root>/weekly-brief-YYYY-MM-DD.txt and
// returns the path. Saving the same week again replaces the file.
func Save(root artifact.Dir, weekStart time.Time, text string) (string, error) {
	path := root.SummaryPath(weekStart)
	if err := artifact.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
