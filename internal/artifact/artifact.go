// Package artifact owns the output directory layout and atomic file writes
// shared by the summary, audio and feed stages.
package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"weeklybrief/internal/model"
)

// FeedFilename is the syndication document inside the output directory.
const FeedFilename = "feed.xml"

// CoverFilename is the optional show artwork served next to the feed.
const CoverFilename = "cover.png"

// Dir is an output directory rooted at a configured path.
type Dir string

func (d Dir) SummaryPath(weekStart time.Time) string {
	return filepath.Join(string(d), model.ArtifactName(weekStart, "txt"))
}

func (d Dir) AudioPath(weekStart time.Time) string {
	return filepath.Join(string(d), model.ArtifactName(weekStart, "mp3"))
}

func (d Dir) FeedPath() string {
	return filepath.Join(string(d), FeedFilename)
}

// WriteFile writes data to path atomically:
//   - ensures the parent directory exists
//   - writes to a temp file in the same directory
//   - fsyncs, chmods to perm and renames over path
//
// Re-running with the same path simply replaces the previous content.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return errors.New("artifact path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weeklybrief-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Size returns the size of the file at path, or 0 when it does not exist.
func Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return fi.Size(), nil
}
