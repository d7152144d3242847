package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"weeklybrief/internal/artifact"
	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

// Store binds a feed document path to show metadata.
type Store struct {
	path string
	show Show
	now  func() time.Time
}

// NewStore returns a Store writing to path. now defaults to time.Now.
func NewStore(path string, show Show, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{path: path, show: show, now: now}
}

func (s *Store) Path() string { return s.path }

// Episodes returns the episodes currently in the document, newest first.
func (s *Store) Episodes() ([]model.Episode, error) {
	eps, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(eps)
	return eps, nil
}

// Publish records the episode for date and rewrites the document. The
// size comes from the audio file on disk (0 when it is missing). It
// reports whether a new episode was added; republishing a known date
// leaves the episode list unchanged but still refreshes the document.
func (s *Store) Publish(ctx context.Context, date time.Time, audioPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	eps, err := Load(s.path)
	if err != nil {
		return false, err
	}

	size, err := artifact.Size(audioPath)
	if err != nil {
		return false, fmt.Errorf("stat audio %s: %w", audioPath, err)
	}

	eps, inserted := Upsert(eps, model.NewEpisode(date, size))

	var buf bytes.Buffer
	if err := Render(&buf, s.show, eps, s.now()); err != nil {
		return false, fmt.Errorf("render feed: %w", err)
	}
	if err := artifact.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("write feed %s: %w", s.path, err)
	}

	appLog.Info("feed updated", "path", s.path, "episodes", len(eps), "inserted", inserted, "date", model.DateOnly(date).Format(model.DateLayout))
	return inserted, nil
}
