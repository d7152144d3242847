package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEpisode(t *testing.T) {
	prague, err := time.LoadLocation("Europe/Prague")
	require.NoError(t, err)

	ep := NewEpisode(time.Date(2025, 2, 3, 0, 0, 0, 0, prague), 1234)
	require.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), ep.Date)
	require.Equal(t, "weekly-brief-2025-02-03.mp3", ep.AudioFilename)
	require.EqualValues(t, 1234, ep.SizeBytes)

	require.Zero(t, NewEpisode(ep.Date, -5).SizeBytes)
}

func TestArtifactName(t *testing.T) {
	d := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "weekly-brief-2025-12-29", ArtifactStem(d))
	require.Equal(t, "weekly-brief-2025-12-29.txt", ArtifactName(d, "txt"))
}
