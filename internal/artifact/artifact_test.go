package artifact_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-train-pipeline/internal/artifact"
)

func TestNewRunUsesClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	store := artifact.NewStore(t.TempDir(), artifact.WithClock(clockwork.NewFakeClockAt(now)))

	run, err := store.NewRun()
	require.NoError(t, err)

	assert.Equal(t, "20240517T103000Z", run.ID)
	info, err := os.Stat(run.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveJSON(t *testing.T) {
	t.Parallel()

	store := artifact.NewStore(t.TempDir())
	run, err := store.NewRun()
	require.NoError(t, err)

	path, err := run.SaveJSON("report.json", map[string]float64{"accuracy": 0.9})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(run.Dir, "report.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]float64
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 0.9, got["accuracy"])
}

func TestMarkLatest(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	store := artifact.NewStore(t.TempDir(), artifact.WithClock(clockwork.NewFakeClockAt(now)))

	run, err := store.NewRun()
	require.NoError(t, err)
	require.NoError(t, store.MarkLatest(run))

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest)
}

func TestLatestMissing(t *testing.T) {
	t.Parallel()

	store := artifact.NewStore(t.TempDir())
	_, err := store.Latest()
	assert.Error(t, err)
}
