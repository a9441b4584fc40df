package train_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-train-pipeline/internal/config"
	"github.com/askiada/go-train-pipeline/internal/schema"
	"github.com/askiada/go-train-pipeline/pkg/train"
)

const testSchema = `
label: churn
features:
  - name: x1
    min: -10
    max: 10
  - name: x2
    min: -10
    max: 10
`

// writeDataset writes a linearly separable dataset: class 1 sits around
// (2, 2), class 0 around (-2, -2).
func writeDataset(t *testing.T, dir string, rows int) string {
	t.Helper()

	rng := rand.New(rand.NewSource(11))
	var sb strings.Builder
	sb.WriteString("x1,x2,churn\n")
	for i := 0; i < rows; i++ {
		center := -2.0
		label := 0
		if i%2 == 0 {
			center = 2.0
			label = 1
		}
		fmt.Fprintf(&sb, "%.4f,%.4f,%d\n", center+rng.NormFloat64()*0.5, center+rng.NormFloat64()*0.5, label)
	}

	path := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	return path
}

func testConfig(t *testing.T, dir string, rows int) *config.Config {
	t.Helper()

	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))

	cfg := config.Default()
	cfg.DataPath = writeDataset(t, dir, rows)
	cfg.SchemaPath = schemaPath
	cfg.ArtifactDir = filepath.Join(dir, "artifacts")
	cfg.GraphFile = filepath.Join(dir, "pipeline.dot")
	cfg.AccuracyFloor = 0.8
	cfg.Epochs = 50
	cfg.LearningRate = 0.1
	require.NoError(t, cfg.Validate())

	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunTrainsAndPersistsArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir, 200)

	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	tp, err := train.New(
		train.WithConfig(cfg),
		train.WithLogger(quietLogger()),
		train.WithClock(clockwork.NewFakeClockAt(now)),
	)
	require.NoError(t, err)

	require.NoError(t, tp.Run(context.Background()))

	runDir := filepath.Join(cfg.ArtifactDir, "20240517T103000Z")

	raw, err := os.ReadFile(filepath.Join(runDir, "model.json"))
	require.NoError(t, err)
	var modelFile struct {
		FeatureNames []string  `json:"feature_names"`
		Weights      []float64 `json:"weights"`
		Transform    struct {
			Mean []float64 `json:"mean"`
			Std  []float64 `json:"std"`
		} `json:"transform"`
	}
	require.NoError(t, json.Unmarshal(raw, &modelFile))
	assert.Equal(t, []string{"x1", "x2"}, modelFile.FeatureNames)
	assert.Len(t, modelFile.Weights, 2)
	assert.Len(t, modelFile.Transform.Mean, 2)

	raw, err = os.ReadFile(filepath.Join(runDir, "report.json"))
	require.NoError(t, err)
	var reportFile struct {
		RunID  string `json:"run_id"`
		Report struct {
			Accuracy float64 `json:"accuracy"`
			Samples  int     `json:"samples"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(raw, &reportFile))
	assert.Equal(t, "20240517T103000Z", reportFile.RunID)
	assert.Equal(t, 40, reportFile.Report.Samples)
	assert.Greater(t, reportFile.Report.Accuracy, 0.8)

	latest, err := os.ReadFile(filepath.Join(cfg.ArtifactDir, "LATEST"))
	require.NoError(t, err)
	assert.Equal(t, "20240517T103000Z\n", string(latest))

	dot, err := os.ReadFile(cfg.GraphFile)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph")
}

func TestRunFailsBelowAccuracyFloor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir, 100)
	cfg.AccuracyFloor = 1.1 // unreachable on purpose

	tp, err := train.New(train.WithConfig(cfg), train.WithLogger(quietLogger()))
	require.NoError(t, err)

	err = tp.Run(context.Background())
	assert.ErrorIs(t, err, train.ErrAccuracyFloor)
}

func TestRunFailsOnInvalidLabel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir, 50)

	f, err := os.OpenFile(cfg.DataPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("1.0,1.0,2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tp, err := train.New(train.WithConfig(cfg), train.WithLogger(quietLogger()))
	require.NoError(t, err)

	// the validation failure must surface, not the fallout of the stages
	// it tears down
	err = tp.Run(context.Background())
	assert.ErrorIs(t, err, schema.ErrLabelNotBinary)
}

func TestRunFailsOnTinyDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir, 4)

	tp, err := train.New(train.WithConfig(cfg), train.WithLogger(quietLogger()))
	require.NoError(t, err)

	err = tp.Run(context.Background())
	assert.ErrorIs(t, err, train.ErrNotEnoughSamples)
}

func TestRunFailsOnMissingSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir, 50)
	cfg.SchemaPath = filepath.Join(dir, "missing.yaml")

	tp, err := train.New(train.WithConfig(cfg), train.WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Error(t, tp.Run(context.Background()))
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(t, dir, 200)

	tp, err := train.New(train.WithConfig(cfg), train.WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = tp.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
