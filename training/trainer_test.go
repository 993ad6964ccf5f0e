package training

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitrate/db"
	"profitrate/ml"
	"profitrate/pipeline"
)

type fakeRecorder struct {
	logs []db.TrainingLog
	err  error
}

func (f *fakeRecorder) SaveTrainingLog(log db.TrainingLog) error {
	f.logs = append(f.logs, log)
	return f.err
}

func writeCSV(t *testing.T, dir string, rows [][2]float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("profit,rate\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%v,%v\n", r[0], r[1])
	}
	path := filepath.Join(dir, "cs1.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func linearRows(n int, noise func(i int) float64) [][2]float64 {
	rows := make([][2]float64, n)
	for i := range rows {
		profit := float64(i * 10)
		rows[i] = [2]float64{profit, 2*profit + 1 + noise(i)}
	}
	return rows
}

func seed(v int64) *int64 {
	return &v
}

func TestRunFitsAndPersists(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, linearRows(50, func(int) float64 { return 0 }))
	modelPath := filepath.Join(dir, "models", "model.json")
	recorder := &fakeRecorder{}

	trainer := NewTrainer(Options{
		DatasetPath: data,
		TrainRatio:  0.2,
		Seed:        seed(7),
		ModelPath:   modelPath,
	}, nil, recorder)

	report, err := trainer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, report.Rows)
	assert.Equal(t, 10, report.TrainRows)
	assert.Equal(t, 40, report.HeldOutRows)
	assert.Equal(t, int64(7), report.Seed)
	assert.InDelta(t, 2.0, report.Slope, 1e-9)
	assert.InDelta(t, 1.0, report.Intercept, 1e-9)
	assert.InDelta(t, 1.0, report.R2, 1e-9)
	assert.NotEmpty(t, report.RunID)

	model, err := ml.LoadModel(modelPath)
	require.NoError(t, err)
	assert.Equal(t, report.Slope, model.Slope)
	assert.Equal(t, report.Intercept, model.Intercept)

	require.Len(t, recorder.logs, 1)
	assert.Equal(t, report.RunID, recorder.logs[0].RunID)
	assert.Equal(t, modelPath, recorder.logs[0].ArtifactPath)
	assert.Equal(t, 10, recorder.logs[0].TrainPoints)
}

func TestRunOverwritesPreviousArtifact(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, linearRows(20, func(int) float64 { return 0 }))
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, (&ml.LinearModel{Slope: -100, Intercept: 42}).Save(modelPath))

	_, err := NewTrainer(Options{DatasetPath: data, TrainRatio: 0.5, Seed: seed(1), ModelPath: modelPath}, nil, nil).
		Run(context.Background())
	require.NoError(t, err)

	model, err := ml.LoadModel(modelPath)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, model.Slope, 1e-9)
}

func TestRunSingleRowWritesNothing(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, [][2]float64{{10, 21}})
	modelPath := filepath.Join(dir, "model.json")
	recorder := &fakeRecorder{}

	_, err := NewTrainer(Options{DatasetPath: data, TrainRatio: 0.2, ModelPath: modelPath}, nil, recorder).
		Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrTooFewRows)

	_, statErr := os.Stat(modelPath)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, recorder.logs)
}

func TestRunFailuresKeepPriorArtifact(t *testing.T) {
	tests := []struct {
		name  string
		csv   string
		ratio float64
		want  error
	}{
		{name: "missing column", csv: "profit,margin\n1,2\n2,3\n", ratio: 0.5, want: pipeline.ErrMissingColumn},
		{name: "empty training set", csv: "profit,rate\n1,2\n2,3\n3,4\n4,5\n", ratio: 0.2, want: pipeline.ErrEmptyTrainingSet},
		{name: "single training row", csv: "profit,rate\n1,2\n2,3\n3,4\n4,5\n5,6\n", ratio: 0.2, want: ml.ErrDegenerateFit},
		{name: "zero variance", csv: "profit,rate\n5,2\n5,3\n5,4\n5,5\n", ratio: 0.5, want: ml.ErrDegenerateFit},
		{name: "invalid ratio", csv: "profit,rate\n1,2\n2,3\n", ratio: 1, want: pipeline.ErrInvalidRatio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			data := filepath.Join(dir, "data.csv")
			require.NoError(t, os.WriteFile(data, []byte(tt.csv), 0o644))
			modelPath := filepath.Join(dir, "model.json")
			prior := &ml.LinearModel{Slope: 3, Intercept: 4}
			require.NoError(t, prior.Save(modelPath))

			_, err := NewTrainer(Options{DatasetPath: data, TrainRatio: tt.ratio, Seed: seed(1), ModelPath: modelPath}, nil, nil).
				Run(context.Background())
			require.ErrorIs(t, err, tt.want)

			model, err := ml.LoadModel(modelPath)
			require.NoError(t, err)
			assert.Equal(t, 3.0, model.Slope)
			assert.Equal(t, 4.0, model.Intercept)
		})
	}
}

func TestFitExtremeRatios(t *testing.T) {
	rows := make(pipeline.Dataset, 10)
	for i := range rows {
		rows[i] = pipeline.Record{Profit: float64(i), Rate: float64(3*i) + math.Sin(float64(i))}
	}

	_, report, err := NewTrainer(Options{TrainRatio: 0.99, Seed: seed(5)}, nil, nil).Fit(rows)
	require.NoError(t, err)
	assert.Equal(t, 9, report.TrainRows)
	assert.True(t, math.IsNaN(report.R2), "one held-out row has no defined R²")

	_, _, err = NewTrainer(Options{TrainRatio: 0.01, Seed: seed(5)}, nil, nil).Fit(rows)
	assert.ErrorIs(t, err, pipeline.ErrEmptyTrainingSet)
}

func TestFitSameSeedSameModel(t *testing.T) {
	rows := make(pipeline.Dataset, 30)
	for i := range rows {
		rows[i] = pipeline.Record{Profit: float64(i), Rate: float64(i) + math.Cos(float64(i*7))}
	}
	trainer := NewTrainer(Options{TrainRatio: 0.2, Seed: seed(11)}, nil, nil)

	a, _, err := trainer.Fit(rows)
	require.NoError(t, err)
	b, _, err := trainer.Fit(rows)
	require.NoError(t, err)
	assert.Equal(t, a.Slope, b.Slope)
	assert.Equal(t, a.Intercept, b.Intercept)
}

func TestRunRecorderFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, linearRows(10, func(i int) float64 { return float64(i%3) / 10 }))
	recorder := &fakeRecorder{err: fmt.Errorf("disk full")}

	report, err := NewTrainer(Options{DatasetPath: data, TrainRatio: 0.5, Seed: seed(2), ModelPath: filepath.Join(dir, "m.json")}, nil, recorder).
		Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, recorder.logs, 3, "recording is retried before giving up")
	assert.Equal(t, 5, report.TrainRows)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, linearRows(10, func(int) float64 { return 0 }))
	modelPath := filepath.Join(dir, "model.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTrainer(Options{DatasetPath: data, TrainRatio: 0.5, ModelPath: modelPath}, nil, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(modelPath)
	assert.True(t, os.IsNotExist(statErr))
}
