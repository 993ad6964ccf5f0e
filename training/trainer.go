// Package training runs the load → split → fit → score → persist sequence.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"profitrate/db"
	"profitrate/ml"
	"profitrate/pipeline"
)

// Options 训练参数
type Options struct {
	DatasetPath string
	Load        pipeline.LoadOptions
	// TrainRatio is the fraction of rows used for fitting; the rest are held out for scoring.
	TrainRatio float64
	// Seed fixes the split. Nil draws a seed from the clock; the drawn seed is reported.
	Seed      *int64
	ModelPath string
}

// Report describes a finished run. R2 is NaN when the held-out score is undefined.
type Report struct {
	RunID       string        `json:"run_id"`
	DatasetPath string        `json:"dataset_path"`
	Rows        int           `json:"rows"`
	TrainRows   int           `json:"train_rows"`
	HeldOutRows int           `json:"held_out_rows"`
	TrainRatio  float64       `json:"train_ratio"`
	Seed        int64         `json:"seed"`
	Slope       float64       `json:"slope"`
	Intercept   float64       `json:"intercept"`
	R2          float64       `json:"r2"`
	ModelPath   string        `json:"model_path"`
	TrainedAt   time.Time     `json:"trained_at"`
	Duration    time.Duration `json:"duration"`
}

// Recorder stores finished runs. *db.Store satisfies it.
type Recorder interface {
	SaveTrainingLog(log db.TrainingLog) error
}

type Trainer struct {
	opts     Options
	logger   *zap.Logger
	recorder Recorder
}

// NewTrainer builds a trainer. recorder may be nil when run history is not kept.
func NewTrainer(opts Options, logger *zap.Logger, recorder Recorder) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{opts: opts, logger: logger, recorder: recorder}
}

// Run loads the dataset, fits the model and writes the artifact. Nothing is written
// unless every earlier step succeeded.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	if t.opts.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	start := time.Now()

	data, err := pipeline.Load(t.opts.DatasetPath, t.opts.Load)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, report, err := t.Fit(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := model.Save(t.opts.ModelPath); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	report.DatasetPath = t.opts.DatasetPath
	report.ModelPath = t.opts.ModelPath
	report.Duration = time.Since(start)

	t.logger.Info("model saved",
		zap.String("run_id", report.RunID),
		zap.String("path", report.ModelPath),
		zap.Float64("slope", report.Slope),
		zap.Float64("intercept", report.Intercept),
		zap.Float64("r2", report.R2),
		zap.Duration("duration", report.Duration),
	)

	if t.recorder != nil {
		if err := t.record(report); err != nil {
			t.logger.Warn("failed to record training run", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
	return report, nil
}

// record retries briefly since a concurrent reader can hold the sqlite lock.
func (t *Trainer) record(report *Report) error {
	log := report.trainingLog()
	return retry.Do(
		func() error {
			return t.recorder.SaveTrainingLog(log)
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Debug("retry recording training run", zap.Uint("attempt", n), zap.Error(err))
		}),
	)
}

// Fit splits data and fits the model without touching the filesystem.
func (t *Trainer) Fit(data pipeline.Dataset) (*ml.LinearModel, *Report, error) {
	if err := data.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate dataset: %w", err)
	}

	seed := time.Now().UnixNano()
	if t.opts.Seed != nil {
		seed = *t.opts.Seed
	}
	if t.opts.TrainRatio < 0.5 {
		t.logger.Warn("train ratio holds out most rows",
			zap.Float64("train_ratio", t.opts.TrainRatio))
	}

	train, heldOut, err := pipeline.Split(data, t.opts.TrainRatio, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("split dataset: %w", err)
	}

	profits, rates := train.Columns()
	model, err := ml.Fit(profits, rates)
	if err != nil {
		return nil, nil, fmt.Errorf("fit model: %w", err)
	}

	testProfits, testRates := heldOut.Columns()
	r2 := model.Score(testProfits, testRates)
	if math.IsNaN(r2) {
		t.logger.Warn("held-out score undefined", zap.Int("held_out_rows", heldOut.Len()))
	}

	report := &Report{
		RunID:       uuid.NewString(),
		Rows:        data.Len(),
		TrainRows:   train.Len(),
		HeldOutRows: heldOut.Len(),
		TrainRatio:  t.opts.TrainRatio,
		Seed:        seed,
		Slope:       model.Slope,
		Intercept:   model.Intercept,
		R2:          r2,
		TrainedAt:   model.TrainedAt,
	}
	t.logger.Info("model fitted",
		zap.String("run_id", report.RunID),
		zap.Int("rows", report.Rows),
		zap.Int("train_rows", report.TrainRows),
		zap.Int("held_out_rows", report.HeldOutRows),
		zap.Int64("seed", seed),
		zap.Float64("r2", r2),
	)
	return model, report, nil
}

func (r *Report) trainingLog() db.TrainingLog {
	return db.TrainingLog{
		RunID:         r.RunID,
		ModelName:     ml.ArtifactType,
		DatasetPath:   r.DatasetPath,
		DataPoints:    r.Rows,
		TrainPoints:   r.TrainRows,
		HeldOutPoints: r.HeldOutRows,
		TrainRatio:    r.TrainRatio,
		Seed:          r.Seed,
		Slope:         r.Slope,
		Intercept:     r.Intercept,
		R2:            r.R2,
		ArtifactPath:  r.ModelPath,
		TrainedAt:     r.TrainedAt,
	}
}
