package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"profitrate/config"
	"profitrate/db"
	"profitrate/logging"
	"profitrate/pipeline"
	"profitrate/training"
)

type flags struct {
	configPath string
	dataPath   string
	modelPath  string
	sheet      string
	encoding   string
	trainRatio float64
	seed       int64
	watch      bool
	schedule   string
	noLog      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "train_model",
		Short:         "Fit the profit → rate model and write the artifact",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return train(cmd.Context(), cfg, f.noLog)
		},
	}
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "config file (default config.yaml)")
	cmd.Flags().StringVar(&f.dataPath, "data", "", "dataset path (.xlsx or .csv)")
	cmd.Flags().StringVar(&f.modelPath, "model", "", "model artifact output path")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "worksheet name, first sheet when empty")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "CSV encoding, e.g. gbk")
	cmd.Flags().Float64Var(&f.trainRatio, "train-ratio", config.DefaultTrainRatio, "fraction of rows used for training")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "split seed, drawn from the clock when unset")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "retrain whenever the dataset changes")
	cmd.Flags().StringVar(&f.schedule, "schedule", "", "cron spec for periodic retraining")
	cmd.Flags().BoolVar(&f.noLog, "no-log", false, "do not record the run in the training log")

	cmd.AddCommand(newRunsCommand(f))
	return cmd
}

func newRunsCommand(f *flags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded training runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := db.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			logs, err := store.LoadTrainingLog(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tTRAINED AT\tROWS\tTRAIN\tSEED\tSLOPE\tINTERCEPT\tR2")
			for _, l := range logs {
				r2 := "n/a"
				if !math.IsNaN(l.R2) {
					r2 = fmt.Sprintf("%.4f", l.R2)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%g\t%g\t%s\n",
					l.RunID, l.TrainedAt.Format("2006-01-02 15:04:05"), l.DataPoints, l.TrainPoints,
					l.Seed, l.Slope, l.Intercept, r2)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show, 0 for all")
	return cmd
}

// loadConfig applies explicitly set flags on top of the config file.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	fs := cmd.Flags()
	if fs.Changed("data") {
		cfg.Dataset.Path = f.dataPath
	}
	if fs.Changed("model") {
		cfg.Model.Path = f.modelPath
	}
	if fs.Changed("sheet") {
		cfg.Dataset.Sheet = f.sheet
	}
	if fs.Changed("encoding") {
		cfg.Dataset.Encoding = f.encoding
	}
	if fs.Changed("train-ratio") {
		cfg.Training.TrainRatio = f.trainRatio
	}
	if fs.Changed("seed") {
		seed := f.seed
		cfg.Training.Seed = &seed
	}
	if fs.Changed("watch") {
		cfg.Training.Watch = f.watch
	}
	if fs.Changed("schedule") {
		cfg.Training.Schedule = f.schedule
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func train(ctx context.Context, cfg *config.Config, noLog bool) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	var recorder training.Recorder
	if !noLog {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open training log: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	if dir := filepath.Dir(cfg.Model.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}

	trainer := training.NewTrainer(training.Options{
		DatasetPath: cfg.Dataset.Path,
		Load: pipeline.LoadOptions{
			Sheet:        cfg.Dataset.Sheet,
			ProfitColumn: cfg.Dataset.ProfitColumn,
			RateColumn:   cfg.Dataset.RateColumn,
			Encoding:     cfg.Dataset.Encoding,
		},
		TrainRatio: cfg.Training.TrainRatio,
		Seed:       cfg.Training.Seed,
		ModelPath:  cfg.Model.Path,
	}, logger, recorder)

	report, err := trainer.Run(ctx)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		return err
	}
	printReport(report)

	if !cfg.Training.Watch && cfg.Training.Schedule == "" {
		return nil
	}

	// Retrain in the background until interrupted. A failed retrain leaves the last
	// good artifact in place.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	retrain := func() {
		mu.Lock()
		defer mu.Unlock()
		report, err := trainer.Run(ctx)
		if err != nil {
			logger.Error("retraining failed", zap.Error(err))
			return
		}
		printReport(report)
	}

	if cfg.Training.Schedule != "" {
		c, err := training.Schedule(cfg.Training.Schedule, logger, retrain)
		if err != nil {
			return err
		}
		defer c.Stop()
	}
	if cfg.Training.Watch {
		return training.Watch(ctx, cfg.Dataset.Path, logger, retrain)
	}

	<-ctx.Done()
	return nil
}

func printReport(r *training.Report) {
	r2 := "undefined"
	if !math.IsNaN(r.R2) {
		r2 = fmt.Sprintf("%.4f", r.R2)
	}
	fmt.Printf("run %s: slope=%g intercept=%g held-out R2=%s (train %d / held-out %d, seed %d)\n",
		r.RunID, r.Slope, r.Intercept, r2, r.TrainRows, r.HeldOutRows, r.Seed)
	fmt.Printf("model saved to %s\n", r.ModelPath)
}
