package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"profitrate/config"
	qhttp "profitrate/http"
	"profitrate/locale"
	"profitrate/logging"
	"profitrate/monitoring"
	"profitrate/predictor"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		modelPath  string
		port       int
	)
	cmd := &cobra.Command{
		Use:           "profitrate",
		Short:         "Serve the profit ratio prediction form",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if modelPath != "" {
				cfg.Model.Path = modelPath
			}
			if port != 0 {
				cfg.Http.Port = port
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default config.yaml)")
	cmd.Flags().StringVar(&modelPath, "model", "", "model artifact path")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port")
	return cmd
}

func serve(cfg *config.Config) error {
	// 1. Logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// 2. Load the model once; any failure is fatal
	svc := predictor.New(cfg.Predictor.CacheSize, logger)
	if err := svc.Start(cfg.Model.Path); err != nil {
		logger.Error("predictor failed to start", zap.String("model", cfg.Model.Path), zap.Error(err))
		return err
	}

	catalog, err := locale.New(cfg.Locale.Default)
	if err != nil {
		return fmt.Errorf("init locale: %w", err)
	}
	metrics := monitoring.NewMetrics()
	metrics.SetModel(svc.Model())

	// 3. Start HTTP server
	server, err := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, qhttp.Dependencies{
		Predictor: svc,
		Catalog:   catalog,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
