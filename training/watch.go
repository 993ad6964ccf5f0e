package training

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// settle is how long a burst of write events must be quiet before fn runs.
const settle = 300 * time.Millisecond

// Watch calls fn after each change to the file at path until ctx is done. The parent
// directory is watched so editors that replace the file by rename are still seen.
func Watch(ctx context.Context, path string, logger *zap.Logger, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching dataset", zap.String("path", abs))

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("dataset changed", zap.String("op", event.Op.String()))
			resetTimer(timer, settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			fn()
		}
	}
}

// resetTimer restarts t, dropping a tick that fired but was never received.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// Schedule starts a cron job running fn on spec ("@every 1h", "0 3 * * *", ...).
// The caller stops the returned scheduler.
func Schedule(spec string, logger *zap.Logger, fn func()) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, fn); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c.Start()
	logger.Info("training scheduled", zap.String("schedule", spec))
	return c, nil
}
