package infra

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Janitor periodically removes stale temp files left behind when an atomic
// store was interrupted between write and rename.
type Janitor struct {
	scheduler gocron.Scheduler
	logger    Logger
}

// NewJanitor builds a janitor around a UTC scheduler.
func NewJanitor(logger Logger) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("janitor: create scheduler: %w", err)
	}

	return &Janitor{scheduler: scheduler, logger: logger}, nil
}

// ScheduleSweep registers a recurring sweep of dir, removing regular files
// older than maxAge. Call Start to begin executing.
func (j *Janitor) ScheduleSweep(interval time.Duration, dir string, maxAge time.Duration) error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			removed, err := SweepDir(dir, maxAge)
			if err != nil {
				j.logger.Warn().Err(err).Str("dir", dir).Msg("janitor sweep failed")
				return
			}
			if removed > 0 {
				j.logger.Info().Int("removed", removed).Str("dir", dir).Msg("janitor swept temp files")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("janitor: schedule sweep: %w", err)
	}
	return nil
}

// Start launches the scheduler in the background.
func (j *Janitor) Start() {
	j.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (j *Janitor) Shutdown() error {
	return j.scheduler.Shutdown()
}

// SweepDir removes regular files in dir older than maxAge and reports how
// many were deleted. A missing directory is not an error.
func SweepDir(dir string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("janitor: walk %s: %w", dir, err)
	}

	return removed, nil
}
