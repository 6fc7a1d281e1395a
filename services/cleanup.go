package services

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"

	"slide-search-platform/internal/logger"
)

// CleanupService removes uploaded documents and rendered slide images that
// are older than the retention window.
type CleanupService struct {
	scheduler *gocron.Scheduler
	dirs      []string
	maxAge    time.Duration
}

// NewCleanupService creates the cleanup job over the given directories.
// maxAgeDays is the retention window for files in those directories.
func NewCleanupService(dirs []string, maxAgeDays int) *CleanupService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &CleanupService{
		scheduler: s,
		dirs:      dirs,
		maxAge:    time.Duration(maxAgeDays) * 24 * time.Hour,
	}
}

// Start schedules the daily sweep and runs the scheduler in the background.
func (s *CleanupService) Start() error {
	if _, err := s.scheduler.Every(24 * time.Hour).Tag("file-cleanup").Do(s.Sweep); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler.
func (s *CleanupService) Stop() {
	s.scheduler.Stop()
}

// Sweep deletes expired files across all managed directories. Per-file errors
// are logged and do not stop the sweep.
func (s *CleanupService) Sweep() error {
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, dir := range s.dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // directory may not exist yet
			}
			if info.IsDir() || info.ModTime().After(cutoff) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				logger.Warn("cleanup could not remove file", "path", path, "error", err)
				return nil
			}
			removed++
			return nil
		})
		if err != nil {
			logger.Warn("cleanup walk failed", "dir", dir, "error", err)
		}
	}

	logger.Info("cleanup sweep finished", "removed", removed, "max_age", s.maxAge.String())
	return nil
}
