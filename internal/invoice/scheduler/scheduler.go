package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"invoice-backend/pkg/logger"

	"go.uber.org/zap"
)

// ProgressPruner is satisfied by the progress tracker.
type ProgressPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// ExportCleanupScheduler removes old batch-export zips and stale job progress
type ExportCleanupScheduler struct {
	staticDir   string
	retention   time.Duration
	progress    ProgressPruner
	progressTTL time.Duration
	interval    time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
	log         *zap.Logger
}

// NewExportCleanupScheduler creates a new scheduler
func NewExportCleanupScheduler(staticDir string, retention time.Duration, progress ProgressPruner, progressTTL time.Duration) *ExportCleanupScheduler {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &ExportCleanupScheduler{
		staticDir:   staticDir,
		retention:   retention,
		progress:    progress,
		progressTTL: progressTTL,
		interval:    10 * time.Minute,
		stopChan:    make(chan struct{}),
		now:         time.Now,
		log:         logger.Named("cleanup"),
	}
}

// Start begins the scheduler loop
func (s *ExportCleanupScheduler) Start() {
	s.log.Info("export cleanup scheduler started", zap.Duration("interval", s.interval), zap.Duration("retention", s.retention))

	go func() {
		s.RunOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				s.log.Info("export cleanup scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *ExportCleanupScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunOnce performs one cleanup pass and returns the number of zips removed.
func (s *ExportCleanupScheduler) RunOnce() int {
	removed := s.removeExpiredExports()

	if s.progress != nil && s.progressTTL > 0 {
		n, err := s.progress.Prune(context.Background(), s.now().Add(-s.progressTTL))
		if err != nil {
			s.log.Warn("progress prune failed", zap.Error(err))
		} else if n > 0 {
			s.log.Info("pruned job progress", zap.Int("jobs", n))
		}
	}
	return removed
}

func (s *ExportCleanupScheduler) removeExpiredExports() int {
	matches, err := filepath.Glob(filepath.Join(s.staticDir, "user_*", "selected_invoices_*.zip"))
	if err != nil {
		s.log.Warn("glob exports failed", zap.Error(err))
		return 0
	}

	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".zip") {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.log.Warn("remove export failed", zap.String("file", path), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("removed expired exports", zap.Int("files", removed))
	}
	return removed
}
