package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"detailing/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	snapshotPrefix = "bookings_"
	snapshotSuffix = ".db"
	snapshotLayout = "20060102_150405"
)

// BackupService snapshots the bookings database on a cron schedule and
// prunes snapshots past the retention window.
type BackupService struct {
	dbPath string
	cfg    config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BackupService{dbPath: dbPath, cfg: cfg, logger: logger, now: time.Now}
}

// Start blocks until ctx is done. A disabled service or an in-memory database returns immediately.
func (s *BackupService) Start(ctx context.Context) error {
	switch {
	case !s.cfg.Enabled:
		s.logger.Info().Msg("backups disabled")
		return nil
	case isMemory(s.dbPath):
		s.logger.Warn().Msg("in-memory database, nothing to back up")
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(s.cfg.Schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", s.cfg.Schedule, err)
	}
	scheduler.Start()
	s.logger.Info().Str("schedule", s.cfg.Schedule).Str("dir", s.cfg.StoragePath).Msg("backups scheduled")

	<-ctx.Done()
	<-scheduler.Stop().Done()
	s.logger.Info().Msg("backups stopped")
	return nil
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled backup failed")
	}
	if n := s.CleanupOldBackups(); n > 0 {
		s.logger.Info().Int("removed", n).Msg("old snapshots pruned")
	}
}

// PerformBackup writes a consistent snapshot and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	target := filepath.Join(s.cfg.StoragePath, snapshotPrefix+s.now().Format(snapshotLayout)+snapshotSuffix)

	if err := vacuumInto(ctx, s.dbPath, target); err != nil {
		// VACUUM INTO needs a readable sqlite file; anything else is copied as-is
		s.logger.Warn().Err(err).Msg("vacuum into failed, copying the file instead")
		if err := copyAtomic(s.dbPath, target); err != nil {
			return "", fmt.Errorf("copy database: %w", err)
		}
	}

	s.logger.Info().Str("path", target).Msg("backup written")
	return target, nil
}

func vacuumInto(ctx context.Context, src, dst string) error {
	conn, err := sql.Open("sqlite3", src)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, "VACUUM INTO ?", dst)
	return err
}

// copyAtomic copies src next to dst and renames it into place.
func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// snapshotTime reads the timestamp encoded in a snapshot file name.
func snapshotTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	t, err := time.ParseInLocation(snapshotLayout, stamp, time.Local)
	return t, err == nil
}

// CleanupOldBackups removes snapshots older than RetentionDays and reports how many went.
// Files that do not look like snapshots are left alone.
func (s *BackupService) CleanupOldBackups() int {
	if s.cfg.RetentionDays <= 0 {
		return 0
	}
	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("cannot list backup dir")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		taken, ok := snapshotTime(entry.Name())
		if !ok || !taken.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.StoragePath, entry.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("cannot remove old snapshot")
			continue
		}
		removed++
	}
	return removed
}
