package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"detailing/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "source.db")
	logger := zerolog.New(io.Discard)
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, db.CreateBooking(context.Background(), newBooking(testDate, "10:00")))
	require.NoError(t, db.Close())
	return dbPath
}

func TestBackupService(t *testing.T) {
	dbPath := sourceDB(t)
	storagePath := filepath.Join(t.TempDir(), "backups")

	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	logger := zerolog.Nop()
	s := NewBackupService(dbPath, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()

		times, err := restored.BookedTimes(context.Background(), testDate)
		require.NoError(t, err)
		assert.Equal(t, []string{"10:00"}, times)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "bookings_20000101_000000.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		unrelated := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))
		require.NoError(t, os.Chtimes(unrelated, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.Len(t, files, 2)
		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, unrelated)
	})
}

func TestBackupService_FileCopyFallback(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "plain.db")
	// not a sqlite file, so VACUUM INTO fails and the copy path runs
	require.NoError(t, os.WriteFile(dbPath, []byte("not a database"), 0o644))

	logger := zerolog.New(io.Discard)
	s := NewBackupService(dbPath, config.BackupConfig{StoragePath: filepath.Join(dir, "out")}, &logger)

	path, err := s.PerformBackup(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a database", string(data))
}

func TestBackupService_StorageNotDirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(tmpFile, nil, 0o644))

	cfg := config.BackupConfig{Enabled: true, StoragePath: filepath.Join(tmpFile, "subdir")}
	s := NewBackupService(sourceDB(t), cfg, nil)

	_, err := s.PerformBackup(context.Background())
	assert.Error(t, err)
}

func TestBackupService_Start(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		s := NewBackupService("any", config.BackupConfig{Enabled: false}, nil)
		assert.NoError(t, s.Start(context.Background()))
	})

	t.Run("InvalidSchedule", func(t *testing.T) {
		s := NewBackupService(sourceDB(t), config.BackupConfig{Enabled: true, Schedule: "not a cron"}, nil)
		assert.Error(t, s.Start(context.Background()))
	})

	t.Run("StopsOnCancel", func(t *testing.T) {
		cfg := config.BackupConfig{Enabled: true, Schedule: "@every 1h", StoragePath: t.TempDir()}
		s := NewBackupService(sourceDB(t), cfg, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Start(ctx) }()

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("backup service did not stop")
		}
	})
}

func TestSnapshotTime(t *testing.T) {
	taken, ok := snapshotTime("bookings_20240610_183000.db")
	require.True(t, ok)
	assert.Equal(t, 18, taken.Hour())
	assert.Equal(t, time.June, taken.Month())

	for _, name := range []string{"notes.txt", "bookings_latest.db", "bookings_20240610_183000.db-wal"} {
		_, ok := snapshotTime(name)
		assert.False(t, ok, name)
	}
}

func TestCleanupOldBackups_UsesNameNotMtime(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "bookings_20240610_000000.db")
	require.NoError(t, os.WriteFile(fresh, nil, 0o644))
	// mtime says ancient, the name says recent
	old := time.Now().AddDate(-1, 0, 0)
	require.NoError(t, os.Chtimes(fresh, old, old))

	s := NewBackupService("any", config.BackupConfig{StoragePath: dir, RetentionDays: 7}, nil)
	s.now = func() time.Time { return time.Date(2024, 6, 12, 0, 0, 0, 0, time.Local) }

	assert.Equal(t, 0, s.CleanupOldBackups())
	assert.FileExists(t, fresh)

	s.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.Local) }
	assert.Equal(t, 1, s.CleanupOldBackups())
	assert.NoFileExists(t, fresh)
}
