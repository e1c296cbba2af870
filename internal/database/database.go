package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"detailing/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrSlotTaken              = errors.New("slot already booked")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrBuildQuery             = errors.New("build query")
)

type DB struct {
	*sql.DB
	path   string
	sb     squirrel.StatementBuilderType
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if !isMemory(path) {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; :memory: also needs one shared connection
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		path:   path,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	blocking := "'" + strings.Join(models.BlockingStatuses, "','") + "'"

	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            customer_name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            postcode TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            service_type TEXT NOT NULL,
            vehicle_size TEXT NOT NULL,
            add_ons TEXT NOT NULL DEFAULT '[]',
            booking_date TEXT NOT NULL,
            booking_time TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            base_price REAL NOT NULL DEFAULT 0,
            add_ons_price REAL NOT NULL DEFAULT 0,
            travel_fee REAL NOT NULL DEFAULT 0,
            total_price REAL NOT NULL DEFAULT 0,
            notes TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// Один активный заказ на слот
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_slot
            ON bookings(booking_date, booking_time)
            WHERE status IN (` + blocking + `)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func dsn(path string) string {
	if isMemory(path) {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
