package database

import (
	"context"
	"fmt"
	"time"

	"detailing/internal/models"

	"github.com/Masterminds/squirrel"
)

var syncTaskColumns = []string{
	"id", "task_type", "booking_id", "payload", "status", "retry_count",
	"last_error", "created_at", "processed_at", "next_retry_at",
}

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := time.Now()

	query, args, err := db.sb.Insert("sync_queue").
		Columns("task_type", "booking_id", "payload", "status", "retry_count", "last_error", "created_at", "next_retry_at").
		Values(task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: CreateSyncTask: %v", ErrBuildQuery, err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

// GetPendingSyncTasks returns pending and retry tasks that are due, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query, args, err := db.sb.Select(syncTaskColumns...).
		From("sync_queue").
		Where(squirrel.Eq{"status": []string{models.SyncStatusPending, models.SyncStatusRetry}}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": time.Now()},
		}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetPendingSyncTasks: %v", ErrBuildQuery, err)
	}
	return db.querySyncTasks(ctx, query, args)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	query, args, err := db.sb.Select(syncTaskColumns...).
		From("sync_queue").
		Where(squirrel.Eq{"status": models.SyncStatusFailed}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetFailedSyncTasks: %v", ErrBuildQuery, err)
	}
	return db.querySyncTasks(ctx, query, args)
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	update := db.sb.Update("sync_queue").
		Set("status", status).
		Set("last_error", lastError).
		Set("next_retry_at", nextRetryAt).
		Where(squirrel.Eq{"id": id})

	switch status {
	case models.SyncStatusRetry:
		update = update.Set("retry_count", squirrel.Expr("retry_count + 1"))
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		update = update.Set("processed_at", time.Now())
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("%w: UpdateSyncTaskStatus: %v", ErrBuildQuery, err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args []interface{}) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.SyncTask{}
	for rows.Next() {
		var t models.SyncTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync tasks: %w", err)
	}
	return tasks, nil
}
