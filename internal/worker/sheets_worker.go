package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"detailing/internal/database"
	"detailing/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey      = "sheets:queue"
	defaultDeadLetterKey = "sheets:deadletter"
	memoryQueueSize      = 128
)

// SheetsClient is the part of the Sheets service the worker writes through.
type SheetsClient interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

// syncPayload is stored as JSON in SyncTask.Payload.
type syncPayload struct {
	BookingID int64           `json:"booking_id"`
	Booking   *models.Booking `json:"booking,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// SheetsWorker mirrors booking changes into the bookings sheet.
//
// Every task is written to sync_queue first, so the database is the source of
// truth. Redis and the in-memory channel only make delivery faster; anything
// they lose is picked up by polling.
type SheetsWorker struct {
	db     *database.DB
	sheets SheetsClient
	redis  *redis.Client
	retry  RetryPolicy
	logger *zerolog.Logger

	memory        chan models.SyncTask
	queueKey      string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
}

// NewSheetsWorker builds a worker. redisClient may be nil.
func NewSheetsWorker(db *database.DB, sheets SheetsClient, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsWorker{
		db:            db,
		sheets:        sheets,
		redis:         redisClient,
		retry:         retry.withDefaults(),
		logger:        logger,
		memory:        make(chan models.SyncTask, memoryQueueSize),
		queueKey:      defaultQueueKey,
		deadLetterKey: defaultDeadLetterKey,
		pollInterval:  2 * time.Second,
		batchSize:     20,
	}
}

// EnqueueTask records a sheet change for booking. bookingID falls back to booking.ID.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if bookingID == 0 && booking != nil {
		bookingID = booking.ID
	}
	if bookingID == 0 {
		return errors.New("booking id is required")
	}

	raw, err := json.Marshal(syncPayload{BookingID: bookingID, Booking: booking, Status: status})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	task := models.SyncTask{
		TaskType:  taskType,
		BookingID: bookingID,
		Payload:   string(raw),
		Status:    models.SyncStatusPending,
	}
	if err := w.db.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	w.announce(ctx, task)
	return nil
}

// announce hands a persisted task to redis, or to the memory channel when redis is absent or failing.
func (w *SheetsWorker) announce(ctx context.Context, task models.SyncTask) {
	if w.redis != nil {
		err := w.pushList(ctx, w.queueKey, task)
		if err == nil {
			return
		}
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, using memory queue")
	}

	select {
	case w.memory <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
}

// RequeueFailed puts every failed task back to pending and returns how many.
// Each requeued task gets one more attempt before it fails again.
func (w *SheetsWorker) RequeueFailed(ctx context.Context) (int, error) {
	failed, err := w.db.GetFailedSyncTasks(ctx)
	if err != nil {
		return 0, err
	}
	for i := range failed {
		if err := w.db.UpdateSyncTaskStatus(ctx, failed[i].ID, models.SyncStatusPending, "", nil); err != nil {
			return i, fmt.Errorf("requeue task %d: %w", failed[i].ID, err)
		}
	}
	if len(failed) > 0 {
		w.logger.Info().Int("count", len(failed)).Msg("failed sheet tasks requeued")
	}
	return len(failed), nil
}

// Start runs until ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll", w.pollInterval).Bool("redis", w.redis != nil).Msg("sheets worker started")
	defer w.logger.Info().Msg("sheets worker stopped")

	for ctx.Err() == nil {
		if task, ok := w.next(ctx); ok {
			w.apply(ctx, &task)
			continue
		}
		if w.drainDue(ctx) == 0 {
			w.sleep(ctx)
		}
	}
}

// next takes a pushed task: memory first, then redis.
func (w *SheetsWorker) next(ctx context.Context) (models.SyncTask, bool) {
	if task, ok := w.fromMemory(); ok {
		return task, true
	}
	return w.fromRedis(ctx)
}

func (w *SheetsWorker) fromMemory() (models.SyncTask, bool) {
	select {
	case task := <-w.memory:
		return task, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) fromRedis(ctx context.Context) (models.SyncTask, bool) {
	var task models.SyncTask
	if w.redis == nil {
		return task, false
	}

	res, err := w.redis.BRPop(ctx, time.Second, w.queueKey).Result()
	switch {
	case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return task, false
	case err != nil:
		w.logger.Warn().Err(err).Msg("redis brpop failed")
		return task, false
	case len(res) != 2:
		return task, false
	}

	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("undecodable task on redis queue")
		return models.SyncTask{}, false
	}
	return task, true
}

// drainDue applies one batch of due tasks from sync_queue.
func (w *SheetsWorker) drainDue(ctx context.Context) int {
	tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("cannot load due sync tasks")
		return 0
	}
	for i := range tasks {
		w.apply(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *SheetsWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *SheetsWorker) apply(ctx context.Context, task *models.SyncTask) {
	payload, err := decodePayload(task.Payload)
	if err != nil {
		// retrying a broken payload cannot help
		w.giveUp(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.dispatch(ctx, task.TaskType, payload); err != nil {
		w.reschedule(ctx, task, err)
		return
	}

	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("cannot mark sync task completed")
	}
}

func (w *SheetsWorker) dispatch(ctx context.Context, taskType string, p syncPayload) error {
	switch taskType {
	case models.SyncTaskUpsert:
		if p.Booking == nil {
			return errors.New("upsert without booking")
		}
		return w.sheets.UpsertBooking(ctx, p.Booking)
	case models.SyncTaskUpdateStatus:
		if p.BookingID == 0 || p.Status == "" {
			return errors.New("status update needs booking id and status")
		}
		return w.sheets.UpdateBookingStatus(ctx, p.BookingID, p.Status)
	}
	return fmt.Errorf("unknown task type %q", taskType)
}

func (w *SheetsWorker) reschedule(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retry.Exhausted(attempt) {
		w.giveUp(ctx, task, cause)
		return
	}

	at := w.retry.NextRetryAt(time.Now(), attempt)
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &at); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("cannot schedule sync retry")
		return
	}
	w.logger.Warn().Err(cause).
		Int64("task_id", task.ID).
		Int64("booking_id", task.BookingID).
		Int("attempt", attempt).
		Time("retry_at", at).
		Msg("sheet sync failed, retrying later")
}

// giveUp marks the task failed and copies it to the dead-letter list when redis is available.
func (w *SheetsWorker) giveUp(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("cannot mark sync task failed")
	}
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Int64("booking_id", task.BookingID).Msg("sheet sync abandoned")

	if w.redis == nil {
		return
	}
	if err := w.pushList(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead-letter push failed")
	}
}

func decodePayload(raw string) (syncPayload, error) {
	var p syncPayload
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}

func (w *SheetsWorker) pushList(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
