package models

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// BlockingStatuses are the booking states that occupy a slot.
var BlockingStatuses = []string{StatusPending, StatusConfirmed, StatusInProgress}

func IsBlockingStatus(status string) bool {
	for _, s := range BlockingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

const (
	// DefaultSlotCacheTTL время жизни кэша занятых слотов
	DefaultSlotCacheTTL = 2 * 60 // 2 минуты в секундах

	// DefaultMaxAdvanceDays горизонт бронирования по умолчанию
	DefaultMaxAdvanceDays = 90

	// DefaultTimezone часовой пояс расписания
	DefaultTimezone = "Europe/London"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"
)
