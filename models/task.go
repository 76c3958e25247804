package models

import "time"

// TaskStatus is the outcome recorded for one task attempt.
type TaskStatus string

const (
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusPending TaskStatus = "pending"
	TaskStatusFailed  TaskStatus = "failed"
)

// PendingTask is the single in-flight task slot for a user: created when a
// shortlink is issued, destroyed on verification or expiry, overwritten by
// the next issue. At most one row per user exists at a time.
type PendingTask struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	TaskID   string `gorm:"not null" json:"task_id"`
	TaskName string `gorm:"not null" json:"task_name"`
	ShortURL string `gorm:"not null" json:"short_url"`
	Key      string `gorm:"not null" json:"key"` // opaque verification token

	// Creation instant of the attempt. The 10-minute TTL is always measured
	// from here, never restarted on reload.
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

// TaskHistory is the append-only ledger of task attempts. Key carries the
// verification key for consumed callbacks; its unique index is the
// server-side idempotency barrier: a second tab replaying the same return
// URL hits the constraint instead of crediting twice.
type TaskHistory struct {
	ID       string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username string     `gorm:"index;not null" json:"username"`
	TaskID   string     `gorm:"index;not null" json:"task_id"`
	TaskName string     `gorm:"not null" json:"task_name"`
	Reward   int64      `gorm:"not null" json:"reward"`
	Status   TaskStatus `gorm:"not null;index" json:"status"`
	Key      *string    `gorm:"uniqueIndex" json:"-"`

	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}
