package models

import "time"

// WithdrawalStatus tracks a withdrawal row through admin review.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// Withdrawal is an append-only ledger row. Only Status and ProcessedAt ever
// change after insert (pending -> completed|rejected under admin review).
type Withdrawal struct {
	ID       string           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username string           `gorm:"index;not null" json:"username"`
	Amount   int64            `gorm:"not null" json:"amount"`
	Method   string           `gorm:"not null" json:"method"` // bank name at request time
	Status   WithdrawalStatus `gorm:"not null;default:'pending';index" json:"status"`

	Timestamp   time.Time  `gorm:"not null;index" json:"timestamp"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
