package models

import (
	"time"

	"gorm.io/gorm"
)

// UserStatus is the admin-managed risk status of an account.
type UserStatus string

const (
	UserStatusNormal     UserStatus = "normal"
	UserStatusSuspicious UserStatus = "suspicious"
	UserStatusBanned     UserStatus = "banned"
)

// DailyCounts maps a task identifier to the number of turns completed today.
// Reset wholesale when the calendar day changes, never per key.
type DailyCounts map[string]int

// User is the canonical account record. Balance, daily counters and both
// history ledgers hang off this row; it is the single source of truth
// across a user's devices.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"index" json:"email,omitempty"`
	Phone    string `gorm:"index" json:"phone,omitempty"`
	Password string `gorm:"not null" json:"-"` // bcrypt hash, never serialized

	Balance        int64       `gorm:"not null;default:0" json:"balance"`
	TasksCompleted int         `gorm:"not null;default:0" json:"tasks_completed"`
	DailyTasks     DailyCounts `gorm:"serializer:json;type:jsonb" json:"daily_tasks"`
	LastAccessDate string      `json:"last_access_date"` // calendar day DailyTasks is valid for

	ReferralCode    string  `gorm:"uniqueIndex" json:"referral_code"`
	ReferredBy      *string `gorm:"index" json:"referred_by,omitempty"` // referrer's username
	TotalReferrals  int     `gorm:"not null;default:0" json:"total_referrals"`
	TotalCommission float64 `gorm:"not null;default:0" json:"total_commission"`

	BankName        string `json:"bank_name,omitempty"`
	BankAccount     string `gorm:"index" json:"bank_account,omitempty"`
	BankAccountName string `json:"bank_account_name,omitempty"`

	ProfilePicture string     `json:"profile_picture,omitempty"`
	LastIP         string     `gorm:"index" json:"last_ip,omitempty"`
	Status         UserStatus `gorm:"not null;default:'normal';index" json:"status"`
	FraudReason    string     `json:"fraud_reason,omitempty"`
	IsAdmin        bool       `gorm:"not null;default:false" json:"is_admin"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
