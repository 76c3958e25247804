package tasks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

// AccountStore persists the pieces of the user record the task flow owns.
type AccountStore interface {
	SaveDailyState(ctx context.Context, username string, daily models.DailyCounts, date string) error
}

// Tracker enforces the per-user, per-task, per-day turn limits. The
// calendar-day reset lives here and nowhere else: every quota read goes
// through RemainingTurns, so no call site can observe stale counters.
type Tracker struct {
	Accounts AccountStore
	Now      func() time.Time // defaults to time.Now
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// DayString buckets an instant into its local calendar day.
func DayString(ts time.Time) string {
	return ts.Format("2006-01-02")
}

// RemainingTurns returns how many turns the user has left for the task
// today, never negative. When the stored day differs from today the daily
// counters are reset wholesale and the reset is persisted immediately, so a
// crash between the reset and the next check cannot skip it.
func (t *Tracker) RemainingTurns(ctx context.Context, user *models.User, taskID string, maxTurns int) (int, error) {
	today := DayString(t.now())
	if user.LastAccessDate != today {
		user.LastAccessDate = today
		user.DailyTasks = models.DailyCounts{}
		if err := t.Accounts.SaveDailyState(ctx, user.Username, user.DailyTasks, today); err != nil {
			return 0, fmt.Errorf("persist daily reset: %w", err)
		}
	}
	if remaining := maxTurns - user.DailyTasks[taskID]; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

// GormAccounts persists task-flow user state to Postgres.
type GormAccounts struct {
	DB *gorm.DB
}

func (a *GormAccounts) SaveDailyState(ctx context.Context, username string, daily models.DailyCounts, date string) error {
	return a.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Select("daily_tasks", "last_access_date").
		Updates(models.User{DailyTasks: daily, LastAccessDate: date}).Error
}
