package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

// errKeyConsumed aborts a settlement transaction on a replayed key.
var errKeyConsumed = errors.New("verification key already consumed")

// CreditResult reports the account after settlement.
type CreditResult struct {
	Balance        int64
	TasksCompleted int
	TurnsDone      int
	Replayed       bool
}

// Settler durably applies one verified attempt to the user's balance and
// history. Credit is atomic and must refuse a key it has seen before; that
// refusal, not any client-side URL scrubbing, is what makes duplicate
// callbacks from other tabs or devices safe.
type Settler interface {
	Credit(ctx context.Context, username string, def Definition, key string, status models.TaskStatus) (CreditResult, error)
}

// GormSettler settles inside a single Postgres transaction. Requires the
// gorm connection to be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
type GormSettler struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *GormSettler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Credit appends the history row and, for a success, credits the balance
// and bumps the counters, all in one transaction. The history row's unique
// key index is the idempotency barrier: a replayed key fails the insert and
// the whole transaction unwinds with Replayed set and nothing credited.
func (s *GormSettler) Credit(ctx context.Context, username string, def Definition, key string, status models.TaskStatus) (CreditResult, error) {
	var out CreditResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		k := key
		entry := models.TaskHistory{
			ID:        uuid.NewString(),
			Username:  username,
			TaskID:    def.ID,
			TaskName:  def.Name,
			Reward:    def.Reward,
			Status:    status,
			Key:       &k,
			Timestamp: s.now(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errKeyConsumed
			}
			return err
		}

		if status != models.TaskStatusSuccess {
			return nil // attempt recorded, nothing to credit
		}

		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "username = ?", username).Error; err != nil {
			return err
		}
		if user.DailyTasks == nil {
			user.DailyTasks = models.DailyCounts{}
		}
		user.Balance += def.Reward
		user.TasksCompleted++
		user.DailyTasks[def.ID]++
		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		out.Balance = user.Balance
		out.TasksCompleted = user.TasksCompleted
		out.TurnsDone = user.DailyTasks[def.ID]
		return nil
	})
	if errors.Is(err, errKeyConsumed) {
		return CreditResult{Replayed: true}, nil
	}
	if err != nil {
		return CreditResult{}, err
	}
	return out, nil
}
