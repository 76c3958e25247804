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

// PendingTTL is how long an issued attempt stays verifiable.
const PendingTTL = 10 * time.Minute

// PendingStore is the single-slot store of in-flight task attempts: at most
// one record per user, Put always replaces, and every reader treats expired
// records as absent without needing an eviction pass.
type PendingStore interface {
	Get(ctx context.Context, username string) (*models.PendingTask, error)
	Put(ctx context.Context, rec *models.PendingTask) error
	Clear(ctx context.Context, username string) error
}

// Expired reports whether the record's TTL has elapsed at instant now.
// The TTL is measured from the original creation timestamp; a reload does
// not restart the clock.
func Expired(rec *models.PendingTask, now time.Time) bool {
	return now.Sub(rec.Timestamp) >= PendingTTL
}

// GormPendingStore keeps one pending row per user.
type GormPendingStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *GormPendingStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get returns the live pending record, or nil when none exists. A record
// observed expired is cleared eagerly and reported as absent.
func (s *GormPendingStore) Get(ctx context.Context, username string) (*models.PendingTask, error) {
	var rec models.PendingTask
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if Expired(&rec, s.now()) {
		if err := s.Clear(ctx, username); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &rec, nil
}

// Put writes the user's slot, replacing whatever was there.
func (s *GormPendingStore) Put(ctx context.Context, rec *models.PendingTask) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"task_id",
			"task_name",
			"short_url",
			"key",
			"timestamp",
		}),
	}).Create(rec).Error
}

func (s *GormPendingStore) Clear(ctx context.Context, username string) error {
	return s.DB.WithContext(ctx).Where("username = ?", username).Delete(&models.PendingTask{}).Error
}
