package tasks

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// one connection so SET search_path holds for every statement
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	require.NoError(t, db.Exec(fmt.Sprintf("CREATE SCHEMA %s", schema)).Error)
	require.NoError(t, db.Exec(fmt.Sprintf("SET search_path TO %s", schema)).Error)
	t.Cleanup(func() {
		_ = db.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", schema)).Error
	})

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.PendingTask{}, &models.TaskHistory{}))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		Username:       username,
		Password:       "x",
		ReferralCode:   username + "-code",
		DailyTasks:     models.DailyCounts{},
		LastAccessDate: DayString(time.Now()),
		Status:         models.UserStatusNormal,
	}).Error)
}

func TestGormPendingStoreSingleSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := &GormPendingStore{DB: db}

	first := &models.PendingTask{
		Username:  "minh",
		TaskID:    "traffictot",
		TaskName:  "TrafficTot link",
		ShortURL:  "https://traffictot.example/a",
		Key:       "aaaaaaaaaaaaaaaa",
		Timestamp: time.Now(),
	}
	require.NoError(t, store.Put(ctx, first))

	// replacing the slot keeps one row per user
	second := &models.PendingTask{
		Username:  "minh",
		TaskID:    "layma",
		TaskName:  "LayMa link",
		ShortURL:  "https://layma.example/b",
		Key:       "bbbbbbbbbbbbbbbb",
		Timestamp: time.Now(),
	}
	require.NoError(t, store.Put(ctx, second))

	var count int64
	require.NoError(t, db.Model(&models.PendingTask{}).Where("username = ?", "minh").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	rec, err := store.Get(ctx, "minh")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "layma", rec.TaskID)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", rec.Key)
}

func TestGormPendingStoreLazyExpiry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created := time.Now().Add(-PendingTTL - time.Minute)
	store := &GormPendingStore{DB: db}
	require.NoError(t, store.Put(ctx, &models.PendingTask{
		Username:  "minh",
		TaskID:    "traffictot",
		TaskName:  "TrafficTot link",
		ShortURL:  "https://traffictot.example/a",
		Key:       "aaaaaaaaaaaaaaaa",
		Timestamp: created,
	}))

	rec, err := store.Get(ctx, "minh")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// the expired row was removed, not just hidden
	var count int64
	require.NoError(t, db.Model(&models.PendingTask{}).Where("username = ?", "minh").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestGormSettlerCreditAndReplay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "minh")

	settler := &GormSettler{DB: db}
	def := Definition{ID: "traffictot", Name: "TrafficTot link", Reward: 50, MaxTurns: 3, Network: "traffictot"}

	res, err := settler.Credit(ctx, "minh", def, "aaaaaaaaaaaaaaaa", models.TaskStatusSuccess)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, int64(50), res.Balance)
	assert.Equal(t, 1, res.TasksCompleted)
	assert.Equal(t, 1, res.TurnsDone)

	// same key again: refused, nothing changes
	res, err = settler.Credit(ctx, "minh", def, "aaaaaaaaaaaaaaaa", models.TaskStatusSuccess)
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	var user models.User
	require.NoError(t, db.First(&user, "username = ?", "minh").Error)
	assert.Equal(t, int64(50), user.Balance)
	assert.Equal(t, 1, user.TasksCompleted)
	assert.Equal(t, 1, user.DailyTasks["traffictot"])

	var historyCount int64
	require.NoError(t, db.Model(&models.TaskHistory{}).Where("username = ?", "minh").Count(&historyCount).Error)
	assert.Equal(t, int64(1), historyCount)
}

func TestGormSettlerFailedAttemptRecordsWithoutCredit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "minh")

	settler := &GormSettler{DB: db}
	def := Definition{ID: "layma", Name: "LayMa link", Reward: 55, MaxTurns: 2, Network: "layma"}

	res, err := settler.Credit(ctx, "minh", def, "cccccccccccccccc", models.TaskStatusFailed)
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	var user models.User
	require.NoError(t, db.First(&user, "username = ?", "minh").Error)
	assert.Zero(t, user.Balance)
	assert.Zero(t, user.TasksCompleted)

	var row models.TaskHistory
	require.NoError(t, db.First(&row, "username = ?", "minh").Error)
	assert.Equal(t, models.TaskStatusFailed, row.Status)
}
