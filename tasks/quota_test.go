package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

func TestRemainingTurnsNeverNegative(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)
	tr := &Tracker{Accounts: newMemAccounts(), Now: func() time.Time { return now }}

	user := &models.User{
		Username:       "minh",
		LastAccessDate: DayString(now),
		DailyTasks:     models.DailyCounts{"layma": 7},
	}

	// counter already past the cap (cap was lowered in the catalog)
	remaining, err := tr.RemainingTurns(context.Background(), user, "layma", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestRemainingTurnsPerTask(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)
	tr := &Tracker{Accounts: newMemAccounts(), Now: func() time.Time { return now }}

	user := &models.User{
		Username:       "minh",
		LastAccessDate: DayString(now),
		DailyTasks:     models.DailyCounts{"layma": 2},
	}

	remaining, err := tr.RemainingTurns(context.Background(), user, "layma", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// a different task is unaffected by layma's exhaustion
	remaining, err = tr.RemainingTurns(context.Background(), user, "traffictot", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestRemainingTurnsResetsOnNewDay(t *testing.T) {
	accounts := newMemAccounts()
	now := time.Date(2026, 3, 15, 0, 0, 1, 0, time.Local) // just past midnight
	tr := &Tracker{Accounts: accounts, Now: func() time.Time { return now }}

	user := &models.User{
		Username:       "minh",
		LastAccessDate: "2026-03-14",
		DailyTasks:     models.DailyCounts{"layma": 2, "traffictot": 3},
	}

	remaining, err := tr.RemainingTurns(context.Background(), user, "layma", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	assert.Empty(t, user.DailyTasks)
	assert.Equal(t, "2026-03-15", user.LastAccessDate)

	// the reset was persisted immediately, for every task at once
	require.Len(t, accounts.saves, 1)
	assert.Equal(t, "minh", accounts.saves[0].Username)
	assert.Equal(t, "2026-03-15", accounts.saves[0].Date)
	assert.Empty(t, accounts.saves[0].Daily)

	// same-day rechecks do not write again
	_, err = tr.RemainingTurns(context.Background(), user, "traffictot", 3)
	require.NoError(t, err)
	assert.Len(t, accounts.saves, 1)
}

func TestDayString(t *testing.T) {
	ts := time.Date(2026, 3, 14, 23, 59, 59, 0, time.Local)
	assert.Equal(t, "2026-03-14", DayString(ts))
	assert.Equal(t, "2026-03-15", DayString(ts.Add(time.Second)))
}
