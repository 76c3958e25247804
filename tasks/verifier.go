package tasks

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

// Callback carries the transient return-redirect parameters. It is consumed
// once and never persisted. All five fields are untrusted client input.
type Callback struct {
	Status string // must be the literal "success"
	Reward string // display-only; the credited amount comes from the catalog
	Task   string // display name, free text
	TaskID string
	Key    string
}

// Outcome classifies what a callback did.
type Outcome int

const (
	// OutcomeIgnored: malformed parameters or no live attempt, i.e. a stale or
	// duplicate navigation, silently dropped rather than treated as an error.
	OutcomeIgnored Outcome = iota
	// OutcomeRejected: key or task id mismatch. The pending record is left
	// untouched and nothing is credited.
	OutcomeRejected
	// OutcomeVerified: attempt matched and the reward was credited.
	OutcomeVerified
	// OutcomeReplayed: the key was already consumed; no second credit.
	OutcomeReplayed
	// OutcomeQuotaExhausted: the server-side daily cap was already reached,
	// the attempt is recorded as failed with no credit.
	OutcomeQuotaExhausted
)

// Result of one callback.
type Result struct {
	Outcome        Outcome
	TaskName       string
	Reward         int64
	Balance        int64
	TurnsRemaining int
}

// Verifier drives the completion state machine: a returning redirect either
// matches the live pending record and settles, or is rejected/ignored
// without touching any balance.
type Verifier struct {
	Catalog *Catalog
	Tracker *Tracker
	Pending PendingStore
	Settler Settler
	Now     func() time.Time
}

// Verify consumes one callback for the user. The flow is settle-then-clear:
// settlement's consumed-key constraint is the authoritative replay guard, so
// a crash after the credit but before the slot is cleared can at worst make
// the retry a no-op, never a double credit.
func (v *Verifier) Verify(ctx context.Context, user *models.User, cb Callback) (Result, error) {
	if cb.Status != "success" || cb.Key == "" || cb.TaskID == "" {
		return Result{Outcome: OutcomeIgnored}, nil
	}

	rec, err := v.Pending.Get(ctx, user.Username)
	if err != nil {
		return Result{}, err
	}
	if rec == nil {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	if rec.Key != cb.Key || rec.TaskID != cb.TaskID {
		return Result{Outcome: OutcomeRejected}, nil
	}

	def, ok := v.Catalog.Get(rec.TaskID)
	if !ok {
		// pending row for a task that no longer exists; drop it quietly
		_ = v.Pending.Clear(ctx, user.Username)
		return Result{Outcome: OutcomeIgnored}, nil
	}
	// The credited amount is re-derived from the catalog. The reward carried
	// in the URL is display-only and never trusted.
	if cb.Reward != "" && cb.Reward != strconv.FormatInt(def.Reward, 10) {
		log.Printf("⚠️ reward param %q disagrees with catalog value %d for task %s (user %s)",
			cb.Reward, def.Reward, def.ID, user.Username)
	}

	remaining, err := v.Tracker.RemainingTurns(ctx, user, def.ID, def.MaxTurns)
	if err != nil {
		return Result{}, err
	}

	status := models.TaskStatusSuccess
	outcome := OutcomeVerified
	if remaining <= 0 {
		// issue-time quota was checked, but the server count is final
		status = models.TaskStatusFailed
		outcome = OutcomeQuotaExhausted
	}

	credit, err := v.Settler.Credit(ctx, user.Username, def, cb.Key, status)
	if err != nil {
		return Result{}, err
	}

	if err := v.Pending.Clear(ctx, user.Username); err != nil {
		// already settled; the stale slot will lazy-expire
		log.Printf("❌ failed to clear pending slot for %s after settlement: %v", user.Username, err)
	}

	if credit.Replayed {
		return Result{Outcome: OutcomeReplayed, TaskName: def.Name}, nil
	}
	if outcome == OutcomeVerified {
		user.Balance = credit.Balance
		user.TasksCompleted = credit.TasksCompleted
		if user.DailyTasks == nil {
			user.DailyTasks = models.DailyCounts{}
		}
		user.DailyTasks[def.ID] = credit.TurnsDone
	}

	turnsRemaining := def.MaxTurns - user.DailyTasks[def.ID]
	if turnsRemaining < 0 {
		turnsRemaining = 0
	}
	return Result{
		Outcome:        outcome,
		TaskName:       def.Name,
		Reward:         def.Reward,
		Balance:        user.Balance,
		TurnsRemaining: turnsRemaining,
	}, nil
}
