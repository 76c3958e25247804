package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

var (
	// ErrUnknownTask means the task id matches no catalog definition.
	ErrUnknownTask = errors.New("unknown task")
	// ErrNoTurnsLeft means today's cap for the task is already reached.
	ErrNoTurnsLeft = errors.New("no turns left for this task today")
)

// Shortener obtains an externally shortened link for a callback URL.
type Shortener interface {
	Shorten(ctx context.Context, longURL, network string) (string, error)
}

// Issuer starts task attempts: it mints a one-time verification key, builds
// the signed return URL, has the task's network shorten it, and records the
// attempt in the user's pending slot.
type Issuer struct {
	Catalog   *Catalog
	Tracker   *Tracker
	Pending   PendingStore
	Shortener Shortener
	AppURL    string // base URL the shortened link redirects back to
	Now       func() time.Time
	NewKey    func() (string, error) // defaults to NewKey
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) newKey() (string, error) {
	if i.NewKey != nil {
		return i.NewKey()
	}
	return NewKey()
}

// Issue starts one attempt for the task. Refused while no turns remain,
// before any provider call. A live attempt for the same task is returned
// unchanged so the user can continue it; an attempt for a different task is
// overwritten (single slot, last write wins). On provider failure nothing
// is written and quota is untouched.
func (i *Issuer) Issue(ctx context.Context, user *models.User, taskID string) (*models.PendingTask, error) {
	def, ok := i.Catalog.Get(taskID)
	if !ok {
		return nil, ErrUnknownTask
	}

	remaining, err := i.Tracker.RemainingTurns(ctx, user, def.ID, def.MaxTurns)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, ErrNoTurnsLeft
	}

	if rec, err := i.Pending.Get(ctx, user.Username); err != nil {
		return nil, err
	} else if rec != nil && rec.TaskID == def.ID {
		return rec, nil
	}

	key, err := i.newKey()
	if err != nil {
		return nil, err
	}

	shortURL, err := i.Shortener.Shorten(ctx, i.callbackURL(def, key), def.Network)
	if err != nil {
		return nil, fmt.Errorf("shorten task link: %w", err)
	}

	rec := &models.PendingTask{
		Username:  user.Username,
		TaskID:    def.ID,
		TaskName:  def.Name,
		ShortURL:  shortURL,
		Key:       key,
		Timestamp: i.now(),
	}
	if err := i.Pending.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store pending task: %w", err)
	}
	return rec, nil
}

func (i *Issuer) callbackURL(def Definition, key string) string {
	q := url.Values{}
	q.Set("status", "success")
	q.Set("reward", strconv.FormatInt(def.Reward, 10))
	q.Set("task", def.Name)
	q.Set("taskId", def.ID)
	q.Set("key", key)
	return i.AppURL + "/api/tasks/complete?" + q.Encode()
}
