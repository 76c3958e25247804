package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

// memUserState is the slice of a user row the task flow touches. The
// settler and the account store share it, the same way their Postgres
// counterparts share the users table.
type memUserState struct {
	Balance        int64
	TasksCompleted int
	Daily          models.DailyCounts
	Date           string
}

type savedDailyState struct {
	Username string
	Daily    models.DailyCounts
	Date     string
}

// memAccounts records daily-state writes so tests can assert that a
// calendar reset was persisted, not just applied in memory.
type memAccounts struct {
	mu    sync.Mutex
	users map[string]*memUserState
	saves []savedDailyState
}

func newMemAccounts() *memAccounts {
	return &memAccounts{users: map[string]*memUserState{}}
}

func (a *memAccounts) state(username string) *memUserState {
	st, ok := a.users[username]
	if !ok {
		st = &memUserState{Daily: models.DailyCounts{}}
		a.users[username] = st
	}
	return st
}

func (a *memAccounts) SaveDailyState(_ context.Context, username string, daily models.DailyCounts, date string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := models.DailyCounts{}
	for k, v := range daily {
		copied[k] = v
	}
	st := a.state(username)
	st.Daily = copied
	st.Date = date
	a.saves = append(a.saves, savedDailyState{Username: username, Daily: copied, Date: date})
	return nil
}

// memPending is a single-slot in-memory pending store with the same lazy
// expiry behavior as the Postgres one.
type memPending struct {
	mu   sync.Mutex
	recs map[string]*models.PendingTask
	now  func() time.Time
}

func newMemPending(now func() time.Time) *memPending {
	return &memPending{recs: map[string]*models.PendingTask{}, now: now}
}

func (p *memPending) Get(_ context.Context, username string) (*models.PendingTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.recs[username]
	if !ok {
		return nil, nil
	}
	if Expired(rec, p.now()) {
		delete(p.recs, username)
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (p *memPending) Put(_ context.Context, rec *models.PendingTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *rec
	p.recs[rec.Username] = &cp
	return nil
}

func (p *memPending) Clear(_ context.Context, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.recs, username)
	return nil
}

// memSettler mirrors the transactional settler: a consumed key is refused
// with Replayed, a success credits balance and counters against the shared
// account state, a failed attempt only appends history.
type memSettler struct {
	accounts *memAccounts

	mu       sync.Mutex
	consumed map[string]bool
	history  []models.TaskHistory
}

func newMemSettler(accounts *memAccounts) *memSettler {
	return &memSettler{accounts: accounts, consumed: map[string]bool{}}
}

func (s *memSettler) Credit(_ context.Context, username string, def Definition, key string, status models.TaskStatus) (CreditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed[key] {
		return CreditResult{Replayed: true}, nil
	}
	s.consumed[key] = true
	s.history = append(s.history, models.TaskHistory{
		Username: username,
		TaskID:   def.ID,
		TaskName: def.Name,
		Reward:   def.Reward,
		Status:   status,
		Key:      &key,
	})

	s.accounts.mu.Lock()
	defer s.accounts.mu.Unlock()
	st := s.accounts.state(username)
	if status == models.TaskStatusSuccess {
		st.Balance += def.Reward
		st.TasksCompleted++
		st.Daily[def.ID]++
	}
	return CreditResult{
		Balance:        st.Balance,
		TasksCompleted: st.TasksCompleted,
		TurnsDone:      st.Daily[def.ID],
	}, nil
}

// fakeShortener counts calls; tests use the count to prove that refused
// attempts never reach the provider.
type fakeShortener struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeShortener) Shorten(_ context.Context, longURL, network string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", fmt.Errorf("%s provider unavailable", network)
	}
	return fmt.Sprintf("https://%s.example/s/%d", network, f.calls), nil
}

func (f *fakeShortener) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCatalog() *Catalog {
	return &Catalog{
		defs: map[string]Definition{
			"traffictot": {ID: "traffictot", Name: "TrafficTot link", Reward: 50, MaxTurns: 3, Network: "traffictot"},
			"layma":      {ID: "layma", Name: "LayMa link", Reward: 55, MaxTurns: 2, Network: "layma"},
		},
		order: []string{"traffictot", "layma"},
	}
}
