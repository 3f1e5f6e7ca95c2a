// Package databasetest provides a scriptable in-memory database.Store for tests.
package databasetest

import (
	"context"
	"sync"
	"time"

	"github.com/kebairia/redis-backup/internal/database"
)

// Never disables snapshot completion.
const Never = -1

// Store is a fake store. After TriggerSnapshot is accepted, the completion
// timestamp advances on the CompleteAfter-th poll (Never keeps it frozen).
type Store struct {
	mu sync.Mutex

	Name          string
	Reject        bool
	TriggerErr    error
	LastSaveErr   error
	LastSave      time.Time
	Config        map[string]string
	ConfigErr     error
	CompleteAfter int
	// OnComplete runs once, when the snapshot completes.
	OnComplete func()

	triggered bool
	triggers  int
	polls     int
	closed    bool
}

var _ database.Store = (*Store)(nil)

// New returns a store that reports dir/dbfilename and completes after
// completeAfter polls.
func New(dir, dbfilename string, completeAfter int) *Store {
	return &Store{
		Name:          "fake:6379",
		LastSave:      time.Unix(1_700_000_000, 0),
		Config:        map[string]string{"dir": dir, "dbfilename": dbfilename},
		CompleteAfter: completeAfter,
	}
}

func (s *Store) TriggerSnapshot(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
	if s.TriggerErr != nil {
		return false, s.TriggerErr
	}
	if s.Reject {
		return false, nil
	}
	s.triggered = true
	return true, nil
}

func (s *Store) LastSnapshotCompletionTime(context.Context) (time.Time, error) {
	s.mu.Lock()
	if s.LastSaveErr != nil {
		s.mu.Unlock()
		return time.Time{}, s.LastSaveErr
	}
	var hook func()
	if s.triggered {
		s.polls++
		if s.CompleteAfter != Never && s.polls >= s.CompleteAfter {
			s.triggered = false
			s.LastSave = s.LastSave.Add(time.Second)
			hook = s.OnComplete
		}
	}
	last := s.LastSave
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return last, nil
}

func (s *Store) GetConfig(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConfigErr != nil {
		return "", false, s.ConfigErr
	}
	v, ok := s.Config[key]
	return v, ok, nil
}

func (s *Store) GetName() string { return s.Name }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Triggers reports how many times TriggerSnapshot was called.
func (s *Store) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

// Polls reports how many completion polls happened after the trigger.
func (s *Store) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Clock is a manual clock whose Sleep advances time instantly.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}
