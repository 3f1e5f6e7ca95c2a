// Package snapshot drives a store through BGSAVE and locates the file it wrote.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kebairia/redis-backup/internal/database"
	"github.com/kebairia/redis-backup/internal/logger"
)

var (
	ErrFailedToStart = errors.New("snapshot failed to start")
	ErrTimeout       = errors.New("snapshot timed out")
	ErrInterrupted   = errors.New("snapshot wait interrupted")
)

// DefaultPollInterval is the delay between LASTSAVE polls.
const DefaultPollInterval = time.Second

// Outcome is the result of a BgsaveAndWait call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTimeout
	OutcomeFailedToStart
	// OutcomeInterrupted means the snapshot was accepted but polling stopped
	// early: the context was cancelled or LASTSAVE could not be read.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFailedToStart:
		return "failed"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Err maps a non-OK outcome to its sentinel error.
func (o Outcome) Err() error {
	switch o {
	case OutcomeOK:
		return nil
	case OutcomeTimeout:
		return ErrTimeout
	case OutcomeInterrupted:
		return ErrInterrupted
	default:
		return ErrFailedToStart
	}
}

// Controller triggers snapshots and waits for them to finish.
type Controller struct {
	Clock        Clock
	PollInterval time.Duration
	Logger       logger.Logger
}

// NewController returns a Controller using the wall clock and a one second
// poll interval.
func NewController(log logger.Logger) *Controller {
	return &Controller{
		Clock:        RealClock{},
		PollInterval: DefaultPollInterval,
		Logger:       log,
	}
}

// BgsaveAndWait triggers a snapshot and polls the completion timestamp until
// it moves past the pre-trigger baseline or timeout elapses.
//
// A timed-out snapshot is not cancelled on the store side. The returned error
// is only set for transport failures or context cancellation.
func (c *Controller) BgsaveAndWait(ctx context.Context, store database.Store, timeout time.Duration) (Outcome, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	begin := c.Clock.Now()

	baseline, err := store.LastSnapshotCompletionTime(ctx)
	if err != nil {
		return OutcomeFailedToStart, fmt.Errorf("read baseline: %w", err)
	}

	accepted, err := store.TriggerSnapshot(ctx)
	if err != nil {
		return OutcomeFailedToStart, err
	}
	if !accepted {
		c.Logger.Error("bgsave was not accepted", "store", store.GetName())
		return OutcomeFailedToStart, nil
	}
	c.Logger.Info("bgsave started", "store", store.GetName(), "baseline", baseline, "timeout", timeout.String())

	for {
		if err := c.Clock.Sleep(ctx, interval); err != nil {
			return OutcomeInterrupted, err
		}

		last, err := store.LastSnapshotCompletionTime(ctx)
		if err != nil {
			return OutcomeInterrupted, err
		}
		if !last.Equal(baseline) {
			c.Logger.Info("bgsave completed", "store", store.GetName(),
				"lastsave", last, "elapsed", c.Clock.Now().Sub(begin).String())
			return OutcomeOK, nil
		}

		if elapsed := c.Clock.Now().Sub(begin); elapsed >= timeout {
			c.Logger.Warn("bgsave timed out", "store", store.GetName(), "elapsed", elapsed.String())
			return OutcomeTimeout, nil
		}
	}
}
