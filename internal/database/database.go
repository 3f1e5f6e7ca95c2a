package database

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConnection means the store could not be reached or answered with a
	// transport-level failure.
	ErrConnection = errors.New("store connection failed")
)

// Store is the slice of the key-value store's command set a backup run needs.
type Store interface {
	// TriggerSnapshot asks the store to start an asynchronous snapshot.
	// It returns false, nil when the store rejects the request.
	TriggerSnapshot(ctx context.Context) (bool, error)
	// LastSnapshotCompletionTime returns when the most recent snapshot finished.
	LastSnapshotCompletionTime(ctx context.Context) (time.Time, error)
	// GetConfig returns the value of a configuration key and whether it exists.
	GetConfig(ctx context.Context, key string) (string, bool, error)
	GetName() string
	Close() error
}
