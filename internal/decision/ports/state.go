package ports

import (
	"context"
	"time"
)

// Activity is what the state store reports after recording (or peeking at)
// a user's activity.
type Activity struct {
	// Velocity is the number of transactions recorded in the current window,
	// including this one.
	Velocity int
	// LocationChanged compares the location supplied with the one stored
	// before this update. Never true for a user's first transaction in a window.
	LocationChanged  bool
	PreviousLocation string
	// Replay is set when the transaction ID matches the last one recorded for
	// the user; nothing was incremented.
	Replay bool
}

// StatePort is the per-user velocity store.
type StatePort interface {
	// RecordAndFetch atomically increments the user's counter, refreshes the
	// window expiry, and overwrites the stored location.
	RecordAndFetch(ctx context.Context, userID, location string, window time.Duration, transactionID string) (Activity, error)

	// Peek reads the current window without mutating it.
	Peek(ctx context.Context, userID string) (Activity, error)
}
