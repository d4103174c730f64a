package inbox

import (
	"context"
	"errors"
)

// ErrAlreadyProcessed is returned by MarkProcessed when the key was recorded before.
var ErrAlreadyProcessed = errors.New("event already processed")

// Ledger remembers which inbound events were handled. Keys are inserted at
// most once and never removed.
type Ledger interface {
	IsProcessed(ctx context.Context, key string) (bool, error)

	// MarkProcessed records key using the transaction bound to ctx.
	MarkProcessed(ctx context.Context, key string) error
}
