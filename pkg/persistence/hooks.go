package persistence

import (
	"context"
	"sync"
)

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

type hooksKey struct{}

// AfterCommit runs fn once the outermost transaction carried by ctx commits.
// Callbacks of a rolled back or retried attempt are dropped. Outside a
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(hooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// WithCommitHooks is used by TxManager implementations once per transaction
// attempt. The returned func runs the collected callbacks in order and must
// be called only after a successful commit.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	h := &commitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), func() {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}
