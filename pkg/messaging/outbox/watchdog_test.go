package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchdog_ReleasesStaleRows(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.MaxRetries = 2
	claimed := claimAll(t, store, "a", "b")
	store.setProcessedAt(claimed[0].ID, time.Now().Add(-time.Hour))

	w := newWatchdog(store, testReconciler(store, cfg), cfg, zap.NewNop())
	require.NoError(t, w.check(context.Background()))

	stale := store.get(claimed[0].ID)
	assert.Equal(t, StatusPending, stale.Status)
	assert.Equal(t, 1, stale.RetryCount)
	require.NotNil(t, stale.ErrorMessage)
	assert.Equal(t, staleReason, *stale.ErrorMessage)

	assert.Equal(t, StatusProcessing, store.get(claimed[1].ID).Status)
}

func TestWatchdog_StaleRowFailsAfterMaxRetries(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.MaxRetries = 1
	claimed := claimAll(t, store, "a")
	store.setProcessedAt(claimed[0].ID, time.Now().Add(-time.Hour))

	w := newWatchdog(store, testReconciler(store, cfg), cfg, zap.NewNop())
	require.NoError(t, w.check(context.Background()))

	assert.Equal(t, StatusFailed, store.get(claimed[0].ID).Status)
}
