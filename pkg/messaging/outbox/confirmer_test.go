package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func claimAll(t *testing.T, store *memStore, keys ...string) []*Event {
	t.Helper()
	for _, k := range keys {
		key := k
		require.NoError(t, store.Insert(context.Background(), &Event{EventType: "t", Topic: "topic", PartitionKey: &key}))
	}
	claimed, err := store.ClaimPending(context.Background(), len(keys), time.Now())
	require.NoError(t, err)
	return claimed
}

func runConfirmer(t *testing.T, c *confirmer) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	return func() {
		cancelCtx()
		<-done
	}
}

func TestConfirmer_MarksSuccessfulDeliveriesPublished(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	claimed := claimAll(t, store, "a", "b")
	ch := make(chan kafka.Event, 10)
	c := newConfirmer(ch, testReconciler(store, cfg), cfg, zap.NewNop())

	stop := runConfirmer(t, c)
	defer stop()

	ch <- delivery("topic", claimed[0].ID, nil)
	ch <- delivery("topic", claimed[1].ID, nil)

	assert.Eventually(t, func() bool {
		return store.get(claimed[0].ID).Status == StatusPublished &&
			store.get(claimed[1].ID).Status == StatusPublished
	}, time.Second, 5*time.Millisecond)
	assert.NotNil(t, store.get(claimed[0].ID).ProcessedAt)
}

func TestConfirmer_FlushesWhenBatchIsFull(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.ConfirmBatchSize = 2
	cfg.ConfirmFlushInterval = time.Hour
	claimed := claimAll(t, store, "a", "b", "c")
	ch := make(chan kafka.Event, 10)
	c := newConfirmer(ch, testReconciler(store, cfg), cfg, zap.NewNop())

	stop := runConfirmer(t, c)
	defer stop()

	ch <- delivery("topic", claimed[0].ID, nil)
	ch <- delivery("topic", claimed[1].ID, nil)
	ch <- delivery("topic", claimed[2].ID, nil)

	assert.Eventually(t, func() bool {
		return store.get(claimed[1].ID).Status == StatusPublished
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusProcessing, store.get(claimed[2].ID).Status)
}

func TestConfirmer_FlushesPendingOnShutdown(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.ConfirmFlushInterval = time.Hour
	claimed := claimAll(t, store, "a")
	ch := make(chan kafka.Event, 10)
	c := newConfirmer(ch, testReconciler(store, cfg), cfg, zap.NewNop())

	ch <- delivery("topic", claimed[0].ID, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, StatusPublished, store.get(claimed[0].ID).Status)
}

func TestConfirmer_FailedDeliveryIsRecorded(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	claimed := claimAll(t, store, "a")
	ch := make(chan kafka.Event, 10)
	c := newConfirmer(ch, testReconciler(store, cfg), cfg, zap.NewNop())

	id, ok := c.handle(context.Background(), delivery("topic", claimed[0].ID, kafka.NewError(kafka.ErrMsgTimedOut, "timed out", false)))
	assert.False(t, ok)
	assert.Zero(t, id)

	row := store.get(claimed[0].ID)
	assert.Equal(t, StatusPending, row.Status)
	assert.Equal(t, 1, row.RetryCount)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, "timed out")
}

func TestConfirmer_IgnoresUnknownEvents(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	c := newConfirmer(make(chan kafka.Event), testReconciler(store, cfg), cfg, zap.NewNop())

	_, ok := c.handle(context.Background(), kafka.NewError(kafka.ErrAllBrokersDown, "down", false))
	assert.False(t, ok)

	_, ok = c.handle(context.Background(), &kafka.Message{Opaque: "not-an-id"})
	assert.False(t, ok)
}

func TestConfirmer_LateConfirmationIsIgnored(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	claimed := claimAll(t, store, "a")
	store.setStatus(claimed[0].ID, StatusFailed)
	r := testReconciler(store, cfg)

	require.NoError(t, r.published(context.Background(), []int64{claimed[0].ID}))
	assert.Equal(t, StatusFailed, store.get(claimed[0].ID).Status)

	r.failed(context.Background(), claimed[0].ID, "topic", errBroker)
	assert.Equal(t, 0, store.get(claimed[0].ID).RetryCount)
}
