package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// confirmer consumes delivery reports. Successes are marked PUBLISHED in
// batches, failures are recorded one by one as they arrive.
type confirmer struct {
	deliveries <-chan kafka.Event
	reconciler *reconciler
	cfg        Config
	log        *zap.Logger
}

func newConfirmer(deliveries chan kafka.Event, reconciler *reconciler, cfg Config, log *zap.Logger) *confirmer {
	return &confirmer{
		deliveries: deliveries,
		reconciler: reconciler,
		cfg:        cfg,
		log:        log.With(zap.String("component", "outbox-confirmer")),
	}
}

func (c *confirmer) Run(ctx context.Context) error {
	pending := make([]int64, 0, c.cfg.ConfirmBatchSize)

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := c.reconciler.published(ctx, pending); err != nil {
			// rows stay PROCESSING and are released by the watchdog
			c.log.Error("failed to mark outbox events published", zap.Int("count", len(pending)), zap.Error(err))
		}
		pending = pending[:0]
	}

	ticker := time.NewTicker(c.cfg.ConfirmFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.drain(&pending)
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return nil
		case e := <-c.deliveries:
			if id, ok := c.handle(ctx, e); ok {
				pending = append(pending, id)
				if len(pending) >= c.cfg.ConfirmBatchSize {
					flush(ctx)
				}
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// drain collects reports that are already buffered without waiting for more.
func (c *confirmer) drain(pending *[]int64) {
	ctx := context.Background()
	for {
		select {
		case e := <-c.deliveries:
			if id, ok := c.handle(ctx, e); ok {
				*pending = append(*pending, id)
			}
		default:
			return
		}
	}
}

// handle returns the id of a successful delivery. Failures are applied immediately.
func (c *confirmer) handle(ctx context.Context, e kafka.Event) (int64, bool) {
	msg, ok := e.(*kafka.Message)
	if !ok {
		c.log.Warn("unexpected delivery event", zap.String("type", fmt.Sprintf("%T", e)), zap.Stringer("event", e))
		return 0, false
	}
	id, ok := msg.Opaque.(int64)
	if !ok {
		c.log.Error("delivery report without outbox id", zap.Any("opaque", msg.Opaque))
		return 0, false
	}

	if msg.TopicPartition.Error != nil {
		topic := ""
		if msg.TopicPartition.Topic != nil {
			topic = *msg.TopicPartition.Topic
		}
		c.reconciler.failed(ctx, id, topic, msg.TopicPartition.Error)
		return 0, false
	}
	return id, true
}
