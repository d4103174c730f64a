package consumer

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/simdev/taskhub/pkg/core/logger"
	"go.uber.org/zap"
)

type messageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
}

// reader polls the broker and hands messages to the processor in order.
type reader struct {
	consumer     messageReader
	messagesChan chan<- *kafka.Message
	log          *zap.Logger
	throttler    *logger.LogThrottler
	pollTimeout  time.Duration
	pause        map[readErrorKind]time.Duration
}

func newReader(consumer messageReader, messagesChan chan<- *kafka.Message, log *zap.Logger) *reader {
	return &reader{
		consumer:     consumer,
		messagesChan: messagesChan,
		log:          log,
		throttler:    logger.NewLogThrottler(log, 5*time.Minute),
		pollTimeout:  time.Second,
		pause: map[readErrorKind]time.Duration{
			readErrorTopicNotFound: 10 * time.Second,
			readErrorBroker:        5 * time.Second,
			readErrorLeader:        2 * time.Second,
			readErrorRetriable:     time.Second,
			readErrorUnknown:       time.Second,
		},
	}
}

// Run returns nil on cancellation and an error when the consumer becomes unusable.
func (r *reader) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		msg, err := r.consumer.ReadMessage(r.pollTimeout)
		if err != nil {
			rerr := classifyReadError(err)
			switch {
			case rerr.isTimeout():
				continue
			case rerr.isFatal():
				r.log.Error("stopping reader", zap.Error(rerr))
				return rerr
			case rerr.isTemporary():
				r.throttler.Warn(rerr.key, rerr.description, zap.Error(err))
			default:
				r.throttler.Error(rerr.key, "failed to read message", zap.Error(err))
			}
			sleep(ctx, r.pause[rerr.kind])
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case r.messagesChan <- msg:
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
