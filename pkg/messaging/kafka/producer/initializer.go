package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

var errNoBrokers = errors.New("metadata lists no brokers")

type metadataProvider interface {
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
}

// waitForBrokers blocks until the cluster answers a metadata request with at
// least one broker. A timeout of zero waits until ctx is done. Without
// failOnError the outbox starts anyway and its rows stay PENDING until the
// cluster is back.
func waitForBrokers(ctx context.Context, p metadataProvider, log *zap.Logger, timeoutSec int, failOnError bool) error {
	log.Info("waiting for kafka brokers", zap.Int("timeout_seconds", timeoutSec))

	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	if err := pollBrokers(ctx, p, log); err != nil {
		if failOnError {
			return fmt.Errorf("kafka brokers unavailable: %w", err)
		}
		log.Warn("kafka brokers unavailable, producer starts anyway", zap.Error(err))
		return nil
	}

	log.Info("kafka brokers reachable")
	return nil
}

func pollBrokers(ctx context.Context, p metadataProvider, log *zap.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	attempts := 0
	return backoff.RetryNotify(func() error {
		attempts++
		meta, err := p.GetMetadata(nil, false, 1000)
		if err != nil {
			return err
		}
		if len(meta.Brokers) == 0 {
			return errNoBrokers
		}
		return nil
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Debug("kafka brokers not reachable yet",
			zap.Int("attempt", attempts), zap.Duration("retry_in", wait), zap.Error(err))
	})
}
