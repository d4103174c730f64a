package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/simdev/taskhub/pkg/messaging/kafka/producer"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// publisher claims PENDING rows on every tick and hands them to the producer.
// Delivery results arrive on deliveries and are applied by the confirmer.
type publisher struct {
	store      Store
	producer   producer.Producer
	deliveries chan kafka.Event
	tracer     tracePropagator
	reconciler *reconciler
	cfg        Config
	log        *zap.Logger
	now        func() time.Time
}

func newPublisher(
	store Store,
	p producer.Producer,
	deliveries chan kafka.Event,
	tracer tracePropagator,
	reconciler *reconciler,
	cfg Config,
	log *zap.Logger,
) *publisher {
	return &publisher{
		store:      store,
		producer:   p,
		deliveries: deliveries,
		tracer:     tracer,
		reconciler: reconciler,
		cfg:        cfg,
		log:        log.With(zap.String("component", "outbox-publisher")),
		now:        time.Now,
	}
}

func (p *publisher) Run(ctx context.Context) error {
	runEvery(ctx, p.cfg.PollInterval, true, p.log, "outbox publish tick", p.tick)
	return nil
}

func (p *publisher) tick(ctx context.Context) error {
	events, err := p.store.ClaimPending(ctx, p.cfg.BatchSize, p.now())
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	p.log.Debug("claimed outbox events", zap.Int("count", len(events)))
	for _, e := range events {
		p.send(ctx, e)
	}
	return nil
}

func (p *publisher) send(ctx context.Context, e *Event) {
	_, span, headers := p.tracer.StartPublishSpan(e)
	defer span.End()

	headers = append(headers,
		kafka.Header{Key: HeaderEventType, Value: []byte(e.EventType)},
		kafka.Header{Key: HeaderEventID, Value: []byte(strconv.FormatInt(e.ID, 10))},
	)

	topic := e.Topic
	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.Key()),
		Value:          e.Payload,
		Headers:        headers,
		Opaque:         e.ID,
	}, p.deliveries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "produce failed")
		p.reconciler.failed(ctx, e.ID, e.Topic, err)
	}
}
