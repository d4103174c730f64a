package consumer

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/observability/tracing"
	"go.uber.org/zap"
)

// processor handles messages one at a time so offsets are stored in order.
// Handlers get a logger tagged with the event key through logger.Get(ctx).
type processor struct {
	messagesChan  <-chan *kafka.Message
	handler       Handler
	log           *zap.Logger
	resultHandler *resultHandler
	retryExecutor RetryExecutor
	tracer        MessageTracer
}

func newProcessor(
	messagesChan <-chan *kafka.Message,
	handler Handler,
	log *zap.Logger,
	resultHandler *resultHandler,
	retryExecutor RetryExecutor,
	tracer MessageTracer,
) *processor {
	return &processor{
		messagesChan:  messagesChan,
		handler:       handler,
		log:           log,
		resultHandler: resultHandler,
		retryExecutor: retryExecutor,
		tracer:        tracer,
	}
}

func (p *processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-p.messagesChan:
			p.processMessage(ctx, msg)
		}
	}
}

func (p *processor) processMessage(ctx context.Context, message *kafka.Message) {
	ctx = p.tracer.ExtractContext(ctx, message)
	ctx, span := p.tracer.StartConsumerSpan(ctx, message)
	defer span.End()

	msg := newMessage(message)
	ctx = logger.With(ctx, p.log.With(append(tracing.LogFields(ctx),
		zap.String("event_key", msg.IdempotencyKey()))...))

	err := p.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		return p.handler.Process(ctx, msg)
	})

	p.resultHandler.handle(ctx, err, message, span)
}
