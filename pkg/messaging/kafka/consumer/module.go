package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/simdev/taskhub/pkg/core/health"
	"github.com/simdev/taskhub/pkg/core/worker"
	"github.com/simdev/taskhub/pkg/messaging/kafka/config"
	"github.com/simdev/taskhub/pkg/messaging/kafka/producer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RegisterHandlerAndConsumer wires a consumer named in kafka.consumers-config to
// the handler built by handlerConstructor. The constructor's result must implement Handler.
//
//	consumer.RegisterHandlerAndConsumer("user-events", newUserEventsConsumer)
//	consumer.RegisterHandlerAndConsumer("user-events-dlt", consumer.NewDeadLetterHandler)
func RegisterHandlerAndConsumer(consumerName string, handlerConstructor any) fx.Option {
	return fx.Module(
		consumerName,
		fx.Provide(
			fx.Private,
			func(conf config.Config) (config.ConsumerConfig, error) {
				return conf.Consumer(consumerName)
			},
			fx.Annotate(handlerConstructor, fx.As(new(Handler))),
			provideKafkaConsumer,
			provideInitializer,
			provideMessageChannel,
			provideDLQHandler,
			provideRetryExecutor,
			provideReader,
			provideProcessor,
			newMessageTracer,
		),
		fx.Decorate(func(log *zap.Logger, cc config.ConsumerConfig) *zap.Logger {
			return log.With(
				zap.String("component", "consumer"),
				zap.String("consumer_name", cc.Name),
				zap.String("topic", cc.Topic),
				zap.String("group_id", cc.GroupID),
			)
		}),
		fx.Provide(
			worker.Register[*reader](consumerName+"-reader", worker.WithReady(), worker.WithShutdown()),
			worker.Register[*processor](consumerName+"-processor", worker.WithReady()),
		),
	)
}

func provideKafkaConsumer(lc fx.Lifecycle, conf config.Config, cc config.ConsumerConfig, log *zap.Logger) (*kafka.Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        conf.Brokers,
		"group.id":                 cc.GroupID,
		"enable.auto.commit":       true,
		"enable.auto.offset.store": false,
		"auto.commit.interval.ms":  3000,
		"auto.offset.reset":        cc.AutoOffsetReset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer, name: %s: %w", cc.Name, err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if _, err := c.Commit(); err != nil {
				var kafkaErr kafka.Error
				if !errors.As(err, &kafkaErr) || kafkaErr.Code() != kafka.ErrNoOffset {
					log.Warn("failed to commit offsets on shutdown", zap.Error(err))
				}
			}
			log.Info("closing kafka consumer")
			return c.Close()
		},
	})
	return c, nil
}

func provideInitializer(lc fx.Lifecycle, c *kafka.Consumer, cc config.ConsumerConfig, log *zap.Logger, components health.ComponentManager) *initializer {
	init := newInitializer(c, cc.Topic, log, cc.ReadinessTimeoutSeconds, cc.FailOnTopicError)
	markReady := components.AddComponent("kafka-consumer-" + cc.Name)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := init.initialize(ctx); err != nil {
				return err
			}
			markReady()
			return nil
		},
	})
	return init
}

func provideMessageChannel(cc config.ConsumerConfig) chan *kafka.Message {
	return make(chan *kafka.Message, cc.ChannelBufferSize)
}

type dlqParams struct {
	fx.In

	ConsumerConfig config.ConsumerConfig
	Producer       producer.Producer `optional:"true"`
	Tracer         MessageTracer
	Log            *zap.Logger
}

func provideDLQHandler(p dlqParams) DLQHandler {
	if !p.ConsumerConfig.EnableDLQ || p.Producer == nil {
		return newNoopDLQHandler(p.Log)
	}
	return newDLQHandler(p.Producer, p.ConsumerConfig.DLQTopic, p.Tracer, p.Log)
}

func provideRetryExecutor(cc config.ConsumerConfig, log *zap.Logger) RetryExecutor {
	return newRetryExecutor(retryPolicy{
		MaxAttempts:       cc.MaxRetryAttempts,
		InitialBackoff:    cc.InitialBackoff,
		MaxBackoff:        cc.MaxBackoff,
		ProcessingTimeout: cc.ProcessingTimeout,
	}, log)
}

func provideReader(_ *initializer, c *kafka.Consumer, ch chan *kafka.Message, log *zap.Logger) *reader {
	return newReader(c, ch, log)
}

func provideProcessor(
	c *kafka.Consumer,
	ch chan *kafka.Message,
	handler Handler,
	dlq DLQHandler,
	retry RetryExecutor,
	tracer MessageTracer,
	log *zap.Logger,
) *processor {
	return newProcessor(ch, handler, log, newResultHandler(log, dlq, c), retry, tracer)
}

