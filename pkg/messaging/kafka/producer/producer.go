package producer

import (
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/simdev/taskhub/pkg/messaging/kafka/config"
	"go.uber.org/zap"
)

// Producer enqueues messages on the shared librdkafka producer. Delivery
// reports arrive asynchronously on the supplied channel.
type Producer interface {
	Produce(message *kafka.Message, deliveryChan chan kafka.Event) error
	Close()
}

type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

type producer struct {
	producer kafkaProducer
	log      *zap.Logger
}

func newProducer(p kafkaProducer, log *zap.Logger) *producer {
	return &producer{producer: p, log: log}
}

func newKafkaProducer(conf config.Config) (*kafka.Producer, error) {
	cm, err := producerConfigMap(conf)
	if err != nil {
		return nil, err
	}
	p, err := kafka.NewProducer(cm)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return p, nil
}

func producerConfigMap(conf config.Config) (*kafka.ConfigMap, error) {
	pc := conf.ProducerConfig
	cm := &kafka.ConfigMap{
		"bootstrap.servers":  conf.Brokers,
		"acks":               pc.Acks,
		"message.timeout.ms": int(pc.MessageTimeout.Milliseconds()),
	}
	if pc.Idempotence != nil {
		if err := cm.SetKey("enable.idempotence", *pc.Idempotence); err != nil {
			return nil, fmt.Errorf("failed to configure producer: %w", err)
		}
	}
	return cm, nil
}

func (p *producer) Produce(message *kafka.Message, deliveryChan chan kafka.Event) error {
	if err := p.producer.Produce(message, deliveryChan); err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", message.TopicPartition, err)
	}
	return nil
}

func (p *producer) Close() {
	if c, ok := p.producer.(interface {
		Flush(timeoutMs int) int
		Close()
	}); ok {
		if remaining := c.Flush(5000); remaining > 0 {
			p.log.Warn("producer closed with undelivered messages", zap.Int("remaining", remaining))
		}
		c.Close()
	}
}
