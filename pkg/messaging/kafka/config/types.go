package config

import "time"

type Config struct {
	Brokers         string          `mapstructure:"brokers"`          // Comma-separated broker addresses
	ConsumersConfig ConsumersConfig `mapstructure:"consumers-config"` // Global and per-consumer settings
	ProducerConfig  ProducerConfig  `mapstructure:"producer-config"`
}

type ConsumersConfig struct {
	DefaultGroupID           string           `mapstructure:"default-group-id"`
	DefaultAutoOffsetReset   string           `mapstructure:"default-auto-offset-reset"`   // "earliest" or "latest"
	DefaultMaxRetryAttempts  int              `mapstructure:"default-max-retry-attempts"`  // Delivery attempts per message, including the first (1-100)
	DefaultInitialBackoff    time.Duration    `mapstructure:"default-initial-backoff"`     // Wait before the second attempt (100ms-30s)
	DefaultMaxBackoff        time.Duration    `mapstructure:"default-max-backoff"`         // Cap for the doubling backoff (1s-5m)
	DefaultProcessingTimeout time.Duration    `mapstructure:"default-processing-timeout"`  // Per-attempt handler deadline (1s-10m)
	DefaultChannelBufferSize int              `mapstructure:"default-channel-buffer-size"` // Reader to processor buffer (10-10000)
	DefaultDLQSuffix         string           `mapstructure:"default-dlq-suffix"`          // Appended to the topic to name its dead-letter topic
	ConsumerConfig           []ConsumerConfig `mapstructure:"consumers"`
}

type ConsumerConfig struct {
	Name                    string        `mapstructure:"name"`  // Unique consumer name (required)
	Topic                   string        `mapstructure:"topic"` // Topic to consume (required)
	GroupID                 string        `mapstructure:"group-id"`
	AutoOffsetReset         string        `mapstructure:"auto-offset-reset"`
	EnableDLQ               bool          `mapstructure:"enable-dlq"`
	DLQTopic                string        `mapstructure:"dlq-topic"`                 // Defaults to topic + DefaultDLQSuffix when EnableDLQ
	ReadinessTimeoutSeconds int           `mapstructure:"readiness-timeout-seconds"` // Wait for topic metadata on start (max 600s)
	FailOnTopicError        bool          `mapstructure:"fail-on-topic-error"`
	MaxRetryAttempts        int           `mapstructure:"max-retry-attempts"`
	InitialBackoff          time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff              time.Duration `mapstructure:"max-backoff"`
	ProcessingTimeout       time.Duration `mapstructure:"processing-timeout"`
	ChannelBufferSize       int           `mapstructure:"channel-buffer-size"`
}

type ProducerConfig struct {
	ReadinessTimeoutSeconds int  `mapstructure:"readiness-timeout-seconds"` // Wait for broker metadata on start (max 600s)
	FailOnBrokerError       bool `mapstructure:"fail-on-broker-error"`
	// MessageTimeout bounds how long librdkafka retries a produce before
	// reporting failure on the delivery channel.
	MessageTimeout time.Duration `mapstructure:"message-timeout"`
	Acks           string        `mapstructure:"acks"`
	Idempotence    *bool         `mapstructure:"enable-idempotence"`
}
