package config

import (
	"fmt"
	"strings"
	"time"
)

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Brokers) == "" {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if err := validateGlobalConsumerConfig(&cfg.ConsumersConfig); err != nil {
		return err
	}

	names := make(map[string]struct{}, len(cfg.ConsumersConfig.ConsumerConfig))
	for i := range cfg.ConsumersConfig.ConsumerConfig {
		consumer := &cfg.ConsumersConfig.ConsumerConfig[i]
		if err := validateConsumer(i, consumer); err != nil {
			return err
		}
		if _, dup := names[consumer.Name]; dup {
			return fmt.Errorf("consumer[%d] (%s): duplicate consumer name", i, consumer.Name)
		}
		names[consumer.Name] = struct{}{}
	}

	return validateProducerConfig(&cfg.ProducerConfig)
}

func checkRange[T int | time.Duration](field string, v, lo, hi T) error {
	if v > 0 && (v < lo || v > hi) {
		return fmt.Errorf("%s must be between %v and %v, got: %v", field, lo, hi, v)
	}
	return nil
}

func validateGlobalConsumerConfig(cfg *ConsumersConfig) error {
	checks := []error{
		checkRange("default max retry attempts", cfg.DefaultMaxRetryAttempts, minMaxRetryAttempts, maxMaxRetryAttempts),
		checkRange("default initial backoff", cfg.DefaultInitialBackoff, minInitialBackoff, maxInitialBackoff),
		checkRange("default max backoff", cfg.DefaultMaxBackoff, minMaxBackoff, maxMaxBackoffDuration),
		checkRange("default processing timeout", cfg.DefaultProcessingTimeout, minProcessingTimeout, maxProcessingTimeout),
		checkRange("default channel buffer size", cfg.DefaultChannelBufferSize, minChannelBufferSize, maxChannelBufferSize),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if cfg.DefaultMaxBackoff > 0 && cfg.DefaultInitialBackoff > cfg.DefaultMaxBackoff {
		return fmt.Errorf("default initial backoff (%v) cannot be greater than max backoff (%v)",
			cfg.DefaultInitialBackoff, cfg.DefaultMaxBackoff)
	}
	return nil
}

func validateConsumer(index int, consumer *ConsumerConfig) error {
	if strings.TrimSpace(consumer.Name) == "" {
		return fmt.Errorf("consumer[%d]: name cannot be empty", index)
	}
	if strings.TrimSpace(consumer.Topic) == "" {
		return fmt.Errorf("consumer[%d] (%s): topic cannot be empty", index, consumer.Name)
	}
	if strings.TrimSpace(consumer.GroupID) == "" {
		return fmt.Errorf("consumer[%d] (%s): group id cannot be empty", index, consumer.Name)
	}
	if consumer.AutoOffsetReset != "" && consumer.AutoOffsetReset != "earliest" && consumer.AutoOffsetReset != "latest" {
		return fmt.Errorf("consumer[%d] (%s): auto offset reset must be 'earliest' or 'latest', got: %s",
			index, consumer.Name, consumer.AutoOffsetReset)
	}
	if consumer.ReadinessTimeoutSeconds > maxReadinessTimeout {
		return fmt.Errorf("consumer[%d] (%s): readiness timeout cannot exceed %d seconds, got: %d",
			index, consumer.Name, maxReadinessTimeout, consumer.ReadinessTimeoutSeconds)
	}

	checks := []error{
		checkRange("max retry attempts", consumer.MaxRetryAttempts, minMaxRetryAttempts, maxMaxRetryAttempts),
		checkRange("initial backoff", consumer.InitialBackoff, minInitialBackoff, maxInitialBackoff),
		checkRange("max backoff", consumer.MaxBackoff, minMaxBackoff, maxMaxBackoffDuration),
		checkRange("processing timeout", consumer.ProcessingTimeout, minProcessingTimeout, maxProcessingTimeout),
		checkRange("channel buffer size", consumer.ChannelBufferSize, minChannelBufferSize, maxChannelBufferSize),
	}
	for _, err := range checks {
		if err != nil {
			return fmt.Errorf("consumer[%d] (%s): %w", index, consumer.Name, err)
		}
	}

	if consumer.MaxBackoff > 0 && consumer.InitialBackoff > consumer.MaxBackoff {
		return fmt.Errorf("consumer[%d] (%s): initial backoff (%v) cannot be greater than max backoff (%v)",
			index, consumer.Name, consumer.InitialBackoff, consumer.MaxBackoff)
	}
	if consumer.EnableDLQ && consumer.DLQTopic == consumer.Topic {
		return fmt.Errorf("consumer[%d] (%s): DLQ topic cannot be the same as main topic", index, consumer.Name)
	}
	return nil
}

func validateProducerConfig(cfg *ProducerConfig) error {
	if cfg.ReadinessTimeoutSeconds > maxReadinessTimeout {
		return fmt.Errorf("producer readiness timeout cannot exceed %d seconds, got: %d",
			maxReadinessTimeout, cfg.ReadinessTimeoutSeconds)
	}
	if cfg.MessageTimeout > 0 && cfg.MessageTimeout < minMessageTimeout {
		return fmt.Errorf("producer message timeout must be at least %v, got: %v", minMessageTimeout, cfg.MessageTimeout)
	}
	switch cfg.Acks {
	case "", "all", "-1", "0", "1":
	default:
		return fmt.Errorf("producer acks must be one of all, -1, 0, 1, got: %s", cfg.Acks)
	}
	return nil
}
