package config

func applyDefaults(cfg *Config) {
	c := &cfg.ConsumersConfig
	if c.DefaultMaxRetryAttempts == 0 {
		c.DefaultMaxRetryAttempts = defaultMaxRetryAttempts
	}
	if c.DefaultInitialBackoff == 0 {
		c.DefaultInitialBackoff = defaultInitialBackoff
	}
	if c.DefaultMaxBackoff == 0 {
		c.DefaultMaxBackoff = defaultMaxBackoff
	}
	if c.DefaultProcessingTimeout == 0 {
		c.DefaultProcessingTimeout = defaultProcessingTimeout
	}
	if c.DefaultChannelBufferSize == 0 {
		c.DefaultChannelBufferSize = defaultChannelBufferSize
	}
	if c.DefaultDLQSuffix == "" {
		c.DefaultDLQSuffix = defaultDLQSuffix
	}

	for i := range c.ConsumerConfig {
		applyConsumerDefaults(&c.ConsumerConfig[i], c)
	}

	p := &cfg.ProducerConfig
	if p.ReadinessTimeoutSeconds == 0 {
		p.ReadinessTimeoutSeconds = defaultProducerReadinessTimeout
	}
	if p.MessageTimeout == 0 {
		p.MessageTimeout = defaultMessageTimeout
	}
	if p.Acks == "" {
		p.Acks = defaultAcks
	}
	if p.Idempotence == nil {
		enabled := true
		p.Idempotence = &enabled
	}
}

func applyConsumerDefaults(consumer *ConsumerConfig, global *ConsumersConfig) {
	if consumer.GroupID == "" {
		consumer.GroupID = global.DefaultGroupID
	}
	if consumer.AutoOffsetReset == "" {
		consumer.AutoOffsetReset = global.DefaultAutoOffsetReset
	}
	if consumer.EnableDLQ && consumer.DLQTopic == "" {
		consumer.DLQTopic = consumer.Topic + global.DefaultDLQSuffix
	}
	if consumer.ReadinessTimeoutSeconds == 0 {
		consumer.ReadinessTimeoutSeconds = defaultConsumerReadinessTimeout
	}
	if consumer.MaxRetryAttempts == 0 {
		consumer.MaxRetryAttempts = global.DefaultMaxRetryAttempts
	}
	if consumer.InitialBackoff == 0 {
		consumer.InitialBackoff = global.DefaultInitialBackoff
	}
	if consumer.MaxBackoff == 0 {
		consumer.MaxBackoff = global.DefaultMaxBackoff
	}
	if consumer.ProcessingTimeout == 0 {
		consumer.ProcessingTimeout = global.DefaultProcessingTimeout
	}
	if consumer.ChannelBufferSize == 0 {
		consumer.ChannelBufferSize = global.DefaultChannelBufferSize
	}
}
