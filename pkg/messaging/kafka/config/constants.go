package config

import "time"

const (
	defaultMaxRetryAttempts         = 3
	defaultInitialBackoff           = 1 * time.Second
	defaultMaxBackoff               = 4 * time.Second
	defaultProcessingTimeout        = 30 * time.Second
	defaultChannelBufferSize        = 100
	defaultDLQSuffix                = ".DLT"
	defaultConsumerReadinessTimeout = 60
	defaultProducerReadinessTimeout = 30
	defaultMessageTimeout           = 30 * time.Second
	defaultAcks                     = "all"

	minMaxRetryAttempts   = 1
	maxMaxRetryAttempts   = 100
	minInitialBackoff     = 100 * time.Millisecond
	maxInitialBackoff     = 30 * time.Second
	minMaxBackoff         = 1 * time.Second
	maxMaxBackoffDuration = 5 * time.Minute
	minProcessingTimeout  = 1 * time.Second
	maxProcessingTimeout  = 10 * time.Minute
	minChannelBufferSize  = 10
	maxChannelBufferSize  = 10000
	minMessageTimeout     = 1 * time.Second
	maxReadinessTimeout   = 600
)
