package consumer

import (
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type readErrorKind int

const (
	readErrorTimeout readErrorKind = iota
	readErrorFatal
	readErrorTopicNotFound
	readErrorBroker
	readErrorLeader
	readErrorRetriable
	readErrorUnknown
)

// readerError classifies a ReadMessage failure so the reader can decide
// between waiting, logging and stopping.
type readerError struct {
	err         error
	kind        readErrorKind
	key         string
	description string
}

func (e *readerError) Error() string {
	if e.description == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.description, e.err)
}

func (e *readerError) Unwrap() error { return e.err }

func (e *readerError) isFatal() bool   { return e.kind == readErrorFatal }
func (e *readerError) isTimeout() bool { return e.kind == readErrorTimeout }

func (e *readerError) isTemporary() bool {
	switch e.kind {
	case readErrorTopicNotFound, readErrorBroker, readErrorLeader, readErrorRetriable:
		return true
	}
	return false
}

func classifyReadError(err error) *readerError {
	if err == nil {
		return nil
	}

	var kafkaErr kafka.Error
	if !errors.As(err, &kafkaErr) {
		return &readerError{err: err, kind: readErrorUnknown, key: "non_kafka_error", description: "non-kafka error occurred"}
	}

	switch {
	case kafkaErr.IsTimeout() || kafkaErr.Code() == kafka.ErrTimedOut:
		return &readerError{err: err, kind: readErrorTimeout}
	case kafkaErr.IsFatal():
		return &readerError{err: err, kind: readErrorFatal, key: "fatal", description: "fatal kafka error, consumer is no longer operable"}
	}

	switch kafkaErr.Code() {
	case kafka.ErrUnknownTopicOrPart, kafka.ErrUnknownTopic:
		return &readerError{err: err, kind: readErrorTopicNotFound, key: "topic_not_found", description: "topic not available, waiting for topic creation"}
	case kafka.ErrTransport, kafka.ErrAllBrokersDown, kafka.ErrNetworkException:
		return &readerError{err: err, kind: readErrorBroker, key: "broker_connection", description: "broker connection issue, retrying"}
	case kafka.ErrLeaderNotAvailable, kafka.ErrNotLeaderForPartition:
		return &readerError{err: err, kind: readErrorLeader, key: "leader_election", description: "partition leader changing, retrying"}
	}

	if kafkaErr.IsRetriable() {
		return &readerError{err: err, kind: readErrorRetriable, key: "retriable_error", description: "retriable kafka error, retrying"}
	}
	return &readerError{err: err, kind: readErrorUnknown, key: "unknown_error", description: "unknown kafka error"}
}
