package outbox

import (
	"context"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Writer appends events to the outbox as part of the caller's transaction.
type Writer interface {
	// Append stores payload for later delivery to topic. Raw []byte and string
	// payloads are stored as is, anything else is JSON encoded. A payload that
	// cannot be encoded is logged and dropped: Append then returns nil, nil.
	// Store errors are returned so the business transaction rolls back.
	Append(ctx context.Context, eventType, topic string, payload any, partitionKey string) (*Event, error)
}

type writer struct {
	store  Store
	tracer tracePropagator
	log    *zap.Logger
}

func newWriter(store Store, tracer tracePropagator, log *zap.Logger) Writer {
	return &writer{store: store, tracer: tracer, log: log.With(zap.String("component", "outbox"))}
}

func (w *writer) Append(ctx context.Context, eventType, topic string, payload any, partitionKey string) (*Event, error) {
	data, err := encodePayload(payload)
	if err != nil {
		w.log.Error("failed to serialize outbox payload, event dropped",
			zap.String("event_type", eventType),
			zap.String("topic", topic),
			zap.Error(err))
		return nil, nil
	}

	e := &Event{
		EventType: eventType,
		Topic:     topic,
		Payload:   data,
		Headers:   w.tracer.SaveTraceContext(ctx, nil),
	}
	if partitionKey != "" {
		e.PartitionKey = &partitionKey
	}

	if err := w.store.Insert(ctx, e); err != nil {
		return nil, err
	}

	w.log.Debug("outbox event appended",
		zap.Int64("id", e.ID),
		zap.String("event_type", eventType),
		zap.String("topic", topic))
	return e, nil
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}
