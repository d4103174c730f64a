package consumer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DeadLetterHandler is the terminal consumer of a dead-letter topic. It records
// everything an operator needs to replay the message and always acknowledges.
type DeadLetterHandler struct {
	log *zap.Logger
}

func NewDeadLetterHandler(log *zap.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{log: log.With(zap.String("component", "dead-letter-handler"))}
}

func (h *DeadLetterHandler) Process(_ context.Context, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("dead-letter handler panicked", zap.String("panic", fmt.Sprint(r)))
			err = nil
		}
	}()

	h.log.Error("message reached dead-letter topic",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.ByteString("key", msg.Key),
		zap.ByteString("payload", msg.Value),
		zap.Any("headers", msg.Headers),
		zap.String("original_topic", msg.Header(HeaderDLQOriginalTopic)),
		zap.String("error", msg.Header(HeaderDLQError)),
	)
	return nil
}
