package modules

import (
	"github.com/simdev/taskhub/pkg/messaging"
	"go.uber.org/fx"
)

// NewMessagingModule provides kafka, the producer, the outbox and optionally the inbox.
func NewMessagingModule(opts ...messaging.MessagingOption) fx.Option {
	return messaging.NewMessagingModule(opts...)
}
