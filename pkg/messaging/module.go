package messaging

import (
	"github.com/simdev/taskhub/pkg/messaging/inbox"
	"github.com/simdev/taskhub/pkg/messaging/kafka/config"
	"github.com/simdev/taskhub/pkg/messaging/kafka/producer"
	"github.com/simdev/taskhub/pkg/messaging/outbox"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.uber.org/fx"
)

type messagingOptions struct {
	backend persistence.Backend
	inbox   bool
}

// MessagingOption is a functional option for configuring the messaging module.
type MessagingOption func(*messagingOptions)

// WithBackend stores outbox rows and ledger entries in b. Defaults to postgres.
func WithBackend(b persistence.Backend) MessagingOption {
	return func(opts *messagingOptions) {
		opts.backend = b
	}
}

// WithInbox adds the processed-event ledger and the idempotency guard for consumers.
func WithInbox() MessagingOption {
	return func(opts *messagingOptions) {
		opts.inbox = true
	}
}

// NewMessagingModule provides kafka config, the producer and the outbox.
//
//	// users-service: outbox only
//	messaging.NewMessagingModule()
//
//	// tasks-service on mongo, consuming user events
//	messaging.NewMessagingModule(
//	    messaging.WithBackend(persistence.BackendMongo),
//	    messaging.WithInbox(),
//	)
func NewMessagingModule(opts ...MessagingOption) fx.Option {
	cfg := &messagingOptions{backend: persistence.BackendPostgres}
	for _, opt := range opts {
		opt(cfg)
	}

	options := []fx.Option{
		config.NewKafkaConfigModule(),
		producer.NewProducerModule(),
		outbox.NewOutboxModule(),
		outboxStoreModule(cfg.backend),
	}
	if cfg.inbox {
		options = append(options, inbox.NewInboxModule(), ledgerModule(cfg.backend))
	}
	return fx.Options(options...)
}

func outboxStoreModule(b persistence.Backend) fx.Option {
	if b == persistence.BackendMongo {
		return outbox.NewMongoStoreModule()
	}
	return outbox.NewPostgresStoreModule()
}

func ledgerModule(b persistence.Backend) fx.Option {
	if b == persistence.BackendMongo {
		return inbox.NewMongoLedgerModule()
	}
	return inbox.NewPostgresLedgerModule()
}
