package inbox

import (
	"context"
	"errors"

	"github.com/simdev/taskhub/pkg/messaging/kafka/consumer"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type idempotentHandler struct {
	ledger     Ledger
	tx         persistence.TxManager
	next       consumer.Handler
	duplicates metric.Int64Counter
	log        *zap.Logger
}

// NewIdempotentHandler runs next at most once per message key. The ledger
// check, the side effects of next and the ledger insert share one
// transaction, so the offset is stored only after they commit together.
// Duplicates are acknowledged without calling next.
func NewIdempotentHandler(ledger Ledger, tx persistence.TxManager, next consumer.Handler, duplicates metric.Int64Counter, log *zap.Logger) consumer.Handler {
	return &idempotentHandler{
		ledger:     ledger,
		tx:         tx,
		next:       next,
		duplicates: duplicates,
		log:        log.With(zap.String("component", "inbox")),
	}
}

func (h *idempotentHandler) Process(ctx context.Context, msg *consumer.Message) error {
	key := msg.IdempotencyKey()

	_, err := h.tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		processed, err := h.ledger.IsProcessed(txCtx, key)
		if err != nil {
			return nil, err
		}
		if processed {
			return nil, ErrAlreadyProcessed
		}

		if err := h.next.Process(txCtx, msg); err != nil {
			return nil, err
		}

		return nil, h.ledger.MarkProcessed(txCtx, key)
	})

	if errors.Is(err, ErrAlreadyProcessed) {
		h.duplicates.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", msg.Topic)))
		h.log.Info("skipping already processed event", zap.String("event_key", key))
		return consumer.ErrSkipMessage
	}
	return err
}

// Guard wraps consumer handlers with NewIdempotentHandler.
type Guard struct {
	ledger     Ledger
	tx         persistence.TxManager
	duplicates metric.Int64Counter
	log        *zap.Logger
	cfg        Config
}

func (g *Guard) Wrap(next consumer.Handler) consumer.Handler {
	return NewIdempotentHandler(g.ledger, g.tx, next, g.duplicates, g.log)
}

func (g *Guard) LegacyFallback() bool {
	return g.cfg.LegacyFallbackEnabled()
}

func newGuard(ledger Ledger, tx persistence.TxManager, mp metric.MeterProvider, cfg Config, log *zap.Logger) (*Guard, error) {
	duplicates, err := mp.Meter("github.com/simdev/taskhub/inbox").Int64Counter("inbox.events.duplicate",
		metric.WithDescription("Inbound events skipped because they were already processed"))
	if err != nil {
		return nil, err
	}
	return &Guard{ledger: ledger, tx: tx, duplicates: duplicates, log: log, cfg: cfg}, nil
}
