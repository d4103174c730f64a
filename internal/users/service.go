package users

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/messaging/event"
	"github.com/simdev/taskhub/pkg/messaging/outbox"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Service owns user mutations. Every mutation appends its event to the
// outbox inside the same transaction.
type Service struct {
	repo       Repository
	tx         persistence.TxManager
	outbox     outbox.Writer
	topic      string
	operations metric.Int64Counter
	now        func() time.Time
}

func NewService(repo Repository, tx persistence.TxManager, w outbox.Writer, cfg Config, mp metric.MeterProvider) (*Service, error) {
	ops, err := mp.Meter("github.com/simdev/taskhub/users").Int64Counter("users.operations.total",
		metric.WithDescription("User mutations by operation"))
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:       repo,
		tx:         tx,
		outbox:     w,
		topic:      cfg.Topic,
		operations: ops,
		now:        time.Now,
	}, nil
}

func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	u, err := persistence.InTx(ctx, s.tx, func(txCtx context.Context) (*User, error) {
		u := &User{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Active:    req.Active == nil || *req.Active,
		}
		if err := s.repo.Insert(txCtx, u); err != nil {
			return nil, err
		}
		if err := s.publish(txCtx, event.Created, u.ID, u.Email); err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "create")
	logger.Get(ctx).Info("user created", zap.Int64("user_id", u.ID), zap.String("email", maskEmail(u.Email)))
	return u, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	u, err := persistence.InTx(ctx, s.tx, func(txCtx context.Context) (*User, error) {
		u, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		u.FirstName = req.FirstName
		u.LastName = req.LastName
		if req.Active != nil {
			u.Active = *req.Active
		}
		if err := s.repo.Update(txCtx, u); err != nil {
			return nil, err
		}
		if err := s.publish(txCtx, event.Updated, u.ID, u.Email); err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "update")
	logger.Get(ctx).Info("user updated", zap.Int64("user_id", u.ID), zap.String("email", maskEmail(u.Email)))
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	u, err := persistence.InTx(ctx, s.tx, func(txCtx context.Context) (*User, error) {
		u, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return nil, err
		}
		if err := s.publish(txCtx, event.Deleted, u.ID, u.Email); err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, "delete")
	logger.Get(ctx).Info("user deleted", zap.Int64("user_id", u.ID), zap.String("email", maskEmail(u.Email)))
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.repo.FindAll(ctx)
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func (s *Service) publish(ctx context.Context, c event.Category, userID int64, email string) error {
	payload := event.NewUserEvent(c, userID, email, s.now())
	_, err := s.outbox.Append(ctx, event.TypeName(event.EntityUser, c), s.topic, payload, strconv.FormatInt(userID, 10))
	if err != nil {
		return fmt.Errorf("failed to append %s event for user %d: %w", c, userID, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, op string) {
	s.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
