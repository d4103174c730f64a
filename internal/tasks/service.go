package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/existence"
	"github.com/simdev/taskhub/pkg/messaging/event"
	"github.com/simdev/taskhub/pkg/messaging/outbox"
	"github.com/simdev/taskhub/pkg/observability/tracing"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/simdev/taskhub/tasks"

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrUserCheckUnavailable means the users service could not confirm the
	// owner and the existence cache is configured to fail closed.
	ErrUserCheckUnavailable = errors.New("user check unavailable")
)

// UserDirectory answers whether a user exists. *existence.Cache implements it.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// Service owns task mutations. Every mutation appends its event to the
// outbox inside the same transaction.
type Service struct {
	repo    Repository
	tx      persistence.TxManager
	outbox  outbox.Writer
	users   UserDirectory
	topic   string
	tracer  trace.Tracer
	metrics *taskMetrics
	now     func() time.Time
}

func NewService(
	repo Repository,
	tx persistence.TxManager,
	w outbox.Writer,
	users UserDirectory,
	cfg Config,
	mp metric.MeterProvider,
	tp trace.TracerProvider,
) (*Service, error) {
	m, err := newTaskMetrics(mp)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		outbox:  w,
		users:   users,
		topic:   cfg.Topic,
		tracer:  tp.Tracer(instrumentationName),
		metrics: m,
		now:     time.Now,
	}, nil
}

func (s *Service) Create(ctx context.Context, req CreateTaskRequest) (_ *Task, err error) {
	ctx, end := tracing.WithSpan(ctx, s.tracer, "tasks.create",
		trace.WithAttributes(attribute.Int64("user.id", req.UserID)))
	defer func() { end(err) }()
	defer s.metrics.observe(ctx, "create", s.now())

	status, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	t, err := persistence.InTx(ctx, s.tx, func(txCtx context.Context) (*Task, error) {
		t := &Task{
			Title:       req.Title,
			Description: req.Description,
			Status:      status,
			UserID:      req.UserID,
		}
		if err := s.repo.Insert(txCtx, t); err != nil {
			return nil, err
		}
		if err := s.publish(txCtx, event.Created, t, string(t.Status)); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.created.Add(ctx, 1)
	logger.Get(ctx).Info("task created", zap.Int64("task_id", t.ID), zap.Int64("user_id", t.UserID))
	return t, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateTaskRequest) (_ *Task, err error) {
	ctx, end := tracing.WithSpan(ctx, s.tracer, "tasks.update",
		trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { end(err) }()
	defer s.metrics.observe(ctx, "update", s.now())

	t, err := persistence.InTx(ctx, s.tx, func(txCtx context.Context) (*Task, error) {
		t, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		t.Title = req.Title
		t.Description = req.Description
		if req.Status != "" {
			st, err := ParseStatus(req.Status)
			if err != nil {
				return nil, err
			}
			t.Status = st
		}
		if err := s.repo.Update(txCtx, t); err != nil {
			return nil, err
		}
		if err := s.publish(txCtx, event.Updated, t, string(t.Status)); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.updated.Add(ctx, 1)
	logger.Get(ctx).Info("task updated", zap.Int64("task_id", t.ID), zap.String("status", string(t.Status)))
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, end := tracing.WithSpan(ctx, s.tracer, "tasks.delete",
		trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { end(err) }()
	defer s.metrics.observe(ctx, "delete", s.now())

	_, err = persistence.InTx(ctx, s.tx, func(txCtx context.Context) (*Task, error) {
		t, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		return t, s.delete(txCtx, t)
	})
	if err != nil {
		return err
	}

	s.metrics.deleted.Add(ctx, 1)
	logger.Get(ctx).Info("task deleted", zap.Int64("task_id", id))
	return nil
}

// DeleteByUser removes every task owned by userID and appends a
// task.deleted event for each. It joins the transaction carried by ctx and
// counts the deletions only once that transaction commits.
func (s *Service) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	return persistence.InTx(ctx, s.tx, func(txCtx context.Context) (int, error) {
		tasks, err := s.repo.FindByUserID(txCtx, userID)
		if err != nil {
			return 0, err
		}
		for _, t := range tasks {
			if err := s.delete(txCtx, t); err != nil {
				return 0, err
			}
		}
		if n := int64(len(tasks)); n > 0 {
			persistence.AfterCommit(txCtx, func() {
				s.metrics.deleted.Add(context.WithoutCancel(ctx), n)
			})
		}
		return len(tasks), nil
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Task, error) {
	defer s.metrics.observe(ctx, "get", s.now())
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.retrieved.Add(ctx, 1)
	return t, nil
}

// List returns every task, or only those of userID when it is non-zero.
func (s *Service) List(ctx context.Context, userID int64) ([]*Task, error) {
	defer s.metrics.observe(ctx, "list", s.now())

	var (
		tasks []*Task
		err   error
	)
	if userID > 0 {
		tasks, err = s.repo.FindByUserID(ctx, userID)
	} else {
		tasks, err = s.repo.FindAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.retrieved.Add(ctx, 1)
	if tasks == nil {
		tasks = []*Task{}
	}
	return tasks, nil
}

func (s *Service) checkUser(ctx context.Context, userID int64) error {
	_, err := s.users.Exists(ctx, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, existence.ErrNotFound):
		return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w: %w", ErrUserCheckUnavailable, err)
	}
}

func (s *Service) delete(ctx context.Context, t *Task) error {
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		return err
	}
	return s.publish(ctx, event.Deleted, t, statusDeleted)
}

func (s *Service) publish(ctx context.Context, c event.Category, t *Task, status string) error {
	payload := event.NewTaskEvent(c, t.ID, t.UserID, t.Title, t.Description, status, s.now())
	_, err := s.outbox.Append(ctx, event.TypeName(event.EntityTask, c), s.topic, payload, strconv.FormatInt(t.ID, 10))
	if err != nil {
		return fmt.Errorf("failed to append %s event for task %d: %w", c, t.ID, err)
	}
	return nil
}
