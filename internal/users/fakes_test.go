package users

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/simdev/taskhub/pkg/messaging/outbox"
	"github.com/simdev/taskhub/pkg/persistence"
)

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]User
	err    error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]User)}
}

func (r *memRepo) Insert(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, row := range r.rows {
		if row.Email == u.Email {
			return ErrEmailTaken
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.rows[u.ID] = *u
	return nil
}

func (r *memRepo) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[u.ID]; !ok {
		return persistence.ErrEntityNotFound
	}
	r.rows[u.ID] = *u
	return nil
}

func (r *memRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return persistence.ErrEntityNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, persistence.ErrEntityNotFound
	}
	return &u, nil
}

func (r *memRepo) FindAll(context.Context) ([]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*User
	for _, u := range r.rows {
		out = append(out, &u)
	}
	slices.SortFunc(out, func(a, b *User) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *memRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	return ok, nil
}

// passTx runs fn directly and counts transactions.
type passTx struct {
	calls int
}

func (t *passTx) WithTransaction(ctx context.Context, fn func(txCtx context.Context) (any, error)) (any, error) {
	t.calls++
	return fn(ctx)
}

type appended struct {
	EventType string
	Topic     string
	Payload   any
	Key       string
}

type recordingWriter struct {
	mu     sync.Mutex
	events []appended
	err    error
}

func (w *recordingWriter) Append(_ context.Context, eventType, topic string, payload any, key string) (*outbox.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	w.events = append(w.events, appended{EventType: eventType, Topic: topic, Payload: payload, Key: key})
	return &outbox.Event{ID: int64(len(w.events)), EventType: eventType, Topic: topic}, nil
}
