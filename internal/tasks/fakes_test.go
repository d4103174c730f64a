package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/simdev/taskhub/pkg/existence"
	"github.com/simdev/taskhub/pkg/messaging/outbox"
	"github.com/simdev/taskhub/pkg/persistence"
)

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Task
	err    error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]Task)}
}

func (r *memRepo) Insert(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextID++
	t.ID = r.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.rows[t.ID] = *t
	return nil
}

func (r *memRepo) Update(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[t.ID]; !ok {
		return persistence.ErrEntityNotFound
	}
	r.rows[t.ID] = *t
	return nil
}

func (r *memRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rows[id]; !ok {
		return persistence.ErrEntityNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, persistence.ErrEntityNotFound
	}
	return &t, nil
}

func (r *memRepo) FindAll(context.Context) ([]*Task, error) {
	return r.filter(func(Task) bool { return true }), nil
}

func (r *memRepo) FindByUserID(_ context.Context, userID int64) ([]*Task, error) {
	return r.filter(func(t Task) bool { return t.UserID == userID }), nil
}

func (r *memRepo) filter(keep func(Task) bool) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Task
	for id := int64(1); id <= r.nextID; id++ {
		if t, ok := r.rows[id]; ok && keep(t) {
			out = append(out, &t)
		}
	}
	return out
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

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

// fakeDirectory knows the users in known. Any other id is reported missing
// unless err is set.
type fakeDirectory struct {
	known map[int64]bool
	err   error
	calls int
}

func (d *fakeDirectory) Exists(_ context.Context, id int64) (bool, error) {
	d.calls++
	if d.err != nil {
		return false, d.err
	}
	if !d.known[id] {
		return false, existence.ErrNotFound
	}
	return true, nil
}

type fakeEvicter struct {
	evicted []int64
	flushes int
}

func (e *fakeEvicter) Evict(id int64) { e.evicted = append(e.evicted, id) }
func (e *fakeEvicter) EvictAll()      { e.flushes++ }
