package outbox

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// memStore is an in-memory Store following the same status rules as the
// database implementations.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Event
	err    error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]*Event)}
}

func (s *memStore) Insert(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.nextID++
	e.ID = s.nextID
	e.Status = StatusPending
	e.CreatedAt = time.Now()
	cp := *e
	s.rows[e.ID] = &cp
	return nil
}

func (s *memStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *memStore) ClaimPending(_ context.Context, limit int, now time.Time) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	blocked := map[string]bool{}
	var out []*Event
	for _, id := range s.sortedIDs() {
		r := s.rows[id]
		if r.Status != StatusPending && r.Status != StatusProcessing {
			continue
		}
		key := r.Key()
		if blocked[key] {
			continue
		}
		blocked[key] = true
		if r.Status != StatusPending || len(out) >= limit {
			continue
		}
		r.Status = StatusProcessing
		at := now
		r.ProcessedAt = &at
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) MarkPublished(_ context.Context, ids []int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for _, id := range ids {
		if r, ok := s.rows[id]; ok && r.Status == StatusProcessing {
			r.Status = StatusPublished
			t := at
			r.ProcessedAt = &t
			r.ErrorMessage = nil
			n++
		}
	}
	return n, nil
}

func (s *memStore) recordFailureLocked(id int64, errMsg string, maxRetries int) *Outcome {
	r, ok := s.rows[id]
	if !ok || r.Status != StatusProcessing {
		return nil
	}
	r.RetryCount++
	msg := errMsg
	r.ErrorMessage = &msg
	r.Status = StatusPending
	if r.RetryCount >= maxRetries {
		r.Status = StatusFailed
	}
	return &Outcome{ID: id, Status: r.Status, RetryCount: r.RetryCount}
}

func (s *memStore) RecordFailure(_ context.Context, id int64, errMsg string, maxRetries int) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.recordFailureLocked(id, errMsg, maxRetries), nil
}

func (s *memStore) ReleaseStale(_ context.Context, olderThan time.Time, errMsg string, maxRetries int) ([]Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Outcome
	for _, id := range s.sortedIDs() {
		r := s.rows[id]
		if r.Status == StatusProcessing && r.ProcessedAt != nil && r.ProcessedAt.Before(olderThan) {
			out = append(out, *s.recordFailureLocked(id, errMsg, maxRetries))
		}
	}
	return out, nil
}

func (s *memStore) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for id, r := range s.rows {
		if r.Status == StatusPublished && r.ProcessedAt != nil && r.ProcessedAt.Before(cutoff) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) List(_ context.Context, f ListFilter) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, id := range s.sortedIDs() {
		r := s.rows[id]
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) CountByStatus(context.Context) (map[Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[Status]int64{}
	for _, r := range s.rows {
		out[r.Status]++
	}
	return out, nil
}

func (s *memStore) Requeue(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != StatusFailed {
		return ErrNotRequeueable
	}
	r.Status = StatusPending
	r.RetryCount = 0
	r.ErrorMessage = nil
	return nil
}

func (s *memStore) get(id int64) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

func (s *memStore) setProcessedAt(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id].ProcessedAt = &at
}

func (s *memStore) setStatus(id int64, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id].Status = status
}

// stubProducer records messages. Deliveries are reported only when autoDeliver is set.
type stubProducer struct {
	mu          sync.Mutex
	produced    []*kafka.Message
	produceErr  error
	autoDeliver bool
	attempts    int
}

func (p *stubProducer) Produce(msg *kafka.Message, ch chan kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.produceErr != nil {
		return p.produceErr
	}
	p.produced = append(p.produced, msg)
	if p.autoDeliver {
		ch <- msg
	}
	return nil
}

func (p *stubProducer) Close() {}

func (p *stubProducer) produceAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *stubProducer) messages() []*kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kafka.Message(nil), p.produced...)
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.StaleCheckInterval = 10 * time.Millisecond
	cfg.ConfirmFlushInterval = 10 * time.Millisecond
	cfg.RetentionInterval = 10 * time.Millisecond
	return cfg
}

func testReconciler(store Store, cfg Config) *reconciler {
	m, err := newMetrics(noop.NewMeterProvider())
	if err != nil {
		panic(err)
	}
	return newReconciler(store, cfg, m, zap.NewNop())
}

func testTracer() tracePropagator {
	return newTracePropagator(tracenoop.NewTracerProvider())
}

func delivery(topic string, id int64, err error) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Error: err},
		Opaque:         id,
	}
}

var errBroker = errors.New("broker unavailable")
