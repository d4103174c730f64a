package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type component struct {
	name      string
	ready     bool
	startedAt time.Time
	readyAt   time.Time
}

// readiness tracks startup components. Outside Kubernetes, traffic readiness
// follows component readiness; inside, it waits for the first successful probe.
type readiness struct {
	mu           sync.RWMutex
	components   map[string]*component
	isKubernetes bool
	logger       *zap.Logger

	readyChan   chan struct{}
	readyOnce   sync.Once
	trafficChan chan struct{}
	trafficOnce sync.Once
	notifiedAt  time.Time
}

func newReadiness(logger *zap.Logger, isKubernetes bool) *readiness {
	return &readiness{
		components:   make(map[string]*component),
		isKubernetes: isKubernetes,
		logger:       logger,
		readyChan:    make(chan struct{}),
		trafficChan:  make(chan struct{}),
	}
}

func (r *readiness) AddComponent(name string) func() {
	if name == "" {
		panic("readiness: component name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[name]; exists {
		r.logger.Warn("component already registered", zap.String("component", name))
	} else {
		r.components[name] = &component{name: name, startedAt: time.Now()}
	}

	return func() { r.MarkReady(name) }
}

func (r *readiness) MarkReady(name string) {
	if name == "" {
		panic("readiness: component name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	comp, exists := r.components[name]
	if !exists {
		panic(fmt.Sprintf("readiness: component '%s' does not exist, must call AddComponent first", name))
	}
	if comp.ready {
		return
	}

	comp.ready = true
	comp.readyAt = time.Now()
	r.logger.Info("component ready",
		zap.String("component", name),
		zap.Duration("took", comp.readyAt.Sub(comp.startedAt)),
	)

	if r.allReadyLocked() {
		r.readyOnce.Do(func() {
			close(r.readyChan)
			r.logger.Info("all components are ready", zap.Int("component_count", len(r.components)))
		})
	}
}

func (r *readiness) allReadyLocked() bool {
	if len(r.components) == 0 {
		return false
	}
	for _, c := range r.components {
		if !c.ready {
			return false
		}
	}
	return true
}

func (r *readiness) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allReadyLocked()
}

func (r *readiness) GetStatus() ReadinessStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := ReadinessStatus{
		Ready:          r.allReadyLocked(),
		Components:     make([]ComponentStatus, 0, len(r.components)),
		TrafficReadyAt: timePtr(r.notifiedAt),
	}

	var lastReady time.Time
	for _, c := range r.components {
		status.Components = append(status.Components, ComponentStatus{
			Name:      c.name,
			Ready:     c.ready,
			StartedAt: c.startedAt,
			ReadyAt:   timePtr(c.readyAt),
		})
		if !c.ready {
			status.Pending = append(status.Pending, c.name)
		}
		if c.readyAt.After(lastReady) {
			lastReady = c.readyAt
		}
	}
	if status.Ready {
		status.ReadyAt = timePtr(lastReady)
	}
	sort.Slice(status.Components, func(i, j int) bool {
		return status.Components[i].Name < status.Components[j].Name
	})
	sort.Strings(status.Pending)

	return status
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// MarkTrafficReady is called by the readiness probe once it answers 200. No-op until ready.
func (r *readiness) MarkTrafficReady() {
	if !r.IsReady() {
		return
	}
	r.trafficOnce.Do(func() {
		r.mu.Lock()
		r.notifiedAt = time.Now()
		r.mu.Unlock()
		close(r.trafficChan)
		r.logger.Info("service marked ready for traffic")
	})
}

func (r *readiness) WaitReady(ctx context.Context) error {
	select {
	case <-r.readyChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *readiness) WaitForTrafficReady(ctx context.Context) error {
	if err := r.WaitReady(ctx); err != nil {
		return err
	}
	if !r.isKubernetes {
		return nil
	}
	select {
	case <-r.trafficChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
