package health

import (
	"context"
	"time"
)

// ComponentStatus is one startup dependency, e.g. "postgres" or
// "kafka-consumer-user-events".
type ComponentStatus struct {
	Name      string     `json:"name"`
	Ready     bool       `json:"ready"`
	StartedAt time.Time  `json:"startedAt"`
	ReadyAt   *time.Time `json:"readyAt,omitempty"`
}

// ReadinessStatus is the body of /health/ready.
type ReadinessStatus struct {
	Ready      bool              `json:"ready"`
	Components []ComponentStatus `json:"components"`
	// Pending names the components still starting, sorted.
	Pending        []string   `json:"pending,omitempty"`
	ReadyAt        *time.Time `json:"readyAt,omitempty"`
	TrafficReadyAt *time.Time `json:"trafficReadyAt,omitempty"`
}

// ComponentManager registers startup components. The returned func marks the
// component ready and is safe to call more than once.
type ComponentManager interface {
	AddComponent(name string) func()
}

type ReadinessChecker interface {
	IsReady() bool
	GetStatus() ReadinessStatus
}

// ReadinessWaiter blocks workers until the service can do useful work.
// WaitReady returns once every component is ready; WaitForTrafficReady
// additionally waits for the first successful readiness probe.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context) error
	WaitForTrafficReady(ctx context.Context) error
}

type TrafficController interface {
	MarkTrafficReady()
}
