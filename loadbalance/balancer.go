// Package loadbalance picks one binder host when several are registered under
// the same service name.
//
// Two strategies are implemented:
//   - RoundRobin:      hosts of equal capacity
//   - WeightedRandom:  hosts with different registered weights
package loadbalance

import (
	"fmt"

	"github.com/pkg/errors"

	"flowgdmp/registry"
)

// ErrNoInstances is returned by Pick on an empty list.
var ErrNoInstances = errors.New("no instances available")

// Balancer selects a target instance before a lookup hands out an endpoint.
type Balancer interface {
	// Pick selects one instance from the available list. Must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging).
	Name() string
}

// New returns the balancer registered under name. An empty name selects round robin.
func New(name string) (Balancer, error) {
	switch name {
	case "", "roundrobin":
		return &RoundRobinBalancer{}, nil
	case "weighted":
		return &WeightedRandomBalancer{}, nil
	}
	return nil, fmt.Errorf("unknown balancer %q", name)
}
