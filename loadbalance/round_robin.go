package loadbalance

import (
	"sync/atomic"

	"flowgdmp/registry"
)

// RoundRobinBalancer cycles through instances in order using an atomic counter.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

// Pick returns the next instance. The first call returns the first instance.
func (b *RoundRobinBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	index := (b.counter.Add(1) - 1) % uint64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
