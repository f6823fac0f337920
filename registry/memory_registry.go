package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// MemoryRegistry is an in-process Registry. TTLs are ignored.
type MemoryRegistry struct {
	mu          sync.RWMutex
	services    map[string]map[string]ServiceInstance // name → addr → instance
	unavailable bool
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{services: make(map[string]map[string]ServiceInstance)}
}

// SetUnavailable makes every subsequent call fail with ErrUnavailable until reset.
func (r *MemoryRegistry) SetUnavailable(down bool) {
	r.mu.Lock()
	r.unavailable = down
	r.mu.Unlock()
}

func (r *MemoryRegistry) Register(_ context.Context, instance ServiceInstance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return errors.Wrap(ErrUnavailable, "memory registry down")
	}
	byAddr, ok := r.services[instance.Name]
	if !ok {
		byAddr = make(map[string]ServiceInstance)
		r.services[instance.Name] = byAddr
	}
	byAddr[instance.Addr] = instance
	return nil
}

func (r *MemoryRegistry) Deregister(_ context.Context, serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return errors.Wrap(ErrUnavailable, "memory registry down")
	}
	delete(r.services[serviceName], addr)
	if len(r.services[serviceName]) == 0 {
		delete(r.services, serviceName)
	}
	return nil
}

// Discover returns instances sorted by address so callers see a stable order.
func (r *MemoryRegistry) Discover(_ context.Context, serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.unavailable {
		return nil, errors.Wrap(ErrUnavailable, "memory registry down")
	}
	instances := make([]ServiceInstance, 0, len(r.services[serviceName]))
	for _, inst := range r.services[serviceName] {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].Addr < instances[j].Addr })
	return instances, nil
}

func (r *MemoryRegistry) Close() error {
	return nil
}
