// Package client is the calling side of the binder protocol: service lookup,
// interface verification, and typed transactions.
package client

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"flowgdmp/loadbalance"
	"flowgdmp/registry"
	"flowgdmp/transport"
)

// ServiceManager resolves service names to endpoints.
type ServiceManager struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	dial     Dialer

	mu     sync.Mutex
	opened []io.Closer // endpoints handed out, released by Close
}

// Option configures a ServiceManager.
type Option func(*ServiceManager)

// WithBalancer selects among several instances of one service.
func WithBalancer(b loadbalance.Balancer) Option {
	return func(sm *ServiceManager) { sm.balancer = b }
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(sm *ServiceManager) { sm.dial = d }
}

// NewServiceManager returns a lookup client over reg.
func NewServiceManager(reg registry.Registry, opts ...Option) *ServiceManager {
	sm := &ServiceManager{
		registry: reg,
		balancer: &loadbalance.RoundRobinBalancer{},
		dial: func(ctx context.Context, addr string) (Endpoint, error) {
			ct, err := transport.Dial(ctx, addr)
			if err != nil {
				return nil, err
			}
			return ct, nil
		},
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// CheckService returns an endpoint for name without waiting for it to appear.
//
// A name that is not registered, or whose instances all refuse connections,
// yields (nil, nil). Only a failure to query the registry is an error, and it
// wraps ErrRegistryUnreachable.
func (sm *ServiceManager) CheckService(ctx context.Context, name string) (Endpoint, error) {
	if sm.registry == nil {
		return nil, ErrRegistryUnreachable
	}
	instances, err := sm.registry.Discover(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(ErrRegistryUnreachable, "check service %q: %v", name, err)
	}

	logger := log.WithField("service", name)
	for len(instances) > 0 {
		inst, err := sm.balancer.Pick(instances)
		if err != nil {
			return nil, nil
		}
		ep, err := sm.dial(ctx, inst.Addr)
		if err == nil {
			logger.WithField("addr", inst.Addr).Debug("service found")
			sm.track(ep)
			return ep, nil
		}
		logger.WithError(err).WithField("addr", inst.Addr).Debug("service instance unreachable")
		instances = without(instances, inst.Addr)
	}
	logger.Debug("service not registered")
	return nil, nil
}

func without(instances []registry.ServiceInstance, addr string) []registry.ServiceInstance {
	out := make([]registry.ServiceInstance, 0, len(instances))
	for _, inst := range instances {
		if inst.Addr != addr {
			out = append(out, inst)
		}
	}
	return out
}

func (sm *ServiceManager) track(ep Endpoint) {
	if c, ok := ep.(io.Closer); ok {
		sm.mu.Lock()
		sm.opened = append(sm.opened, c)
		sm.mu.Unlock()
	}
}

// Close releases every endpoint handed out and the registry connection.
func (sm *ServiceManager) Close() error {
	sm.mu.Lock()
	opened := sm.opened
	sm.opened = nil
	sm.mu.Unlock()

	for _, c := range opened {
		c.Close()
	}
	if sm.registry != nil {
		return sm.registry.Close()
	}
	return nil
}
