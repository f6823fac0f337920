// Package registry is the service directory that maps service names to binder hosts.
package registry

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnavailable means the registry itself could not be queried. It is distinct
// from a name that is simply not registered.
var ErrUnavailable = errors.New("registry unavailable")

// ServiceInstance is one binder host serving a named service.
type ServiceInstance struct {
	Name       string `json:"name"`
	Addr       string `json:"addr"`
	Descriptor string `json:"descriptor,omitempty"` // interface the host declares, informational
	Weight     int    `json:"weight,omitempty"`     // for load balancing
}

// Registry stores service instances by name.
type Registry interface {
	Register(ctx context.Context, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	// Discover returns all instances registered under serviceName. An unknown
	// name yields an empty list and no error.
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	Close() error
}
