package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyPrefix is the root of all service entries:
//
//	Key:   /flowgdmp/services/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Entries carry a TTL lease, so a host that dies without deregistering
// disappears once its lease expires.
const KeyPrefix = "/flowgdmp/services/"

// DefaultDialTimeout bounds every registry round trip.
const DefaultDialTimeout = 5 * time.Second

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client  *clientv3.Client
	timeout time.Duration
}

// NewEtcdRegistry creates a registry client for the given endpoints. The
// connection is established lazily; an unreachable cluster surfaces as
// ErrUnavailable on the first query.
func NewEtcdRegistry(endpoints []string, timeout time.Duration) (*EtcdRegistry, error) {
	if len(endpoints) == 0 {
		return nil, errors.Wrap(ErrUnavailable, "no etcd endpoints configured")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "etcd client: %v", err)
	}
	return &EtcdRegistry{client: c, timeout: timeout}, nil
}

func serviceKey(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}

// Register puts the instance under a fresh lease of ttl seconds and keeps the
// lease alive in the background until the registry is closed.
//
// The lease ID stays local so several hosts can share one EtcdRegistry.
func (r *EtcdRegistry) Register(ctx context.Context, instance ServiceInstance, ttl int64) error {
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lease, err := r.client.Grant(opCtx, ttl)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "grant lease: %v", err)
	}
	key := serviceKey(instance.Name) + instance.Addr
	if _, err := r.client.Put(opCtx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(ErrUnavailable, "put %s: %v", key, err)
	}

	// KeepAlive outlives the request context; it stops when the client closes.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "keepalive: %v", err)
	}
	go func() {
		for range ch {
		}
		log.WithField("key", key).Debug("registry lease keepalive stopped")
	}()
	return nil
}

// Deregister removes one instance.
func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.client.Delete(opCtx, serviceKey(serviceName)+addr); err != nil {
		return errors.Wrapf(ErrUnavailable, "delete: %v", err)
	}
	return nil
}

// Discover lists every instance under the service prefix. Any failure of the
// query itself is reported as ErrUnavailable.
func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Get(opCtx, serviceKey(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "get %s: %v", serviceKey(serviceName), err)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			log.WithField("key", string(kv.Key)).Warn("skipping malformed registry entry")
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close releases the etcd connection and stops all keepalives.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
