package registry

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const localEtcd = "127.0.0.1:2379"

func requireEtcd(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", localEtcd, 200*time.Millisecond)
	if err != nil {
		t.Skipf("etcd not running on %s: %v", localEtcd, err)
	}
	conn.Close()
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	requireEtcd(t)
	ctx := context.Background()

	reg, err := NewEtcdRegistry([]string{localEtcd}, time.Second)
	require.NoError(t, err)
	defer reg.Close()

	inst1 := ServiceInstance{Name: "flowgraph-test", Addr: "127.0.0.1:8001", Descriptor: "IFlowGraph", Weight: 10}
	inst2 := ServiceInstance{Name: "flowgraph-test", Addr: "127.0.0.1:8002", Descriptor: "IFlowGraph", Weight: 5}
	require.NoError(t, reg.Register(ctx, inst1, 10))
	require.NoError(t, reg.Register(ctx, inst2, 10))

	instances, err := reg.Discover(ctx, "flowgraph-test")
	require.NoError(t, err)
	assert.Len(t, instances, 2)

	require.NoError(t, reg.Deregister(ctx, "flowgraph-test", inst1.Addr))

	instances, err = reg.Discover(ctx, "flowgraph-test")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, inst2, instances[0])

	require.NoError(t, reg.Deregister(ctx, "flowgraph-test", inst2.Addr))
}

func TestEtcdDiscoverUnknownName(t *testing.T) {
	requireEtcd(t)

	reg, err := NewEtcdRegistry([]string{localEtcd}, time.Second)
	require.NoError(t, err)
	defer reg.Close()

	instances, err := reg.Discover(context.Background(), "no-such-service")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestEtcdUnreachable(t *testing.T) {
	// Nothing listens on a port we just released.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	reg, err := NewEtcdRegistry([]string{addr}, 300*time.Millisecond)
	if err == nil {
		defer reg.Close()
		_, err = reg.Discover(context.Background(), "flowgraph")
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestEtcdNoEndpoints(t *testing.T) {
	_, err := NewEtcdRegistry(nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
