package client

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowgdmp/parcel"
	"flowgdmp/registry"
)

type fakeEndpoint struct {
	addr   string
	closed bool
	calls  []uint32
	reply  func(code uint32, data *parcel.Parcel) (*parcel.Parcel, error)
}

func (f *fakeEndpoint) Transact(_ context.Context, code uint32, data *parcel.Parcel) (*parcel.Parcel, error) {
	f.calls = append(f.calls, code)
	return f.reply(code, data)
}

func (f *fakeEndpoint) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	dialed []string
	down   map[string]bool
	eps    map[string]*fakeEndpoint
}

func (d *fakeDialer) dial(_ context.Context, addr string) (Endpoint, error) {
	d.dialed = append(d.dialed, addr)
	if d.down[addr] {
		return nil, errors.New("connection refused")
	}
	ep := &fakeEndpoint{addr: addr}
	if d.eps == nil {
		d.eps = map[string]*fakeEndpoint{}
	}
	d.eps[addr] = ep
	return ep, nil
}

func TestCheckServiceNotRegistered(t *testing.T) {
	d := &fakeDialer{}
	sm := NewServiceManager(registry.NewMemoryRegistry(), WithDialer(d.dial))

	ep, err := sm.CheckService(context.Background(), "flowgraph")
	require.NoError(t, err)
	assert.Nil(t, ep)
	assert.Empty(t, d.dialed, "no connection may be attempted for an unknown name")
}

func TestCheckServiceRegistryDown(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.SetUnavailable(true)
	sm := NewServiceManager(reg)

	ep, err := sm.CheckService(context.Background(), "flowgraph")
	assert.Nil(t, ep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegistryUnreachable))
}

func TestCheckServiceNilRegistry(t *testing.T) {
	_, err := NewServiceManager(nil).CheckService(context.Background(), "flowgraph")
	assert.True(t, errors.Is(err, ErrRegistryUnreachable))
}

func TestCheckServiceSkipsDeadInstance(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	require.NoError(t, reg.Register(ctx, registry.ServiceInstance{Name: "flowgraph", Addr: "a:1"}, 10))
	require.NoError(t, reg.Register(ctx, registry.ServiceInstance{Name: "flowgraph", Addr: "b:1"}, 10))

	d := &fakeDialer{down: map[string]bool{"a:1": true}}
	sm := NewServiceManager(reg, WithDialer(d.dial))

	ep, err := sm.CheckService(ctx, "flowgraph")
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Equal(t, "b:1", ep.(*fakeEndpoint).addr)
	assert.Equal(t, []string{"a:1", "b:1"}, d.dialed)

	require.NoError(t, sm.Close())
	assert.True(t, d.eps["b:1"].closed)
}

func TestCheckServiceAllInstancesDead(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	require.NoError(t, reg.Register(ctx, registry.ServiceInstance{Name: "flowgraph", Addr: "a:1"}, 10))

	d := &fakeDialer{down: map[string]bool{"a:1": true}}
	sm := NewServiceManager(reg, WithDialer(d.dial))

	ep, err := sm.CheckService(ctx, "flowgraph")
	require.NoError(t, err)
	assert.Nil(t, ep)
}
