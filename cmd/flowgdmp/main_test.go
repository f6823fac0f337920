package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowgdmp/flowgraph"
	"flowgdmp/parcel"
	"flowgdmp/registry"
	"flowgdmp/server"
)

// graphHost is a stand-in flowgraph service. It answers only GET_GRAPH_STATE.
type graphHost struct {
	descriptor string
	state      parcel.String16
	exception  *server.Exception
	unknown    bool

	mu    sync.Mutex
	codes []uint32
}

func (h *graphHost) Descriptor() string { return h.descriptor }

func (h *graphHost) OnTransact(_ context.Context, code uint32, _, reply *parcel.Parcel) error {
	h.mu.Lock()
	h.codes = append(h.codes, code)
	h.mu.Unlock()

	if code != flowgraph.TransactionGetGraphState || h.unknown {
		return server.ErrUnknownTransaction
	}
	if h.exception != nil {
		return h.exception
	}
	reply.WriteString16(h.state)
	return nil
}

func (h *graphHost) transactions() []uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uint32(nil), h.codes...)
}

// host serves b under name and registers it in reg.
func host(t *testing.T, reg registry.Registry, name string, b server.Binder) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	svr := server.NewServer(name, b)
	go svr.Serve(l, "", reg)
	t.Cleanup(func() { svr.Shutdown(time.Second) })

	require.Eventually(t, func() bool {
		instances, _ := reg.Discover(context.Background(), name)
		return len(instances) > 0
	}, time.Second, 5*time.Millisecond)
}

func using(reg registry.Registry) registryFactory {
	return func(Config) (registry.Registry, error) { return reg, nil }
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runWith(t *testing.T, factory registryFactory, args ...string) result {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(registryEnv, "")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, factory)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestServiceNotRegistered(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	other := &graphHost{descriptor: "IActivityManager"}
	host(t, reg, "activity", other)

	res := runWith(t, using(reg))

	assert.Equal(t, exitNotFound, res.code)
	assert.Contains(t, res.stderr, "flowgraph")
	assert.Contains(t, res.stderr, "does not exist")
	assert.Empty(t, res.stdout)
	assert.Empty(t, other.transactions(), "no transaction may reach an unrelated service")
}

func TestRegisteredButDead(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	require.NoError(t, reg.Register(context.Background(), registry.ServiceInstance{Name: "flowgraph", Addr: addr}, 10))

	res := runWith(t, using(reg))
	assert.Equal(t, exitNotFound, res.code)
	assert.Contains(t, res.stderr, "does not exist")
}

func TestRegistryUnreachable(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.SetUnavailable(true)

	res := runWith(t, using(reg))
	assert.Equal(t, exitNoManager, res.code)
	assert.Contains(t, res.stderr, "service manager")
	assert.Empty(t, res.stdout)
}

func TestRegistrySetupFails(t *testing.T) {
	failing := func(Config) (registry.Registry, error) {
		return nil, errors.Wrap(registry.ErrUnavailable, "no etcd endpoints configured")
	}

	res := runWith(t, failing)
	assert.Equal(t, exitNoManager, res.code)
	assert.Contains(t, res.stderr, "service manager")
}

func TestDumpGraphState(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	g := &graphHost{descriptor: "IFlowGraph", state: parcel.NewString16("digraph{A->B;}")}
	host(t, reg, "flowgraph", g)

	res := runWith(t, using(reg))

	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, "digraph{A->B;}\n", res.stdout)
	assert.Equal(t, []uint32{flowgraph.TransactionGetGraphState}, g.transactions())
}

func TestDumpDropsNonASCII(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	g := &graphHost{descriptor: "IFlowGraph", state: parcel.String16{'d', 'i', 0x00FF, 'g'}}
	host(t, reg, "flowgraph", g)

	res := runWith(t, using(reg))

	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, "dig\n", res.stdout)
}

func TestDumpRemoteException(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	g := &graphHost{
		descriptor: "IFlowGraph",
		exception:  server.NewException(parcel.ExceptionIllegalState, "graph not ready"),
	}
	host(t, reg, "flowgraph", g)

	res := runWith(t, using(reg))

	assert.Equal(t, exitRemoteException, res.code)
	assert.Empty(t, res.stdout, "no payload may be printed after an exception")
	assert.Contains(t, res.stderr, "graph not ready")
}

func TestDumpTransactionFailure(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	host(t, reg, "flowgraph", &graphHost{descriptor: "IFlowGraph", unknown: true})

	res := runWith(t, using(reg))

	assert.Equal(t, exitTransaction, res.code)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "UNKNOWN_TRANSACTION")
}

func TestServiceFlag(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	host(t, reg, "flowgraph.test", &graphHost{descriptor: "IFlowGraph", state: parcel.NewString16("digraph{}")})

	res := runWith(t, using(reg), "-service", "flowgraph.test")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, "digraph{}\n", res.stdout)
}

func TestQuietAndVerbose(t *testing.T) {
	res := runWith(t, using(registry.NewMemoryRegistry()), "-q", "-v")
	assert.Equal(t, exitUsage, res.code)
}

func TestUnknownBalancer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("balancer: consistent\n"), 0o644))

	res := runWith(t, using(registry.NewMemoryRegistry()), "-config", path)
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "unknown balancer")
}

func TestMissingExplicitConfig(t *testing.T) {
	res := runWith(t, using(registry.NewMemoryRegistry()), "-config", filepath.Join(t.TempDir(), "nope.yml"))
	assert.Equal(t, exitUsage, res.code)
}
