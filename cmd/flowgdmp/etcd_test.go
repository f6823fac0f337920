package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowgdmp/parcel"
	"flowgdmp/registry"
)

const localEtcd = "127.0.0.1:2379"

// Full path: etcd lookup, TCP binder host, interface probe, graph state.
func TestDumpWithEtcd(t *testing.T) {
	conn, err := net.DialTimeout("tcp", localEtcd, 200*time.Millisecond)
	if err != nil {
		t.Skipf("etcd not running on %s: %v", localEtcd, err)
	}
	conn.Close()

	reg, err := registry.NewEtcdRegistry([]string{localEtcd}, time.Second)
	require.NoError(t, err)
	defer reg.Close()

	const name = "flowgraph-e2e"
	host(t, reg, name, &graphHost{descriptor: "IFlowGraph", state: parcel.NewString16("digraph{A->B;}")})
	host(t, reg, name, &graphHost{descriptor: "IFlowGraph", state: parcel.NewString16("digraph{A->B;}")})

	require.Eventually(t, func() bool {
		instances, _ := reg.Discover(context.Background(), name)
		return len(instances) == 2
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		res := runWith(t, etcdRegistry, "-registry", localEtcd, "-service", name)
		require.Equal(t, exitOK, res.code, res.stderr)
		assert.Equal(t, "digraph{A->B;}\n", res.stdout)
	}
}
