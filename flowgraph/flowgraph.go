// Package flowgraph is the client for the IFlowGraph interface, the system
// service that tracks processes and tainted traffic between them.
package flowgraph

import (
	"context"

	"flowgdmp/client"
	"flowgdmp/parcel"
	"flowgdmp/protocol"
)

// ServiceName is the registry name of the flow graph service.
const ServiceName = "flowgraph"

// Transaction codes, in interface declaration order.
const (
	TransactionSpawnProcess     = client.FirstCallTransaction + iota // spawnProcess(pid, uid)
	TransactionExitProcess                                           // exitProcess(pid, uid)
	TransactionSetProcessName                                        // setProcessName(pid, name)
	TransactionPreCommunication                                      // preCommunication(...)
	TransactionGetGraphState                                         // logGraphState() -> String16
)

// Proxy issues IFlowGraph transactions against one endpoint.
type Proxy struct {
	ep    client.Endpoint
	token parcel.String16
}

// NewProxy binds ep with the interface token every request will lead with.
// The token is normally the result of client.InterfaceName.
func NewProxy(ep client.Endpoint, token parcel.String16) *Proxy {
	return &Proxy{ep: ep, token: token}
}

func (p *Proxy) call(ctx context.Context, code uint32, write func(*parcel.Parcel)) (*parcel.Parcel, error) {
	return client.Invoke(ctx, p.ep, p.token, code, write)
}

// SpawnProcess reports a new process.
func (p *Proxy) SpawnProcess(ctx context.Context, pid, uid int32) error {
	_, err := p.call(ctx, TransactionSpawnProcess, func(d *parcel.Parcel) {
		d.WriteInt32(pid)
		d.WriteInt32(uid)
	})
	return err
}

// ExitProcess reports a process exit.
func (p *Proxy) ExitProcess(ctx context.Context, pid, uid int32) error {
	_, err := p.call(ctx, TransactionExitProcess, func(d *parcel.Parcel) {
		d.WriteInt32(pid)
		d.WriteInt32(uid)
	})
	return err
}

// SetProcessName attaches a package name to pid.
func (p *Proxy) SetProcessName(ctx context.Context, pid int32, name string) error {
	_, err := p.call(ctx, TransactionSetProcessName, func(d *parcel.Parcel) {
		d.WriteInt32(pid)
		d.WriteString(name)
	})
	return err
}

// Communication describes one IPC about to happen between two processes.
type Communication struct {
	FromPid, FromUid int32
	ToPid, ToUid     int32
	SizeInBytes      int32
	TaintTag         int32
}

// PreCommunication reports traffic before it is delivered.
func (p *Proxy) PreCommunication(ctx context.Context, c Communication) error {
	_, err := p.call(ctx, TransactionPreCommunication, func(d *parcel.Parcel) {
		d.WriteInt32(c.FromPid)
		d.WriteInt32(c.FromUid)
		d.WriteInt32(c.ToPid)
		d.WriteInt32(c.ToUid)
		d.WriteInt32(c.SizeInBytes)
		d.WriteInt32(c.TaintTag)
	})
	return err
}

// GraphState fetches the current graph rendered as text (DOT) and narrows it
// to ASCII; see parcel.String16.Narrow.
func (p *Proxy) GraphState(ctx context.Context) (string, error) {
	reply, err := p.call(ctx, TransactionGetGraphState, nil)
	if err != nil {
		return "", err
	}
	state, err := reply.ReadString16()
	if err != nil {
		return "", &client.TransactionError{Code: TransactionGetGraphState, Status: protocol.StatusBadType, Err: err}
	}
	return state.Narrow(), nil
}
