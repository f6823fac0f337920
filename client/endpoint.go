package client

import (
	"context"

	"flowgdmp/parcel"
	"flowgdmp/protocol"
)

// Reserved transaction codes, see protocol.
const (
	FirstCallTransaction = protocol.FirstCallTransaction
	LastCallTransaction  = protocol.LastCallTransaction
	InterfaceTransaction = protocol.InterfaceTransaction
)

// Endpoint is a handle to one remote binder. Transact is synchronous.
//
// A nil error means the transport status was OK and the returned parcel is
// the complete reply. Any error means the reply is undefined.
type Endpoint interface {
	Transact(ctx context.Context, code uint32, data *parcel.Parcel) (*parcel.Parcel, error)
}

// Dialer opens an Endpoint for a registered address.
type Dialer func(ctx context.Context, addr string) (Endpoint, error)
