package client

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"flowgdmp/parcel"
	"flowgdmp/protocol"
)

// InterfaceName asks ep which interface it implements. The result is empty
// when ep is nil or the probe does not complete cleanly.
func InterfaceName(ctx context.Context, ep Endpoint) parcel.String16 {
	if ep == nil {
		return nil
	}
	reply, err := ep.Transact(ctx, InterfaceTransaction, parcel.New())
	if err != nil {
		log.WithError(err).Debug("interface probe failed")
		return nil
	}
	name, err := reply.ReadString16()
	if err != nil {
		log.WithError(err).Debug("interface probe reply unreadable")
		return nil
	}
	return name
}

// Invoke sends one application transaction. The request starts with token,
// followed by whatever write appends (write may be nil).
//
// The reply's exception code is consumed before returning. A non-OK transport
// status yields *TransactionError and a non-zero exception code yields
// *RemoteException; in both cases no reply is returned, so no payload can be
// decoded from it. On success the reply is positioned at the first payload field.
func Invoke(ctx context.Context, ep Endpoint, token parcel.String16, code uint32, write func(*parcel.Parcel)) (*parcel.Parcel, error) {
	if ep == nil {
		return nil, ErrServiceNotFound
	}
	if len(token) == 0 {
		return nil, errors.New("empty interface token")
	}

	data := parcel.New()
	data.WriteInterfaceToken(token)
	if write != nil {
		write(data)
	}

	reply, err := ep.Transact(ctx, code, data)
	if err != nil {
		return nil, transactionError(code, err)
	}

	exception, err := reply.ReadExceptionCode()
	if err != nil {
		return nil, &TransactionError{Code: code, Status: protocol.StatusBadType, Err: err}
	}
	if exception != parcel.ExceptionNone {
		msg, _ := reply.ReadString16()
		return nil, &RemoteException{Code: exception, Message: msg.String()}
	}
	return reply, nil
}

func transactionError(code uint32, err error) *TransactionError {
	var statusErr *protocol.StatusError
	if errors.As(err, &statusErr) {
		return &TransactionError{Code: code, Status: statusErr.Status}
	}
	// the connection itself failed
	return &TransactionError{Code: code, Status: protocol.StatusDeadObject, Err: err}
}
