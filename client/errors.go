package client

import (
	"fmt"

	"github.com/pkg/errors"

	"flowgdmp/parcel"
	"flowgdmp/protocol"
)

var (
	// ErrRegistryUnreachable means the service manager itself could not be asked.
	ErrRegistryUnreachable = errors.New("unable to get default service manager")
	// ErrServiceNotFound means the name is not registered or its interface probe came back empty.
	ErrServiceNotFound = errors.New("service does not exist")
)

// TransactionError is a transact call that did not complete with an OK status.
type TransactionError struct {
	Code   uint32
	Status protocol.Status
	Err    error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction %d: %s: %v", e.Code, e.Status, e.Err)
	}
	return fmt.Sprintf("transaction %d: %s", e.Code, e.Status)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// RemoteException is a reply that completed but carries a non-zero exception code.
type RemoteException struct {
	Code    int32
	Message string
}

func (e *RemoteException) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s exception (%d)", parcel.ExceptionName(e.Code), e.Code)
	}
	return fmt.Sprintf("%s exception (%d): %s", parcel.ExceptionName(e.Code), e.Code, e.Message)
}
