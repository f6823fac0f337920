package server

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"flowgdmp/parcel"
)

// ErrUnknownTransaction tells the host that a code is not implemented. The
// caller then sees UNKNOWN_TRANSACTION.
var ErrUnknownTransaction = errors.New("unknown transaction")

// Binder is an object hosted by a Server.
//
// OnTransact runs after the host has checked the interface token. data is
// positioned just past the token. reply already holds the no-exception header;
// OnTransact appends the return values.
type Binder interface {
	Descriptor() string
	OnTransact(ctx context.Context, code uint32, data, reply *parcel.Parcel) error
}

// Exception is returned by OnTransact to send an exception reply.
type Exception struct {
	Code    int32
	Message string
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s exception: %s", parcel.ExceptionName(e.Code), e.Message)
}

// NewException builds an Exception with a formatted message.
func NewException(code int32, format string, args ...any) *Exception {
	return &Exception{Code: code, Message: fmt.Sprintf(format, args...)}
}
