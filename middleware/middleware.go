// Package middleware wraps the transaction handler of a binder host.
package middleware

import (
	"context"

	"flowgdmp/parcel"
	"flowgdmp/protocol"
)

// Request is one incoming transaction.
type Request struct {
	Code uint32
	Seq  uint32
	Data *parcel.Parcel
}

// Response is what goes back to the caller. Reply is nil unless Status is OK.
type Response struct {
	Status protocol.Status
	Reply  *parcel.Parcel
}

// Failed builds a reply-less response.
func Failed(status protocol.Status) *Response {
	return &Response{Status: status}
}

type HandlerFunc func(ctx context.Context, req *Request) *Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one runs outermost:
// Chain(A, B, C)(h) == A(B(C(h))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
