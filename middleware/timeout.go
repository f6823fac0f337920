package middleware

import (
	"context"
	"time"

	"flowgdmp/protocol"
)

// Timeout fails a transaction with FAILED_TRANSACTION when the handler does
// not answer in time. The handler keeps running with a canceled context.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return Failed(protocol.StatusFailedTransaction)
			}
		}
	}
}
