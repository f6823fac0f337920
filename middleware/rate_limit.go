package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"flowgdmp/protocol"
)

// RateLimit admits r transactions per second with the given burst (token
// bucket). Excess transactions fail with FAILED_TRANSACTION.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			if !limiter.Allow() {
				return Failed(protocol.StatusFailedTransaction)
			}
			return next(ctx, req)
		}
	}
}
