package middleware

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"flowgdmp/protocol"
)

// Logging records every transaction with its duration and outcome.
func Logging(logger *log.Entry) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			start := time.Now()
			resp := next(ctx, req)
			entry := logger.WithFields(log.Fields{
				"code":     req.Code,
				"seq":      req.Seq,
				"duration": time.Since(start),
			})
			if resp.Status != protocol.StatusOK {
				entry.WithField("status", resp.Status).Warn("transaction failed")
			} else {
				entry.Debug("transaction handled")
			}
			return resp
		}
	}
}
