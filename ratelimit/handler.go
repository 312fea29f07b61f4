package ratelimit

import (
	"context"
	"encoding/json"

	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/logging"
	"github.com/vinayprograms/todokit/transport"
)

// RateLimited is the JSON-RPC error code returned for refused calls. It
// sits in the implementation-defined server error range.
const RateLimited = -32029

// anonymous keys calls whose context carries no caller. No account is
// empty, so it cannot share a bucket with a real caller.
const anonymous = ""

// Handler meters next per calling account. Refused calls never reach next
// and are answered with a RateLimited error naming the account.
func Handler(next transport.Handler, limiter RateLimiter, logger *logging.Logger) transport.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	log := logger.WithComponent("ratelimit")

	return transport.HandlerFunc(func(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
		key := anonymous
		if caller, ok := identity.CallerFrom(ctx); ok {
			key = caller.String()
		}

		if !limiter.TryAcquire(key) {
			log.Warn("rate_limited", map[string]interface{}{
				"account": key,
				"method":  method,
			})
			return nil, &transport.Error{
				Code:    RateLimited,
				Message: "Rate limited",
				Data:    key,
			}
		}
		return next.Handle(ctx, method, params)
	})
}
