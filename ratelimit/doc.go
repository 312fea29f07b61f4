// Package ratelimit meters JSON-RPC calls per account.
//
// MemoryLimiter keeps a token bucket for every key it sees, refilled at
// capacity/window:
//
//	limiter, err := ratelimit.NewMemoryLimiter(120, time.Minute)
//	if err != nil {
//	    return err
//	}
//	limiter.SetCapacity("admin", 600, time.Minute)
//
//	handler = ratelimit.Handler(handler, limiter, logger)
//
// Handler takes the key from the caller bound to the request context, so
// every session of one account draws from the same bucket. Buckets that
// have refilled completely can be dropped with Prune.
package ratelimit
