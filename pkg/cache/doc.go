// Package cache provides an in-memory, single-flight cache with a fixed
// time-to-live.
//
// A [TTL] maps keys to values produced by a load function. Storage and
// expiry are an expirable LRU from hashicorp/golang-lru with no size bound;
// concurrent requests for the same missing key are collapsed with
// x/sync/singleflight, so the loader runs once and every waiter receives
// the same value. A request for a stale key triggers a new population.
//
// Loaders do not return errors. Failures are expected to be recorded inside
// the value (for example an Err field on a parsed package) so that a failed
// fetch is cached exactly like a successful one and is not retried until it
// expires.
//
// # Cancellation
//
// Population is decoupled from the caller that triggered it. The loader runs
// in the flight's goroutine with a context derived via [context.WithoutCancel], so
// a caller that gives up (its context is cancelled) stops waiting and gets
// ctx.Err(), while the population continues and its result is cached for the
// next caller.
//
// # Memory
//
// The key space is unbounded. Expired entries age out in the background;
// [TTL.Sweep] drops any that remain.
package cache
