// Package rate provides the Redis-backed fixed-window counter behind the
// optional two-factor attempt throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - tfa: two-factor verification attempts per login
//
// # What this package must NOT do
//
//   - Decide whether throttling is enabled (the engine owns that).
//   - Be imported outside the authcore module.
package rate
