// Package rate provides the failed sign-in attempt limiters used by the client
// before it calls an authentication provider.
//
// # Window semantics
//
// [RedisLimiter] uses fixed-window counters: INCR + conditional EXPIRE on first hit,
// keyed as <prefix>:sf:<identifier>. [MemoryLimiter] uses one token bucket per
// identifier that refills the whole budget over the cooldown.
//
// # What this package must NOT do
//
//   - Count successful attempts.
//   - Import authsession or any sibling internal package.
package rate
