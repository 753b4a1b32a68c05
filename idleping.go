package wsconn

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter throttles the idle-ping loop so that a connection recently
// active from application traffic doesn't also get hit with a redundant
// ping, mirroring the rate-limited idle-ping pattern implied by the
// teacher's go.mod dependency on golang.org/x/time (used there only for
// benchmarking; this wires it into an actual code path per SPEC_FULL §3).
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	if interval <= 0 {
		return nil
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// markActivity consumes a token so the idle-ping loop skips its next tick
// if traffic already happened within the interval.
func (r *rateLimiter) markActivity() {
	r.limiter.AllowN(time.Now(), 1)
}

// allow reports whether enough time has passed since the last activity (or
// the last idle ping) to justify sending another idle ping.
func (r *rateLimiter) allow() bool {
	return r.limiter.AllowN(time.Now(), 1)
}

// runIdlePingLoop sends a ping on cfg.PingInterval whenever no other frame
// has reset the limiter, stopping once the connection closes.
func (c *Connection) runIdlePingLoop() {
	if c.limiter == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if !c.limiter.allow() {
				continue
			}
			if !c.State().CanSend() {
				return
			}
			go c.Ping()
		}
	}
}
