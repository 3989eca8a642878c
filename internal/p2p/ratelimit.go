package p2p

import (
	"sync"
	"time"
)

// Endpoint identifies one (remote IP, ratelimit category) bucket.
type Endpoint int

// Ratelimit categories and their per-window allowance (§4.G, per remote
// IP, sliding 3600-second window).
const (
	EndpointSyncRequest Endpoint = iota
	EndpointSyncResponse
	EndpointBlockGossip
	EndpointTransactionGossip
	EndpointStakeGossip
	EndpointMultiaddrGossip
)

var endpointLimit = map[Endpoint]int{
	EndpointSyncRequest:       61,
	EndpointSyncResponse:      61,
	EndpointBlockGossip:       2,
	EndpointTransactionGossip: 6000,
	EndpointStakeGossip:       6000,
	EndpointMultiaddrGossip:   2,
}

// bucket tracks one IP's hits for one endpoint within the current
// window, plus a timeout deadline once the bucket overflowed.
type bucket struct {
	windowStart time.Time
	count       int
	timeoutAt   time.Time // zero if not timed out
}

// Ratelimiter enforces §4.G's per-IP sliding-window allowances. On
// overflow the (ip, endpoint) pair is timed out for
// RatelimitRequestTimeout; every subsequent event is dropped until
// now - timeout >= window, matching the spec's literal wording rather
// than a generic token-bucket approximation.
type Ratelimiter struct {
	mu      sync.Mutex
	buckets map[string]map[Endpoint]*bucket
}

// NewRatelimiter creates an empty Ratelimiter.
func NewRatelimiter() *Ratelimiter {
	return &Ratelimiter{buckets: make(map[string]map[Endpoint]*bucket)}
}

// Allow records one event from ip against endpoint at time now and
// reports whether it should be processed. A timed-out ip is rejected
// until the timeout has been in force for a full window; then its
// bucket resets.
func (r *Ratelimiter) Allow(ip string, endpoint Endpoint, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	perIP, ok := r.buckets[ip]
	if !ok {
		perIP = make(map[Endpoint]*bucket)
		r.buckets[ip] = perIP
	}
	b, ok := perIP[endpoint]
	if !ok {
		b = &bucket{windowStart: now}
		perIP[endpoint] = b
	}

	if !b.timeoutAt.IsZero() {
		if now.Sub(b.timeoutAt) < RatelimitRequestTimeout {
			return false
		}
		*b = bucket{windowStart: now}
	}

	if now.Sub(b.windowStart) >= RatelimitRequestTimeout {
		b.windowStart = now
		b.count = 0
	}

	b.count++
	if b.count > endpointLimit[endpoint] {
		b.timeoutAt = now
		return false
	}
	return true
}

// Reset clears every bucket (§4.H: "every 60s: clear the gossip filter
// and reset ratelimit counters").
func (r *Ratelimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = make(map[string]map[Endpoint]*bucket)
}
