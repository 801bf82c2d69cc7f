package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pangivault/native/common"
	"pangivault/observability"
)

// RateLimit bounds requests per client address.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks a token bucket per client address.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	idleTTL  time.Duration
	clockNow func() time.Time
}

// NewRateLimiter builds a limiter with the supplied per-client budget.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		idleTTL:  5 * time.Minute,
		clockNow: time.Now,
	}
}

// Middleware rejects requests from clients that exhausted their bucket.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.obtainLimiter(clientID(req)).Allow() {
			observability.ModuleMetrics().RecordThrottle(moduleName, "rate_limit")
			writeJSONError(w, http.StatusTooManyRequests, "RateLimited", "throttle", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clockNow()
	for key, entry := range r.visitors {
		if now.Sub(entry.lastSeen) > r.idleTTL {
			delete(r.visitors, key)
		}
	}
	entry, ok := r.visitors[id]
	if ok {
		entry.lastSeen = now
		return entry.limiter
	}
	perSecond := r.limit.RequestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = &rateEntry{limiter: limiter, lastSeen: now}
	return limiter
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// quotaTracker applies a common.Quota to each authenticated caller.
type quotaTracker struct {
	quota common.Quota
	mu    sync.Mutex
	usage map[string]common.QuotaNow
	now   func() time.Time
}

func newQuotaTracker(q common.Quota) *quotaTracker {
	return &quotaTracker{quota: q, usage: make(map[string]common.QuotaNow), now: time.Now}
}

// charge records one request moving amount base units for caller. The
// returned charge can hand the amount back if the request is then rejected.
func (t *quotaTracker) charge(caller string, amount uint64) (*quotaCharge, error) {
	if t == nil {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	epoch := t.quota.Epoch(t.now().Unix())
	next, err := common.CheckQuota(t.quota, epoch, t.usage[caller], 1, amount)
	if err != nil {
		return nil, err
	}
	t.usage[caller] = next
	return &quotaCharge{tracker: t, caller: caller, epoch: epoch, amount: amount}, nil
}

// quotaCharge is the amount reserved by one admitted request.
type quotaCharge struct {
	tracker *quotaTracker
	caller  string
	epoch   uint64
	amount  uint64
}

// refund returns the reserved amount to the caller's window. The request
// itself stays counted. Refunds into a window that has since rolled over are
// dropped.
func (c *quotaCharge) refund() {
	if c == nil || c.amount == 0 {
		return
	}
	t := c.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	usage, ok := t.usage[c.caller]
	if !ok || usage.EpochID != c.epoch {
		return
	}
	if usage.AmountUsed < c.amount {
		usage.AmountUsed = 0
	} else {
		usage.AmountUsed -= c.amount
	}
	t.usage[c.caller] = usage
	c.amount = 0
}
