package main

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTimeout = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// queryLimiter hands each client its own token bucket. Idle buckets are
// dropped on access once they pass visitorIdleTimeout.
type queryLimiter struct {
	perSecond rate.Limit
	burst     int

	mu       sync.Mutex
	visitors map[string]*visitor
	nowFn    func() time.Time
}

func newQueryLimiter(requestsPerMinute float64, burst int) *queryLimiter {
	perSecond := requestsPerMinute / 60
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &queryLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		nowFn:     time.Now,
	}
}

func (q *queryLimiter) allow(client string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.nowFn()
	for id, v := range q.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTimeout {
			delete(q.visitors, id)
		}
	}
	v, ok := q.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(q.perSecond, q.burst)}
		q.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (q *queryLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !q.allow(clientID(r)) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
