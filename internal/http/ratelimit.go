package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	count   int
	started time.Time
}

// IPLimiter is a fixed-window per-IP request counter for the public auth
// endpoints. It complements the per-account failure limiter, which needs Redis.
type IPLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time
}

func NewIPLimiter(rate int, window time.Duration) *IPLimiter {
	return &IPLimiter{buckets: make(map[string]*bucket), rate: rate, window: window, now: time.Now}
}

const maxBuckets = 10000

func (rl *IPLimiter) Allow(ip string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.buckets) >= maxBuckets {
		rl.prune(now)
	}
	b, ok := rl.buckets[ip]
	if !ok || now.Sub(b.started) >= rl.window {
		rl.buckets[ip] = &bucket{count: 1, started: now}
		return true
	}
	if b.count < rl.rate {
		b.count++
		return true
	}
	return false
}

// Prune drops windows that have ended.
func (rl *IPLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(rl.now())
}

func (rl *IPLimiter) prune(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.started) >= rl.window {
			delete(rl.buckets, ip)
		}
	}
}

func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(ip); err == nil && host != "" {
		return host
	}
	return ip
}

func RateLimitIP(rl *IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl != nil && !rl.Allow(ClientIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
