package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterPool hands out one token bucket per client key and forgets keys
// that have been idle for longer than the idle window.
type LimiterPool struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

func NewLimiterPool(rps float64, burst int) *LimiterPool {
	return &LimiterPool{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	v, ok := p.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.visitors[key] = v
	}
	v.lastSeen = now

	if len(p.visitors) > 1024 {
		for k, other := range p.visitors {
			if now.Sub(other.lastSeen) > p.idle {
				delete(p.visitors, k)
			}
		}
	}
	return v.limiter
}

func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimit throttles per authenticated user, or per client IP for
// anonymous callers.
func RateLimit(pool *LimiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := c.Get(CurrentUserKey); ok {
			key = "user:" + id.(string)
		}
		if !pool.Allow(key) {
			c.Header("Retry-After", "1")
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		c.Next()
	}
}
