package mw

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long a client's limiter is kept after its last request.
const idleLimiterTTL = 10 * time.Minute

// IPRateLimiter keeps one token bucket per client IP. Buckets of clients
// that went quiet expire.
type IPRateLimiter struct {
	ips *cache.Cache
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: cache.New(idleLimiterTTL, 2*idleLimiterTTL),
		r:   r,
		b:   b,
	}
}

// GetLimiter returns the limiter for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	if v, found := i.ips.Get(ip); found {
		limiter := v.(*rate.Limiter)
		i.ips.Set(ip, limiter, cache.DefaultExpiration)
		return limiter
	}
	limiter := rate.NewLimiter(i.r, i.b)
	if err := i.ips.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if v, found := i.ips.Get(ip); found {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
