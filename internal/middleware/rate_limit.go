package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
	"github.com/noah-isme/spml-provisioner/pkg/response"
)

const (
	bucketTTL     = 5 * time.Minute
	sweepInterval = time.Minute
)

var errRateLimited = appErrors.New("RateLimited", http.StatusTooManyRequests, "rate limit exceeded")

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimit applies a token bucket per client IP. Idle buckets are swept until ctx ends.
// A non-positive perSecond disables limiting.
func RateLimit(ctx context.Context, perSecond, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = perSecond
	}

	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				mu.Lock()
				for ip, b := range buckets {
					if now.Sub(b.seen) > bucketTTL {
						delete(buckets, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}

		mu.Lock()
		b, ok := buckets[ip]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
			buckets[ip] = b
		}
		b.seen = time.Now()
		allowed := b.lim.Allow()
		mu.Unlock()

		if !allowed {
			response.SPMLError(c, "", errRateLimited)
			return
		}
		c.Next()
	}
}
