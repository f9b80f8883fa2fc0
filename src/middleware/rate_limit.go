package middleware

import (
	"sync"
	"time"

	"Backend-Volunteer-Hours/src/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// OperatorLimiter hands out one token bucket per operator id.
type OperatorLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters map[string]*operatorBucket
}

type operatorBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewOperatorLimiter(perSecond float64, burst int) *OperatorLimiter {
	return &OperatorLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		limiters: make(map[string]*operatorBucket),
	}
}

// Allow reports whether the operator may make another request now.
func (l *OperatorLimiter) Allow(operator string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.limiters[operator]
	if !ok {
		b = &operatorBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[operator] = b
	}
	b.lastSeen = now
	l.evictIdle(now)
	return b.limiter.AllowN(now, 1)
}

func (l *OperatorLimiter) evictIdle(now time.Time) {
	for id, b := range l.limiters {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.limiters, id)
		}
	}
}

// RateLimit must run after AuthJWT; anonymous requests share the client IP
// bucket.
func RateLimit(l *OperatorLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, _ := c.Locals("userId").(string)
		if key == "" {
			key = "ip:" + c.IP()
		}
		if !l.Allow(key, time.Now()) {
			return utils.HandleError(c, fiber.StatusTooManyRequests, "Too many requests, slow down")
		}
		return c.Next()
	}
}
