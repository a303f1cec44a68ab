package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/andreval74/xcafe/pkg/config"
)

const (
	anonymousIdentifier = "_anonymous"
	maxPeekBytes        = 64 << 10
	idleLimiterTTL      = 30 * time.Minute
)

// AuthRateLimiter throttles signature verification attempts per wallet
// address. Exceeding the budget locks the address out for LockoutSeconds.
type AuthRateLimiter struct {
	config config.AuthRateLimitConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*addressLimiter

	cleanupInterval time.Duration
	lastCleanup     time.Time
}

type addressLimiter struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	lockoutEnd time.Time
}

// NewAuthRateLimiter creates a new rate limiter for auth endpoints
func NewAuthRateLimiter(cfg config.AuthRateLimitConfig, logger *zap.Logger) *AuthRateLimiter {
	cfg.SetDefaults()
	return &AuthRateLimiter{
		config:          cfg,
		logger:          logger.Named("auth-ratelimit"),
		now:             time.Now,
		limiters:        make(map[string]*addressLimiter),
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// get returns the limiter for identifier. Caller holds r.mu.
func (r *AuthRateLimiter) get(identifier string, now time.Time) *addressLimiter {
	if now.Sub(r.lastCleanup) > r.cleanupInterval {
		r.cleanup(now)
	}

	l, ok := r.limiters[identifier]
	if !ok {
		// MaxAttempts per WindowSeconds, with half the budget available as burst
		limit := rate.Limit(float64(r.config.MaxAttempts) / float64(r.config.WindowSeconds))
		burst := max(int(math.Ceil(float64(r.config.MaxAttempts)/2.0)), 1)
		l = &addressLimiter{limiter: rate.NewLimiter(limit, burst)}
		r.limiters[identifier] = l
	}
	l.lastSeen = now
	return l
}

func (r *AuthRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-idleLimiterTTL)
	for key, l := range r.limiters {
		if l.lastSeen.Before(cutoff) && now.After(l.lockoutEnd) {
			delete(r.limiters, key)
		}
	}
	r.lastCleanup = now
}

// Allow reports whether another attempt is permitted for identifier.
// When denied, retryAfter is how long the caller should wait.
func (r *AuthRateLimiter) Allow(identifier string) (allowed bool, retryAfter time.Duration) {
	if !r.config.Enabled {
		return true, 0
	}

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.get(identifier, now)
	if now.Before(l.lockoutEnd) {
		return false, l.lockoutEnd.Sub(now)
	}

	if !l.limiter.AllowN(now, 1) {
		lockout := time.Duration(r.config.LockoutSeconds) * time.Second
		l.lockoutEnd = now.Add(lockout)
		r.logger.Warn("Auth rate limit exceeded, applying lockout",
			zap.String("identifier", identifier),
			zap.Duration("lockout_duration", lockout),
		)
		return false, lockout
	}
	return true, 0
}

// RecordFailure charges an extra attempt for a rejected signature
func (r *AuthRateLimiter) RecordFailure(identifier string) {
	if !r.config.Enabled {
		return
	}

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(identifier, now).limiter.AllowN(now, 1)
}

// AddressFromBody reads the "address" field of a JSON body and restores the
// body for the next handler. Only the first maxPeekBytes are inspected; the
// rest is left unread for the handler. Returns "" when the body carries no
// address.
func AddressFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	original := c.Request.Body
	body, err := io.ReadAll(io.LimitReader(original, maxPeekBytes))
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), original), original}
	if err != nil {
		return ""
	}

	var peek struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(peek.Address))
}

// AuthRateLimitMiddleware rate limits by the wallet address in the request
// body; requests without one share an anonymous bucket.
func AuthRateLimitMiddleware(rl *AuthRateLimiter) gin.HandlerFunc {
	return AuthRateLimitMiddlewareWithIdentifier(rl, AddressFromBody)
}

// AuthRateLimitMiddlewareWithIdentifier returns a middleware that uses a custom identifier extractor
func AuthRateLimitMiddlewareWithIdentifier(rl *AuthRateLimiter, extractID func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		identifier := extractID(c)
		if identifier == "" {
			identifier = anonymousIdentifier
		}

		allowed, retryAfter := rl.Allow(identifier)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many authentication attempts. Please try again later.",
			})
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusUnauthorized {
			rl.RecordFailure(identifier)
		}
	}
}
