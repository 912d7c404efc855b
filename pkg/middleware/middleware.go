package middleware

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trading/internal/auth"
	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/pkg/response"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles each caller per route group
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	authLimit    rate.Limit
	tradingLimit rate.Limit
	queryLimit   rate.Limit
	burst        int
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors:     make(map[string]*visitor),
		authLimit:    perMinute(cfg.AuthPerMinute),
		tradingLimit: perMinute(cfg.TradingPerMinute),
		queryLimit:   perMinute(cfg.QueryPerMinute),
		burst:        burst,
	}
}

func perMinute(n float64) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Limit(n / 60.0)
}

// limitFor maps a request to its route group. Writes to /orders count
// against the trading limit, everything else under /api/v1 is a query.
func (r *RateLimiter) limitFor(method, path string) (string, rate.Limit) {
	switch {
	case strings.HasPrefix(path, "/api/v1/auth"):
		return "auth", r.authLimit
	case strings.HasPrefix(path, "/api/v1/orders") && method != "GET":
		return "trading", r.tradingLimit
	case strings.HasPrefix(path, "/api/v1"):
		return "query", r.queryLimit
	default:
		return "", rate.Inf
	}
}

func (r *RateLimiter) getLimiter(method, path, caller string) *rate.Limiter {
	group, limit := r.limitFor(method, path)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := caller + ":" + group
	v, exists := r.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(limit, r.burst)}
		r.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Run evicts idle callers until ctx is done
func (r *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.mu.Lock()
			for key, v := range r.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(r.visitors, key)
				}
			}
			r.mu.Unlock()
		}
	}
}

// Middleware keys callers by authenticated user when known, else client IP
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.ClientIP()
		if userID, ok := auth.UserID(c); ok {
			caller = "user:" + strconv.FormatUint(uint64(userID), 10)
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !r.getLimiter(c.Request.Method, path, caller).Allow() {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTAuth validates the bearer token and stores the user id and roles on
// the context
func JWTAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearerToken := strings.Fields(c.GetHeader("Authorization"))
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "bearer") {
			response.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(bearerToken[1])
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set(auth.ContextUserID, claims.UserID)
		c.Set(auth.ContextRoles, claims.Roles)

		c.Next()
	}
}

// RequireRole rejects callers whose token does not carry role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get("claims")
		claims, ok := v.(*auth.Claims)
		if !ok || !claims.HasRole(role) {
			response.Forbidden(c, "Insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}
