package middleware

import (
	"context"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/learn2pay/backend/services/ratelimit"
	"github.com/learn2pay/backend/utils"
	"go.uber.org/zap"
)

// LoginLimiter defines the interface for login attempt throttling
type LoginLimiter interface {
	Enabled() bool
	Check(ctx context.Context, scopeKey string) (*ratelimit.Result, error)
	Record(ctx context.Context, scopeKey string) error
}

// RateLimitMiddleware throttles the login endpoints per client IP. A limiter
// failure never blocks a login, it is logged and the request passes.
type RateLimitMiddleware struct {
	limiter LoginLimiter
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware
func NewRateLimitMiddleware(limiter LoginLimiter, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// clientKey derives the throttling scope from the request. RealIP middleware
// upstream has already resolved proxy headers into RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LimitLogin gates a login route on the attempt budget for the client IP
func (m *RateLimitMiddleware) LimitLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil || !m.limiter.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := clientKey(r)

		result, err := m.limiter.Check(ctx, key)
		if err != nil {
			m.logger.Warn("login rate limit check failed",
				zap.String("request_id", chimw.GetReqID(ctx)),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !result.Allowed {
			m.logger.Warn("login rate limit exceeded",
				zap.String("request_id", chimw.GetReqID(ctx)),
				zap.String("client", key))
			_ = utils.WriteTooManyRequests(w, "Too many login attempts, try again later", map[string]interface{}{
				"reset_at": result.ResetAt,
			})
			return
		}

		if err := m.limiter.Record(ctx, key); err != nil {
			m.logger.Warn("failed to record login attempt",
				zap.String("request_id", chimw.GetReqID(ctx)),
				zap.Error(err))
		}

		next.ServeHTTP(w, r)
	})
}
