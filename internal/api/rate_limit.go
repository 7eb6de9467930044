package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/mediaproc/internal/ratelimit"
	"github.com/rs/zerolog/hlog"
)

type RateLimiter interface {
	Allow(ctx context.Context, subject string) (ratelimit.Decision, error)
}

// withRateLimit is mounted on the image route only. Limiter failures let the
// request through.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := clientIP(r)

		decision, err := s.rateLimiter.Allow(r.Context(), subject)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("subject", subject).Msg("rate limiter check failed")
			next.ServeHTTP(w, r)
			return
		}

		if decision.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(r)).Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "rate limit exceeded",
		})
	})
}

// clientIP expects RemoteAddr to have been rewritten by middleware.RealIP
// when the service sits behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}
