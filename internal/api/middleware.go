package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/jensholdgaard/cricket-auction/internal/auth"
)

// ipLimiter hands out a token bucket per client IP. The set of tracked
// clients is bounded; the least recently seen client is forgotten first.
type ipLimiter struct {
	mu    sync.Mutex
	cache *lru.Cache
	rate  rate.Limit
	burst int
}

func newIPLimiter(rps float64, burst, size int) (*ipLimiter, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating limiter cache: %w", err)
	}
	return &ipLimiter{cache: cache, rate: rate.Limit(rps), burst: burst}, nil
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.cache.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	l.cache.Add(ip, lim)
	return lim
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || ip == "" {
			ip = r.RemoteAddr
		}
		if !l.get(ip).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.Verify(r.Header.Get("Authorization")); err != nil {
				status, code, msg := classify(err)
				writeError(w, status, code, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
