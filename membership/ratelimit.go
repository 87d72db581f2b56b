package membership

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type KeyFunc func(r *http.Request) string

// Allower decide se a chave pode passar agora (ex.: infra.LimiterStore).
type Allower interface {
	Allow(key string) bool
}

type RateLimitOptions struct {
	Limiter      Allower
	KeyFn        KeyFunc
	RejectStatus int
	RetryAfter   time.Duration
}

// RemoteHostKey usa o host de RemoteAddr (já ajustado pelo middleware.RealIP).
func RemoteHostKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RateLimitMiddleware rejeita com 429 + Retry-After quando a chave estoura o limite.
func RateLimitMiddleware(opts RateLimitOptions) func(next http.Handler) http.Handler {
	if opts.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = RemoteHostKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.Limiter.Allow(opts.KeyFn(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(opts.RetryAfter.Seconds())))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
