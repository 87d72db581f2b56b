package membership

import (
	"context"
	"net/http"
	"time"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita requests em andamento com um semáforo de canal.
// Com AcquireTimeout <= 0 espera até o ctx da request encerrar.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	sem := make(chan struct{}, opts.Max)
	acquire := func(ctx context.Context) bool {
		if opts.AcquireTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.AcquireTimeout)
			defer cancel()
		}
		select {
		case sem <- struct{}{}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acquire(r.Context()) {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer func() { <-sem }()

			next.ServeHTTP(w, r)
		})
	}
}
