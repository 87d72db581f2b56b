package membership

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes monta o router. extra são middlewares aplicados depois dos padrões
// (ex.: RateLimitMiddleware, ConcurrencyMiddleware).
func (h *Handler) Routes(extra ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(extra...)

		r.Route("/group", func(r chi.Router) {
			r.Get("/check", h.handleCheck)
			r.Post("/check", h.handleCheck)
		})

		if len(h.adminCreds) > 0 {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.BasicAuth("membership-admin", h.adminCreds))
				r.Post("/cache/invalidate", h.handleInvalidateCache)
				r.Get("/stats", h.handleStats)
			})
		}
	})

	return r
}
