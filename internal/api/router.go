package api

import (
	"content-gate/internal/observability"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type RouterConfig struct {
	IngestRate  float64
	IngestBurst int
}

func Router(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// content waits on attribution and carries its own deadline
	r.Get("/v1/content", h.Content)

	// SDK callbacks arrive once per install and are never limited
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Route("/v1/attribution", func(r chi.Router) {
			r.Get("/", h.Attribution)
			r.Post("/conversion", h.ConversionData)
			r.Post("/failure", h.ConversionFailure)
			r.Post("/start-failure", h.StartFailure)
			r.Post("/deeplink", h.DeepLink)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.IngestRate), cfg.IngestBurst)))
		r.Post("/v1/push", h.PushMessage)
		r.Put("/v1/push/token", h.PushToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/v1/settings", h.GetSettings)
		r.Put("/v1/settings", h.PutSettings)
		r.Get("/v1/notifications/prompt", h.PromptDecision)
		r.Post("/v1/notifications/skip", h.PromptSkip)
		r.Post("/v1/notifications/result", h.PromptResult)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
