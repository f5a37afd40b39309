package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

const requestTimeout = 30 * time.Second

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept-Language", adminKeyHeader, adminActorHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		// The live stream is long-lived and needs the raw connection.
		r.Get("/admin/live", s.handleAdminLive)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))

			r.Post("/auth/login", s.handleLogin)
			r.Get("/catalog", s.handleCatalog)

			r.Route("/participants/{id}", func(r chi.Router) {
				r.Use(s.participantAuthMiddleware)
				r.Get("/state", s.handleFullState)
				r.Post("/session", s.handleStartSession)
				r.Put("/language", s.handleSetLanguage)
				r.Post("/answers", s.handleRecordAnswer)
				r.Post("/events", s.handleLogEvent)
				r.Post("/heartbeat", s.handleHeartbeat)
				r.Post("/complete", s.handleComplete)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/stats", s.handleAdminStats)
				r.Get("/participants/{id}/answers", s.handleAdminAnswers)
				r.Post("/participants/{id}/reset", s.handleAdminResetOne)
				r.Post("/reset", s.handleAdminResetAll)
				r.Get("/export", s.handleAdminExport)
				r.Get("/export.csv", s.handleAdminExportCSV)
			})
		})
	})
	return r
}
