package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sdyoon0928/final-pj3/internal/api/chat"
	"github.com/sdyoon0928/final-pj3/internal/api/itinerary"
	"github.com/sdyoon0928/final-pj3/internal/api/reconcile"
	"github.com/sdyoon0928/final-pj3/internal/api/route"
)

// Config carries the handlers and the auth middleware the router wires up.
type Config struct {
	ChatHandler            chat.Handler
	ItineraryHandler       itinerary.Handler
	ReconcileHandler       reconcile.Handler
	RouteHandler           route.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
	OptionalAuthMiddleware func(http.Handler) http.Handler
}

// SetupRouter builds the main application router. Server-wide middleware
// (request id, logger, recoverer) is applied before mounting this in main.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public surfaces: the map page works without a login. The chat
		// endpoint is public too; it answers with the login_required signal
		// instead of a 401 so the page can redirect on its own terms.
		r.Group(func(r chi.Router) {
			r.Post("/routes", cfg.RouteHandler.ComputeRoute)

			r.Route("/sessions/{sessionID}/slot", func(r chi.Router) {
				r.Get("/", cfg.ItineraryHandler.GetSlot)
				r.Get("/watch", cfg.ItineraryHandler.WatchSlot)
				r.Post("/places", cfg.ItineraryHandler.AddPlace)
				r.Delete("/places", cfg.ItineraryHandler.RemovePlace)
				r.Post("/recategorize", cfg.ItineraryHandler.RecategorizeAll)
				r.Delete("/", cfg.ItineraryHandler.ResetSlot)
			})

			r.Post("/reconcile/{sessionID}/handoff", cfg.ReconcileHandler.PutHandoff)

			// Soft-auth: anonymous callers get a 200 with login_required set
			// so the page decides when to redirect.
			r.With(cfg.OptionalAuthMiddleware).Post("/chat", cfg.ChatHandler.SendMessage)
		})

		// Protected surfaces: saved schedules and chat history belong to a
		// user.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Get("/chat/sessions", cfg.ChatHandler.ListSessions)
			r.Get("/chat/sessions/{sessionID}/messages", cfg.ChatHandler.GetSessionMessages)
			r.Delete("/chat/sessions/{sessionID}", cfg.ChatHandler.DeleteSession)
			r.Post("/chat/sessions/bulk-delete", cfg.ChatHandler.BulkDeleteSessions)

			r.Post("/schedules", cfg.ItineraryHandler.SaveSchedule)
			r.Get("/schedules/{scheduleID}", cfg.ItineraryHandler.GetSchedule)
			r.Get("/sessions/{sessionID}/schedule", cfg.ItineraryHandler.FindScheduleBySession)

			r.Get("/reconcile/{sessionID}", cfg.ReconcileHandler.Resolve)
		})
	})

	return r
}
