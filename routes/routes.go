package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sportcomp/competition-system/handlers"
	"github.com/sportcomp/competition-system/middleware"
	"github.com/sportcomp/competition-system/models"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	corsAllowedOrigins []string,
	competitionHandler *handlers.CompetitionHandler,
	participationHandler *handlers.ParticipationHandler,
	notificationHandler *handlers.NotificationHandler,
	webSocketHandler *handlers.WebSocketHandler,
	broadcastHandler *handlers.BroadcastHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Get("/healthz", handlers.Health)

	// Canal temps réel : l'authentification se fait dans le protocole
	// (événement `authenticate`), pas au niveau HTTP.
	router.Get("/ws", webSocketHandler.ServeWs)

	// Pont de diffusion interne (même écouteur que l'API).
	router.Route("/api/socket/broadcast", func(r chi.Router) {
		r.Get("/", broadcastHandler.Status)
		r.Post("/", broadcastHandler.Broadcast)
	})

	router.Route("/competitions", func(r chi.Router) {
		// Lecture publique
		r.Get("/", competitionHandler.List)
		r.Get("/{id}", competitionHandler.GetByID)
		r.Get("/{id}/participations", participationHandler.ListByCompetition)

		// Inscription : tout utilisateur authentifié
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{id}/participations", participationHandler.Register)
		})

		// Gestion : organisateurs uniquement
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize(models.RoleOrganizer))

			r.Post("/", competitionHandler.Create)
			r.Post("/{id}/publish", competitionHandler.Publish)
			r.Post("/{id}/cancel", competitionHandler.Cancel)
		})
	})

	router.Route("/participations", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.Authorize(models.RoleOrganizer))
		r.Patch("/{id}/status", participationHandler.Review)
	})

	router.Route("/notifications", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", notificationHandler.List)
		r.Get("/unread-count", notificationHandler.UnreadCount)
		r.Patch("/{id}/read", notificationHandler.MarkRead)
		r.Post("/read-all", notificationHandler.MarkAllRead)
	})
}
