package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"usersvc/internal/api"
	"usersvc/internal/api/user"
)

// Config contains the dependencies needed for the router setup.
type Config struct {
	UserHandler user.Handler
	Responder   *api.Responder
	APIPrefix   string
}

// SetupRouter wires the route table under the configured API prefix.
// Server-wide middleware (request id, logger, recoverer, timeouts) are
// applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Unmatched routes get the taxonomy's 404/405 bodies instead of chi's
	// plain-text defaults.
	r.NotFound(cfg.Responder.NotFoundHandler())
	r.MethodNotAllowed(cfg.Responder.MethodNotAllowedHandler())

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", cfg.UserHandler.ListUsers)
			r.Get("/stats/city-age", cfg.UserHandler.GetCityAgeStats)
			r.Post("/", cfg.UserHandler.CreateUser)
			r.Put("/{id}", cfg.UserHandler.UpdateUser)
			r.Delete("/{id}", cfg.UserHandler.DeleteUser)
		})
	})

	return r
}
