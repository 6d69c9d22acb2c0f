package auth

import (
	"net/http"

	"github.com/ReformAtlas/RA-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	sessionFetcher := SessionInfo{}
	loginLimiter := middleware.NewLoginRateLimiter(10, 5)

	r.Group(func(r chi.Router) {
		r.Use(loginLimiter.Middleware)
		r.Post("/login", LoginHandler)
		r.Post("/register", RegisterHandler)
	})

	r.Post("/logout", LogoutHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Get("/me", MeHandler)
	})

	return r
}
