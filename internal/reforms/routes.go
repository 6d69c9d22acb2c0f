package reforms

import (
	"net/http"

	"github.com/ReformAtlas/RA-Backend/internal/auth"
	"github.com/ReformAtlas/RA-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	sessionFetcher := auth.SessionInfo{}

	// Public projections.
	r.Get("/", GetReforms)
	r.Get("/map", GetReformsMap)
	r.Get("/movers", GetMovers)

	// Public submission intake.
	r.Post("/submissions", CreateSubmission)

	// Saved filters require a session; mutation is open to any signed-in
	// user, reads included so stale configs get upgraded under audit.
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))

		r.Get("/saved-filters", ListSavedFilters)
		r.Post("/saved-filters", CreateSavedFilter)
		r.Get("/saved-filters/{id}", GetSavedFilter)

		// Operator-only: duplicate review, merges, submission triage.
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminMiddleware(sessionFetcher))

			r.Get("/duplicates", GetDuplicateCandidates)
			r.Post("/merge", MergeHandler)
			r.Post("/distinguished", DistinguishHandler)

			r.Get("/submissions", ListPendingSubmissions)
			r.Post("/submissions/{id}/approve", ApproveSubmission)
			r.Post("/submissions/{id}/reject", RejectSubmission)
		})
	})

	return r
}
