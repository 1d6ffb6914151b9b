package datapoints

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes is mounted under /surveys/{survey_id}/datapoints.
func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Put("/", UpsertHandler)
	r.Get("/", ListHandler)
	r.Delete("/{data_point_id}", DeleteHandler)

	return r
}
