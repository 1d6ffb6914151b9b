package studies

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/", CreateStudyHandler)
	r.Get("/", ListStudiesHandler)
	r.Get("/{study_id}", GetStudyHandler)
	r.Delete("/{study_id}", DeleteStudyHandler)
	r.Post("/{study_id}/access", GrantAccessHandler)
	r.Get("/{study_id}/surveys", ListSurveysHandler)

	return r
}

func SetupLocationRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/", CreateLocationHandler)
	r.Get("/{location_id}", GetLocationHandler)

	return r
}

func SetupSurveyRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/", CreateSurveyHandler)
	r.Get("/{survey_id}", GetSurveyHandler)

	return r
}
