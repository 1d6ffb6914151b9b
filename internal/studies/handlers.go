package studies

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// uuidParam reads a uuid route parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", utils.ErrValidation, name)
	}
	return id, nil
}

func CreateStudyHandler(w http.ResponseWriter, r *http.Request) {
	var in NewStudy
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	study, err := CreateStudy(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, study)
}

func ListStudiesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "user_id query parameter must be a uuid", http.StatusBadRequest)
		return
	}

	list, err := ListStudies(r.Context(), userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func GetStudyHandler(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuidParam(r, "study_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	study, err := GetStudy(r.Context(), studyID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, study)
}

func DeleteStudyHandler(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuidParam(r, "study_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := DeleteStudy(r.Context(), studyID); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func GrantAccessHandler(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuidParam(r, "study_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var body struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == uuid.Nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	if err := GrantStudyAccess(r.Context(), studyID, body.UserID); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ListSurveysHandler(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuidParam(r, "study_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	list, err := ListSurveys(r.Context(), studyID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func CreateLocationHandler(w http.ResponseWriter, r *http.Request) {
	var in NewLocation
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	loc, err := CreateLocation(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, loc)
}

func GetLocationHandler(w http.ResponseWriter, r *http.Request) {
	locationID, err := uuidParam(r, "location_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	loc, err := GetLocation(r.Context(), locationID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, loc)
}

func CreateSurveyHandler(w http.ResponseWriter, r *http.Request) {
	var in NewSurvey
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	survey, err := CreateSurvey(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, survey)
}

func GetSurveyHandler(w http.ResponseWriter, r *http.Request) {
	surveyID, err := uuidParam(r, "survey_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	survey, err := GetSurvey(r.Context(), surveyID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, survey)
}
