package datapoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", utils.ErrValidation, name)
	}
	return id, nil
}

func UpsertHandler(w http.ResponseWriter, r *http.Request) {
	surveyID, err := uuidParam(r, "survey_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	id, err := InsertOrUpdateDataPoint(r.Context(), surveyID, raw)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]uuid.UUID{"data_point_id": id})
}

func ListHandler(w http.ResponseWriter, r *http.Request) {
	surveyID, err := uuidParam(r, "survey_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	points, err := ListDataPoints(r.Context(), surveyID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, points)
}

func DeleteHandler(w http.ResponseWriter, r *http.Request) {
	surveyID, err := uuidParam(r, "survey_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	dataPointID, err := uuidParam(r, "data_point_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := DeleteDataPoint(r.Context(), surveyID, dataPointID); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
