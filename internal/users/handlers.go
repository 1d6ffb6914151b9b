package users

import (
	"encoding/json"
	"net/http"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
)

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var reg Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	user, err := CreateUser(r.Context(), reg)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, user)
}
