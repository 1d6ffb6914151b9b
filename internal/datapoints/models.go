package datapoints

import (
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/geo"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DataPoint is one observation row read back from a study table. Columns the
// study's shape does not have stay nil.
type DataPoint struct {
	SurveyID     uuid.UUID      `json:"survey_id"`
	DataPointID  uuid.UUID      `json:"data_point_id"`
	Gender       *string        `json:"gender,omitempty"`
	Age          *string        `json:"age,omitempty"`
	Mode         *string        `json:"mode,omitempty"`
	Posture      *string        `json:"posture,omitempty"`
	Activities   datatypes.JSON `json:"activities,omitempty"`
	Groups       *string        `json:"groups,omitempty"`
	Object       *string        `json:"object,omitempty"`
	Location     geo.Geometry   `json:"location"`
	Note         *string        `json:"note,omitempty"`
	CreationDate *time.Time     `json:"creation_date,omitempty"`
	LastUpdated  *time.Time     `json:"last_updated,omitempty"`
}
