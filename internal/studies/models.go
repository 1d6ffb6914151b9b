package studies

import (
	"encoding/json"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/geo"
	"github.com/PublicLifeLab/gehl-backend/internal/schema"
	"github.com/PublicLifeLab/gehl-backend/internal/users"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Study types.
const (
	TypeActivity = "activity"
	TypeMovement = "movement"
)

type Study struct {
	StudyID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"study_id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title           string         `gorm:"not null" json:"title"`
	Type            string         `gorm:"not null" json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Map             datatypes.JSON `gorm:"type:jsonb" json:"map,omitempty"`
	Fields          pq.StringArray `gorm:"type:text[];not null" json:"fields"`
	CreatedAt       time.Time      `json:"created_at"`

	// Table is derived from StudyID after load; it is never stored here.
	Table string `gorm:"-" json:"table_name"`

	Owner *users.User `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Study) TableName() string { return schema.Namespace + ".studies" }

// Location geometry is written and read with raw PostGIS SQL; gorm only
// migrates the column.
type Location struct {
	LocationID  uuid.UUID    `gorm:"type:uuid;primaryKey" json:"location_id"`
	Name        string       `gorm:"not null" json:"name"`
	Country     *string      `json:"country,omitempty"`
	City        *string      `json:"city,omitempty"`
	Subdivision *string      `json:"subdivision,omitempty"`
	Geometry    geo.Geometry `gorm:"type:geometry(Geometry,4326);not null" json:"geometry"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (Location) TableName() string { return schema.Namespace + ".locations" }

type Survey struct {
	SurveyID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"survey_id"`
	StudyID            uuid.UUID `gorm:"type:uuid;not null;index" json:"study_id"`
	LocationID         uuid.UUID `gorm:"type:uuid;not null;index" json:"location_id"`
	UserID             uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	StartTime          time.Time `gorm:"not null" json:"start_time"`
	StopTime           time.Time `gorm:"not null" json:"stop_time"`
	Representation     string    `json:"representation"`
	Microclimate       *string   `json:"microclimate,omitempty"`
	TemperatureCelsius *float64  `json:"temperature_celsius,omitempty"`
	CreatedAt          time.Time `json:"created_at"`

	Study    *Study      `gorm:"foreignKey:StudyID;references:StudyID;constraint:OnDelete:CASCADE" json:"-"`
	Location *Location   `gorm:"foreignKey:LocationID;references:LocationID" json:"-"`
	User     *users.User `gorm:"foreignKey:UserID;references:UserID" json:"-"`
}

func (Survey) TableName() string { return schema.Namespace + ".surveys" }

// SurveyTable indexes which study table holds a survey's data points. It is
// written in the same transaction as the survey.
type SurveyTable struct {
	SurveyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Table    string    `gorm:"column:table_name;not null"`

	Survey *Survey `gorm:"foreignKey:SurveyID;references:SurveyID;constraint:OnDelete:CASCADE"`
}

func (SurveyTable) TableName() string { return schema.Namespace + ".survey_tables" }

// StudyAccess grants a user access to a study they do not own.
type StudyAccess struct {
	StudyID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"study_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Study *Study      `gorm:"foreignKey:StudyID;references:StudyID;constraint:OnDelete:CASCADE" json:"-"`
	User  *users.User `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (StudyAccess) TableName() string { return schema.Namespace + ".study_access" }

// NewStudy is the create-study payload.
type NewStudy struct {
	UserID          uuid.UUID      `json:"user_id"`
	Title           string         `json:"title"`
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Map             datatypes.JSON `json:"map,omitempty"`
	Fields          []string       `json:"fields"`
}

// NewLocation is the create-location payload. Geometry may be any GeoJSON
// geometry, a Feature or a FeatureCollection.
type NewLocation struct {
	Name        string          `json:"name"`
	Country     *string         `json:"country,omitempty"`
	City        *string         `json:"city,omitempty"`
	Subdivision *string         `json:"subdivision,omitempty"`
	Geometry    json.RawMessage `json:"geometry"`
}

// NewSurvey is the create-survey payload. The conductor is identified by
// email and resolved to a user id.
type NewSurvey struct {
	StudyID            uuid.UUID `json:"study_id"`
	LocationID         uuid.UUID `json:"location_id"`
	UserEmail          string    `json:"user_email"`
	StartTime          time.Time `json:"start_time"`
	StopTime           time.Time `json:"stop_time"`
	Representation     string    `json:"representation"`
	Microclimate       *string   `json:"microclimate,omitempty"`
	TemperatureCelsius *float64  `json:"temperature_celsius,omitempty"`
}
