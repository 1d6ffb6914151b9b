package studies

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/geo"
	"github.com/PublicLifeLab/gehl-backend/internal/metrics"
	"github.com/PublicLifeLab/gehl-backend/internal/mirror"
	"github.com/PublicLifeLab/gehl-backend/internal/schema"
	"github.com/PublicLifeLab/gehl-backend/internal/users"
	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrStudyNotFound    = fmt.Errorf("study %w", utils.ErrNotFound)
	ErrLocationNotFound = fmt.Errorf("location %w", utils.ErrNotFound)
	ErrSurveyNotFound   = fmt.Errorf("survey %w", utils.ErrNotFound)

	ErrInvalidStudy    = fmt.Errorf("%w: invalid study", utils.ErrValidation)
	ErrInvalidLocation = fmt.Errorf("%w: invalid location", utils.ErrValidation)
	ErrInvalidSurvey   = fmt.Errorf("%w: invalid survey", utils.ErrValidation)
)

// Validate checks a create-study payload and resolves its table shape.
func (n NewStudy) Validate() (schema.Shape, error) {
	if n.UserID == uuid.Nil {
		return 0, fmt.Errorf("%w: user_id is required", ErrInvalidStudy)
	}
	if strings.TrimSpace(n.Title) == "" {
		return 0, fmt.Errorf("%w: title is required", ErrInvalidStudy)
	}
	if n.Type != TypeActivity && n.Type != TypeMovement {
		return 0, fmt.Errorf("%w: type must be %q or %q, got %q", ErrInvalidStudy, TypeActivity, TypeMovement, n.Type)
	}
	if len(n.Map) > 0 && string(n.Map) != "null" {
		if _, err := geojson.UnmarshalFeatureCollection(n.Map); err != nil {
			return 0, fmt.Errorf("%w: map must be a GeoJSON FeatureCollection: %v", ErrInvalidStudy, err)
		}
	}
	return schema.ShapeFor(n.Fields)
}

// CreateStudy stores the study row, provisions its table and mirrors the
// study document in one transaction. If any step fails nothing is kept; a
// document mirrored before a failed commit is removed again.
func CreateStudy(ctx context.Context, in NewStudy) (_ Study, err error) {
	defer metrics.Observe("create_study", time.Now(), &err)

	shape, err := in.Validate()
	if err != nil {
		return Study{}, err
	}

	study := Study{
		StudyID:         uuid.New(),
		UserID:          in.UserID,
		Title:           strings.TrimSpace(in.Title),
		Type:            in.Type,
		ProtocolVersion: in.ProtocolVersion,
		Map:             in.Map,
		Fields:          shape.Fields(),
	}
	ddl, err := schema.ProvisionStatements(study.StudyID, shape)
	if err != nil {
		return Study{}, err
	}

	mirrored := false
	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&study).Error; err != nil {
			if db.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s", users.ErrUserNotFound, in.UserID)
			}
			return db.Fail("create study", "INSERT INTO data_collection.studies", []any{study.StudyID, in.UserID}, err)
		}
		for _, stmt := range ddl {
			if err := tx.Exec(stmt).Error; err != nil {
				return db.Fail("provision study table", stmt, nil, err)
			}
		}
		study.Table = schema.TableName(study.StudyID)
		if err := Mirror.PutStudy(ctx, document(study)); err != nil {
			return err
		}
		mirrored = true
		return nil
	})
	if err != nil {
		if mirrored {
			// The commit failed after the document was written.
			if mErr := Mirror.DeleteStudy(context.WithoutCancel(ctx), study.StudyID); mErr != nil {
				log.Printf("[studies] WARNING: study %s rolled back but mirrored document remains: %v", study.StudyID, mErr)
			}
		}
		return Study{}, err
	}

	log.Printf("[studies] created study %s (%s, %s table)", study.StudyID, study.Type, shape)
	return study, nil
}

// GetStudy loads one study.
func GetStudy(ctx context.Context, studyID uuid.UUID) (Study, error) {
	var study Study
	err := db.DB.WithContext(ctx).First(&study, "study_id = ?", studyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Study{}, fmt.Errorf("%w: %s", ErrStudyNotFound, studyID)
	}
	if err != nil {
		return Study{}, db.Fail("get study", "SELECT FROM data_collection.studies WHERE study_id = $1", []any{studyID}, err)
	}
	study.Table = schema.TableName(study.StudyID)
	return study, nil
}

// ListStudies returns the studies a user owns or has been granted access to,
// newest first.
func ListStudies(ctx context.Context, userID uuid.UUID) ([]Study, error) {
	var list []Study
	err := db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Or("study_id IN (?)", db.DB.Model(&StudyAccess{}).Select("study_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, db.Fail("list studies", "SELECT FROM data_collection.studies WHERE user_id = $1", []any{userID}, err)
	}
	for i := range list {
		list[i].Table = schema.TableName(list[i].StudyID)
	}
	return list, nil
}

// DeleteStudy drops the study's table and its metadata together. Surveys,
// their table index rows and access grants cascade.
func DeleteStudy(ctx context.Context, studyID uuid.UUID) (err error) {
	defer metrics.Observe("delete_study", time.Now(), &err)

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drop := schema.DropTableStatement(studyID)
		if err := tx.Exec(drop).Error; err != nil {
			return db.Fail("drop study table", drop, nil, err)
		}
		res := tx.Delete(&Study{}, "study_id = ?", studyID)
		if res.Error != nil {
			return db.Fail("delete study", "DELETE FROM data_collection.studies WHERE study_id = $1", []any{studyID}, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrStudyNotFound, studyID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The study is gone either way; a stale mirror copy is only logged.
	if mErr := Mirror.DeleteStudy(ctx, studyID); mErr != nil {
		log.Printf("[studies] WARNING: study %s deleted but mirror cleanup failed: %v", studyID, mErr)
	}
	log.Printf("[studies] deleted study %s", studyID)
	return nil
}

// GrantStudyAccess gives userID access to a study. A user that does not exist
// yet is created once and the grant retried once.
func GrantStudyAccess(ctx context.Context, studyID, userID uuid.UUID) (err error) {
	defer metrics.Observe("grant_study_access", time.Now(), &err)

	if _, err := GetStudy(ctx, studyID); err != nil {
		return err
	}

	grant := func() error {
		return db.DB.WithContext(ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&StudyAccess{StudyID: studyID, UserID: userID}).Error
	}

	err = grant()
	if err != nil && db.IsForeignKeyViolation(err) {
		log.Printf("[studies] user %s unknown, creating before granting access to %s", userID, studyID)
		if err := users.EnsureUser(ctx, userID); err != nil {
			return err
		}
		err = grant()
	}
	if err != nil {
		return db.Fail("grant study access", "INSERT INTO data_collection.study_access", []any{studyID, userID}, err)
	}
	return nil
}

// CreateLocation stores a named place. Feature collections are folded into a
// single geometry before they reach PostGIS.
func CreateLocation(ctx context.Context, in NewLocation) (_ Location, err error) {
	defer metrics.Observe("create_location", time.Now(), &err)

	if strings.TrimSpace(in.Name) == "" {
		return Location{}, fmt.Errorf("%w: name is required", ErrInvalidLocation)
	}
	if len(in.Geometry) == 0 {
		return Location{}, fmt.Errorf("%w: geometry is required", ErrInvalidLocation)
	}
	g, err := geo.ParseGeoJSON(in.Geometry)
	if err != nil {
		return Location{}, err
	}
	if !geo.ValidGeometry(g) {
		return Location{}, fmt.Errorf("%w: coordinates out of range", geo.ErrInvalidGeometry)
	}
	text, err := geo.MarshalGeometry(g)
	if err != nil {
		return Location{}, err
	}

	loc := Location{
		LocationID:  uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Country:     in.Country,
		City:        in.City,
		Subdivision: in.Subdivision,
		Geometry:    geo.Geometry{Geometry: geojson.NewGeometry(g)},
		CreatedAt:   time.Now().UTC(),
	}

	const query = `
		INSERT INTO data_collection.locations
			(location_id, name, country, city, subdivision, geometry, created_at)
		VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_GeomFromGeoJSON($6), 4326), $7)
	`
	args := []any{loc.LocationID, loc.Name, loc.Country, loc.City, loc.Subdivision, text, loc.CreatedAt}
	if err := db.DB.WithContext(ctx).Exec(query, args...).Error; err != nil {
		return Location{}, db.Fail("create location", query, args, err)
	}
	return loc, nil
}

// GetLocation loads a location with its geometry as GeoJSON.
func GetLocation(ctx context.Context, locationID uuid.UUID) (Location, error) {
	const query = `
		SELECT location_id, name, country, city, subdivision,
			ST_AsGeoJSON(geometry)::json AS geometry, created_at
		FROM data_collection.locations
		WHERE location_id = $1
	`
	var loc Location
	res := db.DB.WithContext(ctx).Raw(query, locationID).Scan(&loc)
	if res.Error != nil {
		return Location{}, db.Fail("get location", query, []any{locationID}, res.Error)
	}
	if res.RowsAffected == 0 {
		return Location{}, fmt.Errorf("%w: %s", ErrLocationNotFound, locationID)
	}
	return loc, nil
}

// Validate checks a create-survey payload.
func (n NewSurvey) Validate() error {
	if n.StudyID == uuid.Nil || n.LocationID == uuid.Nil {
		return fmt.Errorf("%w: study_id and location_id are required", ErrInvalidSurvey)
	}
	if strings.TrimSpace(n.UserEmail) == "" {
		return fmt.Errorf("%w: user_email is required", ErrInvalidSurvey)
	}
	if n.StartTime.IsZero() || n.StopTime.IsZero() {
		return fmt.Errorf("%w: start_time and stop_time are required", ErrInvalidSurvey)
	}
	if !n.StopTime.After(n.StartTime) {
		return fmt.Errorf("%w: stop_time must be after start_time", ErrInvalidSurvey)
	}
	return nil
}

// CreateSurvey resolves the conductor's email, then stores the survey and its
// table index row together.
func CreateSurvey(ctx context.Context, in NewSurvey) (_ Survey, err error) {
	defer metrics.Observe("create_survey", time.Now(), &err)

	if err := in.Validate(); err != nil {
		return Survey{}, err
	}
	user, err := users.FindByEmail(ctx, in.UserEmail)
	if err != nil {
		return Survey{}, err
	}
	study, err := GetStudy(ctx, in.StudyID)
	if err != nil {
		return Survey{}, err
	}

	survey := Survey{
		SurveyID:           uuid.New(),
		StudyID:            study.StudyID,
		LocationID:         in.LocationID,
		UserID:             user.UserID,
		StartTime:          in.StartTime.UTC(),
		StopTime:           in.StopTime.UTC(),
		Representation:     in.Representation,
		Microclimate:       in.Microclimate,
		TemperatureCelsius: in.TemperatureCelsius,
	}

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&survey).Error; err != nil {
			if db.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s", ErrLocationNotFound, in.LocationID)
			}
			return db.Fail("create survey", "INSERT INTO data_collection.surveys", []any{survey.SurveyID, study.StudyID, in.LocationID}, err)
		}
		index := SurveyTable{SurveyID: survey.SurveyID, Table: study.Table}
		if err := tx.Omit(clause.Associations).Create(&index).Error; err != nil {
			return db.Fail("index survey table", "INSERT INTO data_collection.survey_tables", []any{survey.SurveyID, study.Table}, err)
		}
		return nil
	})
	if err != nil {
		return Survey{}, err
	}
	return survey, nil
}

// GetSurvey loads one survey.
func GetSurvey(ctx context.Context, surveyID uuid.UUID) (Survey, error) {
	var survey Survey
	err := db.DB.WithContext(ctx).First(&survey, "survey_id = ?", surveyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Survey{}, fmt.Errorf("%w: %s", ErrSurveyNotFound, surveyID)
	}
	if err != nil {
		return Survey{}, db.Fail("get survey", "SELECT FROM data_collection.surveys WHERE survey_id = $1", []any{surveyID}, err)
	}
	return survey, nil
}

// ListSurveys returns a study's surveys ordered by start time.
func ListSurveys(ctx context.Context, studyID uuid.UUID) ([]Survey, error) {
	if _, err := GetStudy(ctx, studyID); err != nil {
		return nil, err
	}
	var list []Survey
	err := db.DB.WithContext(ctx).
		Where("study_id = ?", studyID).
		Order("start_time").
		Find(&list).Error
	if err != nil {
		return nil, db.Fail("list surveys", "SELECT FROM data_collection.surveys WHERE study_id = $1", []any{studyID}, err)
	}
	return list, nil
}

func document(s Study) mirror.StudyDocument {
	return mirror.StudyDocument{
		StudyID:         s.StudyID,
		UserID:          s.UserID,
		Title:           s.Title,
		Type:            s.Type,
		ProtocolVersion: s.ProtocolVersion,
		Fields:          []string(s.Fields),
		TableName:       s.Table,
		CreatedAt:       s.CreatedAt,
	}
}
