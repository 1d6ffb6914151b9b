package datapoints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/metrics"
	"github.com/PublicLifeLab/gehl-backend/internal/schema"
	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrSurveyNotFound    = fmt.Errorf("survey table %w", utils.ErrNotFound)
	ErrDataPointNotFound = fmt.Errorf("data point %w", utils.ErrNotFound)
	ErrInvalidDataPoint  = fmt.Errorf("%w: invalid data point id", utils.ErrValidation)
)

// target is the study table behind a survey.
type target struct {
	Table string
	Shape schema.Shape
}

// The index row must name the table derived from the survey's study and that
// table must still exist; anything else is a stale index.
const lookupQuery = `
	SELECT st.table_name, s.study_id, s.fields,
		to_regclass(quote_ident($2) || '.' || quote_ident(st.table_name)) IS NOT NULL AS present
	FROM data_collection.survey_tables st
	JOIN data_collection.surveys sv ON sv.survey_id = st.survey_id
	JOIN data_collection.studies s ON s.study_id = sv.study_id
	WHERE st.survey_id = $1
`

func resolve(ctx context.Context, surveyID uuid.UUID) (target, error) {
	var (
		table   string
		studyID uuid.UUID
		fields  pq.StringArray
		present bool
	)
	err := db.DB.WithContext(ctx).Raw(lookupQuery, surveyID, schema.Namespace).Row().
		Scan(&table, &studyID, &fields, &present)
	if errors.Is(err, sql.ErrNoRows) {
		return target{}, fmt.Errorf("%w: %s", ErrSurveyNotFound, surveyID)
	}
	if err != nil {
		return target{}, db.Fail("resolve survey table", lookupQuery, []any{surveyID}, err)
	}
	if !present || table != schema.TableName(studyID) {
		log.Printf("[datapoints] stale table index for survey %s: %q (study %s)", surveyID, table, studyID)
		return target{}, fmt.Errorf("%w: %s (stale index)", ErrSurveyNotFound, surveyID)
	}

	shape, err := schema.ShapeFor(fields)
	if err != nil {
		return target{}, fmt.Errorf("study %s has unusable fields: %w", studyID, err)
	}
	return target{Table: table, Shape: shape}, nil
}

// GetTableNameForSurvey returns the table holding a survey's data points.
func GetTableNameForSurvey(ctx context.Context, surveyID uuid.UUID) (string, error) {
	t, err := resolve(ctx, surveyID)
	if err != nil {
		return "", err
	}
	return t.Table, nil
}

// InsertOrUpdateDataPoint upserts one observation. data_point_id is taken from
// the payload when present, otherwise a new one is assigned. An id already
// recorded under a different survey of the same study is not found here.
func InsertOrUpdateDataPoint(ctx context.Context, surveyID uuid.UUID, raw map[string]any) (_ uuid.UUID, err error) {
	defer metrics.Observe("upsert_data_point", time.Now(), &err)

	dataPointID, err := dataPointIDFrom(raw)
	if err != nil {
		return uuid.Nil, err
	}

	t, err := resolve(ctx, surveyID)
	if err != nil {
		return uuid.Nil, err
	}

	stmt, err := Encode(t.Table, t.Shape, surveyID, dataPointID, raw)
	if err != nil {
		return uuid.Nil, err
	}

	res := db.DB.WithContext(ctx).Exec(stmt.SQL, stmt.Args...)
	if res.Error != nil {
		return uuid.Nil, db.Fail("upsert data point", stmt.SQL, stmt.Args, res.Error)
	}
	if res.RowsAffected == 0 {
		return uuid.Nil, fmt.Errorf("%w: %s belongs to another survey, not %s", ErrDataPointNotFound, dataPointID, surveyID)
	}
	return dataPointID, nil
}

func dataPointIDFrom(raw map[string]any) (uuid.UUID, error) {
	v, ok := raw[schema.ColumnDataPointID]
	if !ok || v == nil {
		return uuid.New(), nil
	}
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: expected a string, got %T", ErrInvalidDataPoint, v)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidDataPoint, s)
	}
	return id, nil
}

// DeleteDataPoint removes one observation. Deleting an id that is not there
// is an error, including a second delete of the same id.
func DeleteDataPoint(ctx context.Context, surveyID, dataPointID uuid.UUID) (err error) {
	defer metrics.Observe("delete_data_point", time.Now(), &err)

	t, err := resolve(ctx, surveyID)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2",
		schema.QualifyTable(t.Table), schema.ColumnSurveyID, schema.ColumnDataPointID)
	res := db.DB.WithContext(ctx).Exec(query, surveyID, dataPointID)
	if res.Error != nil {
		return db.Fail("delete data point", query, []any{surveyID, dataPointID}, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s in survey %s", ErrDataPointNotFound, dataPointID, surveyID)
	}
	return nil
}

// ListDataPoints returns every observation recorded for a survey with
// location rendered as GeoJSON.
func ListDataPoints(ctx context.Context, surveyID uuid.UUID) (_ []DataPoint, err error) {
	defer metrics.Observe("list_data_points", time.Now(), &err)

	t, err := resolve(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	query := listQuery(t)
	var points []DataPoint
	if err := db.DB.WithContext(ctx).Raw(query, surveyID).Scan(&points).Error; err != nil {
		return nil, db.Fail("list data points", query, []any{surveyID}, err)
	}
	if points == nil {
		points = []DataPoint{}
	}
	return points, nil
}

func listQuery(t target) string {
	columns := []string{schema.ColumnSurveyID, schema.ColumnDataPointID}
	for _, name := range t.Shape.Fields() {
		switch name {
		case schema.FieldLocation:
			columns = append(columns, "ST_AsGeoJSON(location)::json AS location")
		case schema.FieldActivities:
			// datatypes.JSON cannot scan SQL NULL.
			columns = append(columns, "COALESCE(array_to_json(activities), 'null'::json) AS activities")
		default:
			columns = append(columns, name)
		}
	}

	order := schema.ColumnDataPointID
	if t.Shape.Has(schema.FieldCreationDate) {
		order = schema.FieldCreationDate + ", " + schema.ColumnDataPointID
	}

	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY %s",
		strings.Join(columns, ", "), schema.QualifyTable(t.Table), schema.ColumnSurveyID, order)
}
