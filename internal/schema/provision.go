package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Namespace is the Postgres schema holding study metadata and study tables.
	Namespace = "data_collection"
	// TablePrefix starts every study table name.
	TablePrefix = "gehl_"
)

// Columns every study table has regardless of shape.
const (
	ColumnSurveyID    = "survey_id"
	ColumnDataPointID = "data_point_id"
)

// Static column templates. Domain lists must agree with fields.yaml; the
// registry tests check that.
var columnDefinitions = map[string]string{
	FieldGender:       `gender text CHECK (gender IN ('female', 'male', 'unknown'))`,
	FieldAge:          `age text CHECK (age IN ('0-14', '15-24', '25-64', '65+'))`,
	FieldMode:         `mode text`,
	FieldPosture:      `posture text`,
	FieldActivities:   `activities text[]`,
	FieldGroups:       `groups text CHECK (groups IN ('group_1', 'group_2', 'group_3-7', 'group_8+'))`,
	FieldObject:       `object text`,
	FieldLocation:     `location geometry(Geometry, 4326) NOT NULL`,
	FieldNote:         `note text`,
	FieldCreationDate: `creation_date timestamptz NOT NULL DEFAULT now()`,
	FieldLastUpdated:  `last_updated timestamptz NOT NULL DEFAULT now()`,
}

// TableName derives the study's table name: the prefix followed by the study
// id with its hyphens removed. It is recomputed on every access.
func TableName(studyID uuid.UUID) string {
	return TablePrefix + strings.ReplaceAll(studyID.String(), "-", "")
}

// QualifiedTableName returns the quoted, schema-qualified study table.
func QualifiedTableName(studyID uuid.UUID) string {
	return QualifyTable(TableName(studyID))
}

// QualifyTable quotes a bare table name inside Namespace.
func QualifyTable(table string) string {
	return pgx.Identifier{Namespace, table}.Sanitize()
}

// CreateTableStatement returns the DDL for a study table of the given shape.
func CreateTableStatement(studyID uuid.UUID, shape Shape) (string, error) {
	fieldNames, ok := shapeFields[shape]
	if !ok {
		return "", fmt.Errorf("%w: shape %s", ErrUnsupportedSchema, shape)
	}
	if !shape.Has(FieldLocation) {
		return "", fmt.Errorf("%w: shape %s has no location column", ErrUnsupportedSchema, shape)
	}

	columns := []string{
		ColumnSurveyID + ` uuid NOT NULL REFERENCES ` + QualifyTable("surveys") + ` (survey_id) ON DELETE CASCADE`,
		ColumnDataPointID + ` uuid PRIMARY KEY`,
	}
	for _, name := range fieldNames {
		columns = append(columns, columnDefinitions[name])
	}

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)",
		QualifiedTableName(studyID), strings.Join(columns, ",\n\t")), nil
}

// CreateIndexStatement indexes the study table by survey for list and delete
// lookups.
func CreateIndexStatement(studyID uuid.UUID) string {
	index := pgx.Identifier{TableName(studyID) + "_survey_idx"}.Sanitize()
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", index, QualifiedTableName(studyID), ColumnSurveyID)
}

// DropTableStatement removes a study table.
func DropTableStatement(studyID uuid.UUID) string {
	return "DROP TABLE IF EXISTS " + QualifiedTableName(studyID)
}

// ProvisionStatements is the full DDL run when a study is created.
func ProvisionStatements(studyID uuid.UUID, shape Shape) ([]string, error) {
	create, err := CreateTableStatement(studyID, shape)
	if err != nil {
		return nil, err
	}
	return []string{create, CreateIndexStatement(studyID)}, nil
}
