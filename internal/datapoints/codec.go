package datapoints

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/geo"
	"github.com/PublicLifeLab/gehl-backend/internal/schema"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paulmach/orb"
)

// Statement is a parameterized SQL statement and its bound values. Args[i]
// binds placeholder $(i+1).
type Statement struct {
	SQL  string
	Args []any
}

// binder hands out placeholders in lock-step with the values it collects.
// Each encoding gets its own.
type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// Encode builds the upsert for one raw observation against a study table.
// Keys with null values are dropped. survey_id and data_point_id are always
// taken from the arguments. Any key the table has no column for rejects the
// whole data point, and so does a missing location.
func Encode(table string, shape schema.Shape, surveyID, dataPointID uuid.UUID, raw map[string]any) (Statement, error) {
	provided := make(map[string]any, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		if key == schema.ColumnSurveyID || key == schema.ColumnDataPointID {
			continue
		}
		if _, err := schema.Lookup(key); err != nil {
			return Statement{}, err
		}
		if !shape.Has(key) {
			return Statement{}, fmt.Errorf("%w: %q is not recorded by %s studies", schema.ErrUnknownField, key, shape)
		}
		provided[key] = value
	}
	if _, ok := provided[schema.FieldLocation]; !ok && shape.Has(schema.FieldLocation) {
		return Statement{}, fmt.Errorf("%w: location is required", schema.ErrInvalidValue)
	}

	b := &binder{}
	columns := []string{schema.ColumnSurveyID, schema.ColumnDataPointID}
	values := []string{b.bind(surveyID), b.bind(dataPointID)}

	for _, name := range shape.Fields() {
		value, ok := provided[name]
		if !ok {
			continue
		}
		field, err := schema.Lookup(name)
		if err != nil {
			return Statement{}, err
		}
		expr, err := encodeValue(b, field, value)
		if err != nil {
			return Statement{}, err
		}
		columns = append(columns, name)
		values = append(values, expr)
	}

	updates := make([]string, 0, len(columns)-1)
	for _, c := range columns {
		if c == schema.ColumnDataPointID {
			continue
		}
		updates = append(updates, c+" = EXCLUDED."+c)
	}

	// A data point id already used by another survey is left alone; the
	// statement then affects no rows.
	qualified := schema.QualifyTable(table)
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s WHERE %s.%s = EXCLUDED.%s",
		qualified,
		strings.Join(columns, ", "),
		strings.Join(values, ", "),
		schema.ColumnDataPointID,
		strings.Join(updates, ", "),
		qualified, schema.ColumnSurveyID, schema.ColumnSurveyID,
	)
	return Statement{SQL: sql, Args: b.args}, nil
}

func encodeValue(b *binder, field schema.Field, value any) (string, error) {
	switch field.Kind {
	case schema.KindGeometry:
		return encodeLocation(b, value)
	case schema.KindEnum:
		v, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a string, got %T", schema.ErrInvalidValue, field.Name, value)
		}
		canonical, err := field.Canonical(v)
		if err != nil {
			return "", err
		}
		return b.bind(canonical), nil
	case schema.KindLabel:
		label, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a label string, got %T", schema.ErrInvalidValue, field.Name, value)
		}
		stored, err := field.Remap(label)
		if err != nil {
			return "", err
		}
		return b.bind(stored), nil
	case schema.KindList:
		literal, err := arrayLiteral(field, value)
		if err != nil {
			return "", err
		}
		return b.bind(literal) + "::text[]", nil
	default:
		s, err := stringify(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", schema.ErrInvalidValue, field.Name, err)
		}
		return b.bind(s), nil
	}
}

// encodeLocation binds a GeoJSON Point as one parameter, or a
// longitude/latitude pair as two.
func encodeLocation(b *binder, value any) (string, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: location must be an object, got %T", geo.ErrInvalidGeometry, value)
	}

	if t, _ := obj["type"].(string); t == "Point" {
		raw, err := json.Marshal(obj)
		if err != nil {
			return "", fmt.Errorf("%w: %v", geo.ErrInvalidGeometry, err)
		}
		g, err := geo.ParseGeoJSON(raw)
		if err != nil {
			return "", err
		}
		point, ok := g.(orb.Point)
		if !ok || !geo.ValidPoint(point) {
			return "", fmt.Errorf("%w: point coordinates out of range", geo.ErrInvalidGeometry)
		}
		text, err := geo.MarshalGeometry(point)
		if err != nil {
			return "", err
		}
		return "ST_SetSRID(ST_GeomFromGeoJSON(" + b.bind(text) + "), 4326)", nil
	}

	lon, err := coordinate(obj, "longitude")
	if err != nil {
		return "", err
	}
	lat, err := coordinate(obj, "latitude")
	if err != nil {
		return "", err
	}
	if !geo.ValidCoordinate(lon, lat) {
		return "", fmt.Errorf("%w: (%g, %g) is not a valid longitude/latitude", geo.ErrInvalidGeometry, lon, lat)
	}
	lonParam := b.bind(lon)
	latParam := b.bind(lat)
	return "ST_GeomFromText('POINT(' || " + lonParam + "::float8 || ' ' || " + latParam + "::float8 || ')', 4326)", nil
}

func coordinate(obj map[string]any, key string) (float64, error) {
	switch v := obj[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", geo.ErrInvalidGeometry, key, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", geo.ErrInvalidGeometry, key, err)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("%w: location needs a GeoJSON Point or %s", geo.ErrInvalidGeometry, key)
	default:
		return 0, fmt.Errorf("%w: %s must be numeric, got %T", geo.ErrInvalidGeometry, key, v)
	}
}

// arrayLiteral renders a list field as a Postgres array literal. A bare value
// becomes a one-element list; nested lists become nested dimensions.
func arrayLiteral(field schema.Field, value any) (string, error) {
	list, ok := value.([]any)
	if !ok {
		switch v := value.(type) {
		case []string:
			list = make([]any, len(v))
			for i, s := range v {
				list[i] = s
			}
		default:
			list = []any{value}
		}
	}

	nested := 0
	for _, item := range list {
		if _, ok := item.([]any); ok {
			nested++
		}
	}

	switch {
	case nested == 0:
		values := pq.StringArray{}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("%w: %s entries must be strings, got %T", schema.ErrInvalidValue, field.Name, item)
			}
			canonical, err := field.Canonical(s)
			if err != nil {
				return "", err
			}
			values = append(values, canonical)
		}
		v, err := values.Value()
		if err != nil {
			return "", err
		}
		return v.(string), nil
	case nested == len(list):
		parts := make([]string, len(list))
		for i, item := range list {
			part, err := arrayLiteral(field, item)
			if err != nil {
				return "", err
			}
			parts[i] = part
		}
		return "{" + strings.Join(parts, ",") + "}", nil
	default:
		return "", fmt.Errorf("%w: %s mixes lists and values", schema.ErrInvalidValue, field.Name)
	}
}

func stringify(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int32, int64:
		return fmt.Sprint(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
