// Package schema holds the Gehl observation vocabulary and the closed set of
// study table shapes built from it.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/goccy/go-yaml"
	"golang.org/x/text/cases"
)

//go:embed fields.yaml
var vocabularyYAML []byte

// Field names, in canonical column order.
const (
	FieldGender       = "gender"
	FieldAge          = "age"
	FieldMode         = "mode"
	FieldPosture      = "posture"
	FieldActivities   = "activities"
	FieldGroups       = "groups"
	FieldObject       = "object"
	FieldLocation     = "location"
	FieldNote         = "note"
	FieldCreationDate = "creation_date"
	FieldLastUpdated  = "last_updated"
)

// Kind is the encoding rule applied to a field's value.
type Kind string

const (
	KindText      Kind = "text"      // passed through as a string
	KindEnum      Kind = "enum"      // passed through; the table CHECK enforces the domain
	KindLabel     Kind = "label"     // friendly label remapped to a stored band
	KindList      Kind = "list"      // array of vocabulary values
	KindGeometry  Kind = "geometry"  // GeoJSON point or longitude/latitude pair
	KindTimestamp Kind = "timestamp" // passed through as a string
)

var (
	ErrUnknownField      = fmt.Errorf("%w: unknown field", utils.ErrValidation)
	ErrInvalidValue      = fmt.Errorf("%w: invalid value", utils.ErrValidation)
	ErrUnsupportedSchema = fmt.Errorf("%w: no schema available for this field combination", utils.ErrValidation)
)

// Field describes one Gehl observation attribute.
type Field struct {
	Name   string            `yaml:"name"`
	Kind   Kind              `yaml:"kind"`
	Values []string          `yaml:"values"`
	Labels map[string]string `yaml:"labels"`

	folded map[string]string
}

// Remap converts a friendly label ("child") to its stored value ("0-14").
// Matching ignores case.
func (f Field) Remap(label string) (string, error) {
	if f.Kind != KindLabel {
		return "", fmt.Errorf("%w: field %q has no labels", ErrInvalidValue, f.Name)
	}
	stored, ok := f.folded[fold(label)]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a valid %s label", ErrInvalidValue, label, f.Name)
	}
	return stored, nil
}

// Canonical returns the vocabulary spelling of v for enum and list fields.
func (f Field) Canonical(v string) (string, error) {
	if f.Kind != KindEnum && f.Kind != KindList {
		return "", fmt.Errorf("%w: field %q has no fixed values", ErrInvalidValue, f.Name)
	}
	canonical, ok := f.folded[fold(v)]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a valid %s value", ErrInvalidValue, v, f.Name)
	}
	return canonical, nil
}

// StoredValues lists every value the database column may hold, sorted. Empty
// for free-form fields.
func (f Field) StoredValues() []string {
	var out []string
	switch f.Kind {
	case KindLabel:
		for _, v := range f.Labels {
			out = append(out, v)
		}
	case KindEnum, KindList:
		out = append(out, f.Values...)
	}
	sort.Strings(out)
	return out
}

type vocabulary struct {
	Fields []Field `yaml:"fields"`
}

var (
	fields []Field
	byName map[string]int
)

func init() {
	var err error
	fields, byName, err = loadVocabulary(vocabularyYAML)
	if err != nil {
		panic(err)
	}
}

func loadVocabulary(data []byte) ([]Field, map[string]int, error) {
	var v vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, nil, fmt.Errorf("parse field vocabulary: %w", err)
	}

	index := make(map[string]int, len(v.Fields))
	for i := range v.Fields {
		f := &v.Fields[i]
		if _, dup := index[f.Name]; dup {
			return nil, nil, fmt.Errorf("field vocabulary: duplicate field %q", f.Name)
		}
		index[f.Name] = i

		f.folded = make(map[string]string)
		switch f.Kind {
		case KindLabel:
			if len(f.Labels) == 0 {
				return nil, nil, fmt.Errorf("field vocabulary: %q has no labels", f.Name)
			}
			for label, stored := range f.Labels {
				f.folded[fold(label)] = stored
			}
		case KindEnum, KindList:
			if len(f.Values) == 0 {
				return nil, nil, fmt.Errorf("field vocabulary: %q has no values", f.Name)
			}
			for _, value := range f.Values {
				f.folded[fold(value)] = value
			}
		case KindText, KindGeometry, KindTimestamp:
		default:
			return nil, nil, fmt.Errorf("field vocabulary: %q has unknown kind %q", f.Name, f.Kind)
		}
	}
	return v.Fields, index, nil
}

// Casers carry state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Lookup returns the field definition for name.
func Lookup(name string) (Field, error) {
	i, ok := byName[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return fields[i], nil
}

// FieldNames returns every known field in canonical order.
func FieldNames() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// position orders field names canonically; unknown names sort last.
func position(name string) int {
	if i, ok := byName[name]; ok {
		return i
	}
	return len(fields)
}
