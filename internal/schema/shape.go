package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Shape is one of the closed set of study table layouts. There is no way to
// provision a table for any other field combination.
type Shape int

const (
	ShapeMinimal Shape = iota + 1 // gender and location only
	ShapeFull                     // every Gehl field
)

var shapeFields = map[Shape][]string{
	ShapeMinimal: {FieldGender, FieldLocation},
	ShapeFull: {
		FieldGender, FieldAge, FieldMode, FieldPosture, FieldActivities, FieldGroups,
		FieldObject, FieldLocation, FieldNote, FieldCreationDate, FieldLastUpdated,
	},
}

func (s Shape) String() string {
	switch s {
	case ShapeMinimal:
		return "minimal"
	case ShapeFull:
		return "full"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Fields returns the shape's field names in canonical order.
func (s Shape) Fields() []string {
	return append([]string(nil), shapeFields[s]...)
}

// Has reports whether the shape's table has a column for field.
func (s Shape) Has(field string) bool {
	for _, f := range shapeFields[s] {
		if f == field {
			return true
		}
	}
	return false
}

// ShapeFor matches a field selection against the supported shapes. Order and
// duplicates in the selection are ignored.
func ShapeFor(selection []string) (Shape, error) {
	set := make(map[string]struct{}, len(selection))
	for _, f := range selection {
		set[strings.TrimSpace(f)] = struct{}{}
	}

	for _, shape := range []Shape{ShapeMinimal, ShapeFull} {
		want := shapeFields[shape]
		if len(set) != len(want) {
			continue
		}
		match := true
		for _, f := range want {
			if _, ok := set[f]; !ok {
				match = false
				break
			}
		}
		if match {
			return shape, nil
		}
	}

	names := make([]string, 0, len(set))
	for f := range set {
		names = append(names, f)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := position(names[i]), position(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return 0, fmt.Errorf("%w: [%s]", ErrUnsupportedSchema, strings.Join(names, ", "))
}
