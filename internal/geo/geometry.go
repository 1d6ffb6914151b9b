// Package geo converts between GeoJSON payloads and the PostGIS columns that
// store them.
package geo

import (
	"encoding/json"
	"fmt"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrInvalidGeometry = fmt.Errorf("%w: invalid geometry", utils.ErrValidation)

// Geometry is a GeoJSON geometry read back from ST_AsGeoJSON.
type Geometry struct {
	*geojson.Geometry
}

// Scan implements sql.Scanner for json/text columns holding GeoJSON.
func (g *Geometry) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		g.Geometry = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("geo: unsupported scan type %T", value)
	}

	decoded, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return fmt.Errorf("geo: decode geometry: %w", err)
	}
	g.Geometry = decoded
	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.Geometry == nil {
		return []byte("null"), nil
	}
	return g.Geometry.MarshalJSON()
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		g.Geometry = nil
		return nil
	}
	return g.Scan(data)
}

// Orb returns the underlying geometry, or nil.
func (g Geometry) Orb() orb.Geometry {
	if g.Geometry == nil {
		return nil
	}
	return g.Geometry.Geometry()
}

// ParseGeoJSON accepts any GeoJSON geometry, a Feature, or a
// FeatureCollection and returns a single geometry PostGIS can store. Feature
// collections fold into a GeometryCollection.
func ParseGeoJSON(raw json.RawMessage) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("%w: empty feature collection", ErrInvalidGeometry)
		}
		collection := make(orb.Collection, 0, len(fc.Features))
		for _, f := range fc.Features {
			if f.Geometry != nil {
				collection = append(collection, f.Geometry)
			}
		}
		switch len(collection) {
		case 0:
			return nil, fmt.Errorf("%w: feature collection has no geometry", ErrInvalidGeometry)
		case 1:
			return collection[0], nil
		}
		return collection, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("%w: feature has no geometry", ErrInvalidGeometry)
		}
		return f.Geometry, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidGeometry)
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		return g.Geometry(), nil
	}
}

// MarshalGeometry renders g as GeoJSON text for ST_GeomFromGeoJSON.
func MarshalGeometry(g orb.Geometry) (string, error) {
	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return string(data), nil
}

// ValidCoordinate reports whether lon/lat is a point on the globe.
func ValidCoordinate(lon, lat float64) bool {
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

// ValidPoint reports whether p has valid longitude/latitude.
func ValidPoint(p orb.Point) bool {
	return ValidCoordinate(p.Lon(), p.Lat())
}

// ValidGeometry reports whether every coordinate of g lies on the globe.
func ValidGeometry(g orb.Geometry) bool {
	if g == nil {
		return false
	}
	b := g.Bound()
	return ValidPoint(b.Min) && ValidPoint(b.Max)
}
