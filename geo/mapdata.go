package geo

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// Layer is the municipality boundary map (GeoJSON features with a "code"
// property). It is read once and never modified; filters return new layers.
type Layer struct {
	features []*geojson.Feature
	codes    []string
}

// ReadLayer decodes a FeatureCollection. Features without a usable code are
// dropped.
func ReadLayer(r io.Reader) (*Layer, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	l := &Layer{}
	for _, f := range fc.Features {
		code, ok := CodeOf(f.Properties["code"])
		if !ok {
			continue
		}
		l.features = append(l.features, f)
		l.codes = append(l.codes, code)
	}
	return l, nil
}

func (l *Layer) Len() int { return len(l.features) }

// Municipalities extracts the code/name list (LAU_NAME property).
func (l *Layer) Municipalities() []Municipality {
	out := make([]Municipality, 0, len(l.features))
	for i, f := range l.features {
		name, _ := f.Properties["LAU_NAME"].(string)
		out = append(out, Municipality{Code: l.codes[i], Name: name})
	}
	return out
}

// Filter keeps the features inside the selection.
func (l *Layer) Filter(s Scope) *Layer {
	out := &Layer{}
	for i, f := range l.features {
		if s.Matches(LevelMunicipality, l.codes[i]) {
			out.features = append(out.features, f)
			out.codes = append(out.codes, l.codes[i])
		}
	}
	return out
}

// Choropleth builds a collection ready for a map widget: every feature gets
// "code", "name" and "value" (null when missing) properties plus a label
// point in "centroid". Values are keyed by post-merger NIS code.
func (l *Layer) Choropleth(values map[string]float64, dir *Directory) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(l.features))}
	for i, f := range l.features {
		code := l.codes[i]
		props := map[string]any{
			"code":  code,
			"name":  dir.Name(code),
			"value": nil,
		}
		if n, _ := NormalizeNis(code); n != "" {
			if v, ok := values[n]; ok {
				props["value"] = v
			}
		}
		if props["name"] == "" {
			props["name"], _ = f.Properties["LAU_NAME"].(string)
		}
		if f.Geometry != nil {
			if c, err := xy.Centroid(f.Geometry); err == nil && len(c) >= 2 {
				props["centroid"] = []float64{c[0], c[1]}
			}
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	return fc
}
