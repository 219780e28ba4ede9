package survey

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// TextAnnotation is a text entity placed in a drawing
type TextAnnotation struct {
	Position Point  `json:"position"`
	Content  string `json:"content"`
}

// Drawing holds the design geometry selected from a plan: polylines whose
// vertices are the design points and text annotations naming them.
type Drawing struct {
	Polylines [][]Point
	Texts     []TextAnnotation
}

// ParseDrawing reads a drawing from a GeoJSON FeatureCollection. LineString and
// Polygon features become polylines; Point features with a "text" property
// become annotations.
func ParseDrawing(data []byte) (*Drawing, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing drawing: %w", err)
	}
	return drawingFromCollection(fc), nil
}

func drawingFromCollection(fc *geojson.FeatureCollection) *Drawing {
	d := &Drawing{}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			d.Polylines = append(d.Polylines, pointsFromOrb(g))
		case orb.MultiLineString:
			for _, ls := range g {
				d.Polylines = append(d.Polylines, pointsFromOrb(ls))
			}
		case orb.Polygon:
			if len(g) > 0 {
				d.Polylines = append(d.Polylines, pointsFromOrb(g[0]))
			}
		case orb.Point:
			if text, ok := stringProperty(f.Properties, "text"); ok {
				d.Texts = append(d.Texts, TextAnnotation{Position: fromOrb(g), Content: text})
			}
		}
	}
	return d
}

func pointsFromOrb[T ~[]orb.Point](pts T) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = fromOrb(p)
	}
	return out
}

// DesignPoints labels every polyline vertex V1..Vn in drawing order. A vertex
// repeating the first vertex of its polyline (a closed ring) is skipped. Each
// text annotation within tolerance of a vertex renames the nearest vertex to
// the annotation content.
func (d *Drawing) DesignPoints(tolerance float64) []LabeledPoint {
	var vertices []LabeledPoint
	for _, poly := range d.Polylines {
		for i, v := range poly {
			if i > 0 && i == len(poly)-1 && Distance(v, poly[0]) < coincidentTolerance {
				continue
			}
			vertices = append(vertices, LabeledPoint{
				Label: fmt.Sprintf("V%d", len(vertices)+1),
				X:     v.X,
				Y:     v.Y,
			})
		}
	}

	for _, text := range d.Texts {
		best := -1
		bestDist := math.MaxFloat64
		for i, v := range vertices {
			dist := planar.Distance(toOrb(text.Position), toOrb(v.Point()))
			if dist < tolerance && dist < bestDist {
				best = i
				bestDist = dist
			}
		}
		if best >= 0 {
			vertices[best].Label = text.Content
		}
	}

	return vertices
}
