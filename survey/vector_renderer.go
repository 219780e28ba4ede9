package survey

import (
	"image/color"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer draws a residual report as SVG. Canvas units are millimeters;
// Scale converts survey units to millimeters.
type VectorRenderer struct {
	Scale        float64 // Millimeters per survey unit
	Padding      float64 // Padding in millimeters
	MarkerSize   float64 // Marker radius in millimeters
	GridSpacing  float64 // Grid spacing in survey units; 0 disables the grid
	Exaggeration float64
	Colors       map[string]StatusColor
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer() *VectorRenderer {
	return &VectorRenderer{
		Scale:        1.0,
		Padding:      10.0,
		MarkerSize:   1.0,
		GridSpacing:  10.0,
		Exaggeration: 1,
		Colors:       DefaultStatusColors(),
	}
}

// canvasRenderer is an interface that canvas renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the report as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer, report ResidualReport) error {
	b := reportBounds(report)
	width := (b.Max.X()-b.Min.X())*r.Scale + 2*r.Padding
	height := (b.Max.Y()-b.Min.Y())*r.Scale + 2*r.Padding

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, report, b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y(), width, height)

	return svgRenderer.Close()
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, report ResidualReport, minX, minY, maxX, maxY, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(p Point) (float64, float64) {
		return (p.X-minX)*r.Scale + r.Padding, (p.Y-minY)*r.Scale + r.Padding
	}

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Gray}
		gridStyle.StrokeWidth = 0.1

		for x := math.Ceil(minX/r.GridSpacing) * r.GridSpacing; x <= maxX; x += r.GridSpacing {
			cx, _ := toCanvas(Point{X: x})
			grid := &canvas.Path{}
			grid.MoveTo(cx, 0)
			grid.LineTo(cx, height)
			renderer.RenderPath(grid, gridStyle, canvas.Identity)
		}
		for y := math.Ceil(minY/r.GridSpacing) * r.GridSpacing; y <= maxY; y += r.GridSpacing {
			_, cy := toCanvas(Point{Y: y})
			grid := &canvas.Path{}
			grid.MoveTo(0, cy)
			grid.LineTo(width, cy)
			renderer.RenderPath(grid, gridStyle, canvas.Identity)
		}
	}

	// Residual vectors and design points
	for _, e := range report.Entries {
		if e.Ideal == nil {
			continue
		}
		c := entryColor(r.Colors, e.Status)

		vecStyle := canvas.DefaultStyle
		vecStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		vecStyle.Stroke = canvas.Paint{Color: c.Vector}
		vecStyle.StrokeWidth = r.MarkerSize / 4

		x0, y0 := toCanvas(e.Transformed)
		x1, y1 := toCanvas(exaggerate(e.Transformed, *e.Ideal, r.Exaggeration))
		vec := &canvas.Path{}
		vec.MoveTo(x0, y0)
		vec.LineTo(x1, y1)
		renderer.RenderPath(vec, vecStyle, canvas.Identity)

		idealStyle := canvas.DefaultStyle
		idealStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		idealStyle.Stroke = canvas.Paint{Color: idealColor}
		idealStyle.StrokeWidth = r.MarkerSize / 4

		ix, iy := toCanvas(*e.Ideal)
		size := r.MarkerSize * 2
		renderer.RenderPath(canvas.Rectangle(size, size).Translate(ix-size/2, iy-size/2), idealStyle, canvas.Identity)
	}

	// Transformed points on top
	for _, e := range report.Entries {
		c := entryColor(r.Colors, e.Status)
		pointStyle := canvas.DefaultStyle
		pointStyle.Fill = canvas.Paint{Color: c.Point}
		pointStyle.Stroke = canvas.Paint{Color: color.RGBA{0, 0, 0, 255}}
		pointStyle.StrokeWidth = r.MarkerSize / 8

		cx, cy := toCanvas(e.Transformed)
		renderer.RenderPath(canvas.Circle(r.MarkerSize).Translate(cx, cy), pointStyle, canvas.Identity)
	}
}
