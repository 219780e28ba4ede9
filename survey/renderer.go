package survey

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// StatusColor defines the colors used for one entry status
type StatusColor struct {
	Point  color.RGBA
	Vector color.RGBA
}

// DefaultStatusColors returns the palette keyed by entry status
func DefaultStatusColors() map[string]StatusColor {
	return map[string]StatusColor{
		StatusInlier: { // Green
			Point:  color.RGBA{0, 128, 0, 255},
			Vector: color.RGBA{0, 100, 0, 255},
		},
		StatusRejected: { // Red
			Point:  color.RGBA{220, 20, 60, 255},
			Vector: color.RGBA{139, 0, 0, 255},
		},
		StatusUnmatched: { // Grey
			Point:  color.RGBA{128, 128, 128, 255},
			Vector: color.RGBA{96, 96, 96, 255},
		},
	}
}

// idealColor is used for design points
var idealColor = color.RGBA{0, 0, 139, 255}

// reportBounds returns the extent of every transformed and ideal point
func reportBounds(report ResidualReport) orb.Bound {
	var mp orb.MultiPoint
	for _, e := range report.Entries {
		mp = append(mp, toOrb(e.Transformed))
		if e.Ideal != nil {
			mp = append(mp, toOrb(*e.Ideal))
		}
	}
	if len(mp) == 0 {
		return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	}
	b := mp.Bound()
	if b.Min == b.Max {
		b = b.Pad(1)
	}
	return b
}

func entryColor(colors map[string]StatusColor, status string) StatusColor {
	if c, ok := colors[status]; ok {
		return c
	}
	return colors[StatusInlier]
}

// RasterRenderer draws a residual report into a PNG image.
// Ideal points are blue squares, transformed points are circles colored by
// status, and residual vectors join them.
type RasterRenderer struct {
	Width        int // Image width in pixels (height follows the aspect ratio)
	Padding      int // Padding around the drawing in pixels
	MarkerRadius int
	Exaggeration float64 // Scales residual vectors so small errors stay visible
	Labels       bool
	Colors       map[string]StatusColor
}

// NewRasterRenderer creates a raster renderer with default settings
func NewRasterRenderer() *RasterRenderer {
	return &RasterRenderer{
		Width:        1200,
		Padding:      40,
		MarkerRadius: 4,
		Exaggeration: 1,
		Labels:       true,
		Colors:       DefaultStatusColors(),
	}
}

// Render draws the report and returns the image
func (r *RasterRenderer) Render(report ResidualReport) *image.RGBA {
	b := reportBounds(report)
	spanX := b.Max.X() - b.Min.X()
	spanY := b.Max.Y() - b.Min.Y()
	if spanX <= 0 {
		spanX = spanY
	}
	if spanY <= 0 {
		spanY = spanX
	}

	inner := float64(r.Width - 2*r.Padding)
	scale := inner / math.Max(spanX, spanY)
	width := r.Width
	height := int(spanY*scale) + 2*r.Padding

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	// Survey Y grows north; image Y grows down
	toPixel := func(p Point) (int, int) {
		x := float64(r.Padding) + (p.X-b.Min.X())*scale
		y := float64(height-r.Padding) - (p.Y-b.Min.Y())*scale
		return int(math.Round(x)), int(math.Round(y))
	}

	for _, e := range report.Entries {
		if e.Ideal == nil {
			continue
		}
		c := entryColor(r.Colors, e.Status)
		end := exaggerate(e.Transformed, *e.Ideal, r.Exaggeration)
		x0, y0 := toPixel(e.Transformed)
		x1, y1 := toPixel(end)
		drawLine(img, x0, y0, x1, y1, c.Vector)
		ix, iy := toPixel(*e.Ideal)
		drawSquare(img, ix, iy, r.MarkerRadius*2, idealColor)
	}

	for _, e := range report.Entries {
		c := entryColor(r.Colors, e.Status)
		x, y := toPixel(e.Transformed)
		drawCircle(img, x, y, r.MarkerRadius, c.Point)
		if r.Labels {
			text := e.Label
			if e.Residual != nil {
				text = fmt.Sprintf("%s %.3f", e.Label, *e.Residual)
			}
			drawText(img, x+r.MarkerRadius+2, y-r.MarkerRadius, text, color.RGBA{0, 0, 0, 255})
		}
	}

	return img
}

// SavePNG renders the report to a PNG file
func (r *RasterRenderer) SavePNG(report ResidualReport, path string) error {
	img := r.Render(report)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// exaggerate moves the end of a residual vector away from its start by factor
func exaggerate(from, to Point, factor float64) Point {
	if factor <= 0 {
		factor = 1
	}
	return Point{
		X: from.X + (to.X-from.X)*factor,
		Y: from.Y + (to.Y-from.Y)*factor,
	}
}

func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			// Outline only
			if dx != -half && dx != half && dy != -half && dy != half {
				continue
			}
			x, y := cx+dx, cy+dy
			if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
				img.Set(x, y, c)
			}
		}
	}
}

// drawLine draws a line using Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	bounds := img.Bounds()
	for {
		if x0 >= 0 && x0 < bounds.Max.X && y0 >= 0 && y0 < bounds.Max.Y {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
