package survey

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ResidualChart builds a bar chart of residual distance per label with a
// dashed line at threshold (skipped when threshold <= 0).
func ResidualChart(report ResidualReport, threshold float64) (*plot.Plot, error) {
	var values plotter.Values
	var names []string
	for _, e := range report.Entries {
		if e.Residual == nil {
			continue
		}
		values = append(values, *e.Residual)
		names = append(names, e.Label)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no residuals to plot")
	}

	p := plot.New()
	p.Title.Text = "Residuals after registration"
	p.Y.Label.Text = "Residual distance"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, fmt.Errorf("creating bar chart: %w", err)
	}
	bars.Color = color.RGBA{100, 149, 237, 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	if threshold > 0 {
		line, err := plotter.NewLine(plotter.XYs{
			{X: -0.5, Y: threshold},
			{X: float64(len(values)) - 0.5, Y: threshold},
		})
		if err != nil {
			return nil, fmt.Errorf("creating threshold line: %w", err)
		}
		line.Color = color.RGBA{220, 20, 60, 255}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add("threshold", line)
	}

	return p, nil
}

// WriteResidualChart encodes the chart in format ("png", "svg", "pdf", ...)
func WriteResidualChart(w io.Writer, report ResidualReport, threshold float64, format string) error {
	p, err := ResidualChart(report, threshold)
	if err != nil {
		return err
	}
	return WriteChart(w, p, format)
}

// WriteChart encodes an already built chart
func WriteChart(w io.Writer, p *plot.Plot, format string) error {
	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("preparing %s chart: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing chart: %w", err)
	}
	return nil
}

// SaveResidualChart writes the chart to path; the format follows the extension
func SaveResidualChart(path string, report ResidualReport, threshold float64) error {
	p, err := ResidualChart(report, threshold)
	if err != nil {
		return err
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return fmt.Errorf("chart path %q has no extension", path)
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving chart: %w", err)
	}
	return nil
}
