package survey

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Label sources for PNEZD files
const (
	LabelFromDescription = "description"
	LabelFromNumber      = "number"
)

// Point file formats
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatGeoJSON = "geojson"
)

// IngestOptions controls how point files are turned into labeled points
type IngestOptions struct {
	LabelField     string  `yaml:"labelField,omitempty" json:"labelField,omitempty"`         // "description" (default) or "number"
	Precision      int     `yaml:"precision,omitempty" json:"precision,omitempty"`           // Decimals kept for survey coordinates; 0 keeps all
	LabelTolerance float64 `yaml:"labelTolerance,omitempty" json:"labelTolerance,omitempty"` // Max text-to-vertex distance when labeling drawings
	EastingFirst   bool    `yaml:"eastingFirst,omitempty" json:"eastingFirst,omitempty"`     // PENZD instead of PNEZD column order
}

// DefaultIngestOptions returns the options used for COGO point exports
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		LabelField:     LabelFromDescription,
		Precision:      3,
		LabelTolerance: 1.0,
	}
}

// LoadPoints reads a labeled point file. The format follows the extension:
// .csv/.txt for PNEZD survey exports, .json for a point array and .geojson
// for labeled points or a drawing of polylines and text.
func LoadPoints(path string, opts IngestOptions) ([]LabeledPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading point file: %w", err)
	}
	points, err := ParsePoints(data, FormatFromPath(path), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return points, nil
}

// FormatFromPath infers the point file format from its extension
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".pnezd", ".penzd":
		return FormatCSV
	case ".geojson":
		return FormatGeoJSON
	default:
		return FormatJSON
	}
}

// ParsePoints decodes labeled points in the given format
func ParsePoints(data []byte, format string, opts IngestOptions) ([]LabeledPoint, error) {
	switch format {
	case FormatCSV:
		return ParsePNEZD(bytes.NewReader(data), opts)
	case FormatGeoJSON:
		return parseGeoJSONPoints(data, opts)
	case FormatJSON:
		var points []LabeledPoint
		if err := json.Unmarshal(data, &points); err != nil {
			return nil, fmt.Errorf("parsing JSON points: %w", err)
		}
		return points, nil
	default:
		return nil, fmt.Errorf("unknown point format %q", format)
	}
}

// ParsePNEZD reads a comma separated survey export with columns
// Point, Northing, Easting, Elevation, Description. A header row is skipped.
func ParsePNEZD(r io.Reader, opts IngestOptions) ([]LabeledPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var points []LabeledPoint
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 columns, got %d", line, len(record))
		}

		northCol, eastCol := 1, 2
		if opts.EastingFirst {
			northCol, eastCol = 2, 1
		}
		north, errN := strconv.ParseFloat(strings.TrimSpace(record[northCol]), 64)
		east, errE := strconv.ParseFloat(strings.TrimSpace(record[eastCol]), 64)
		if errN != nil || errE != nil {
			if len(points) == 0 && line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: invalid coordinates %q, %q", line, record[northCol], record[eastCol])
		}

		number := strings.TrimSpace(record[0])
		label := number
		if opts.LabelField != LabelFromNumber && len(record) >= 5 {
			if desc := strings.TrimSpace(record[4]); desc != "" {
				label = desc
			}
		}

		points = append(points, LabeledPoint{
			Label: label,
			X:     roundTo(east, opts.Precision),
			Y:     roundTo(north, opts.Precision),
		})
	}

	return points, nil
}

func roundTo(v float64, decimals int) float64 {
	if decimals <= 0 {
		return v
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// parseGeoJSONPoints reads Point features carrying a "label" property. A
// collection without any is treated as a drawing and its vertices are labeled.
func parseGeoJSONPoints(data []byte, opts IngestOptions) ([]LabeledPoint, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}

	var points []LabeledPoint
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		label, ok := stringProperty(f.Properties, "label")
		if !ok {
			continue
		}
		points = append(points, LabeledPoint{Label: label, X: pt.X(), Y: pt.Y()})
	}
	if len(points) > 0 {
		return points, nil
	}

	return drawingFromCollection(fc).DesignPoints(opts.LabelTolerance), nil
}

func stringProperty(props geojson.Properties, key string) (string, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return fmt.Sprint(s), true
	}
}
