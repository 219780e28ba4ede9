package survey

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReportToGeoJSON converts a residual report into a FeatureCollection.
//
// Every entry becomes a Point at its transformed position with label, status
// and residual properties. Entries with an ideal point also get a LineString
// residual vector from the transformed point to the ideal point.
func ReportToGeoJSON(report ResidualReport) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, e := range report.Entries {
		pt := geojson.NewFeature(toOrb(e.Transformed))
		pt.Properties["label"] = e.Label
		pt.Properties["kind"] = "transformed"
		if e.Status != "" {
			pt.Properties["status"] = e.Status
		}
		if e.Residual != nil {
			pt.Properties["residual"] = *e.Residual
		}
		fc.Append(pt)

		if e.Ideal == nil {
			continue
		}
		vec := geojson.NewFeature(orb.LineString{toOrb(e.Transformed), toOrb(*e.Ideal)})
		vec.Properties["label"] = e.Label
		vec.Properties["kind"] = "residual"
		vec.Properties["residual"] = *e.Residual
		fc.Append(vec)
	}

	return fc
}

// MarshalReportGeoJSON returns the GeoJSON encoding of a report
func MarshalReportGeoJSON(report ResidualReport) ([]byte, error) {
	data, err := ReportToGeoJSON(report).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshaling GeoJSON report: %w", err)
	}
	return data, nil
}
