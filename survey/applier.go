package survey

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Apply transforms every point and compares it with its ideal counterpart.
//
// ideal may be nil. Points whose label is missing from ideal get no residual,
// which is distinct from a residual of zero.
func Apply(t RigidTransform, points []LabeledPoint, ideal map[string]Point) ResidualReport {
	report := ResidualReport{Entries: make([]ResidualEntry, 0, len(points))}

	for _, lp := range points {
		transformed := t.Apply(lp.Point())
		entry := ResidualEntry{
			Label:       lp.Label,
			Original:    lp.Point(),
			Transformed: transformed,
		}

		if target, ok := ideal[lp.Label]; ok {
			d := planar.Distance(toOrb(transformed), toOrb(target))
			entry.Ideal = &target
			entry.Residual = &d
		}

		report.Entries = append(report.Entries, entry)
	}

	return report
}

func toOrb(p Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

func fromOrb(p orb.Point) Point {
	return Point{X: p.X(), Y: p.Y()}
}
