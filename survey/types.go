package survey

import "math"

// Point represents a 2D coordinate in a planar survey frame
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// LabeledPoint is a point carrying the label used to match it across point sets
type LabeledPoint struct {
	Label string  `json:"label" yaml:"label"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
}

// Point returns the coordinates of the labeled point
func (lp LabeledPoint) Point() Point {
	return Point{X: lp.X, Y: lp.Y}
}

// CorrespondencePair is a measured (real) point matched to its design (ideal) counterpart
type CorrespondencePair struct {
	Label string `json:"label"`
	Real  Point  `json:"real"`
	Ideal Point  `json:"ideal"`
}

// CorrespondenceSet is ordered by the insertion order of the real point set
type CorrespondenceSet []CorrespondencePair

// RealPoints returns the real coordinates in pair order
func (cs CorrespondenceSet) RealPoints() []Point {
	pts := make([]Point, len(cs))
	for i, p := range cs {
		pts[i] = p.Real
	}
	return pts
}

// IdealPoints returns the ideal coordinates in pair order
func (cs CorrespondenceSet) IdealPoints() []Point {
	pts := make([]Point, len(cs))
	for i, p := range cs {
		pts[i] = p.Ideal
	}
	return pts
}

// Labels returns the pair labels in order
func (cs CorrespondenceSet) Labels() []string {
	labels := make([]string, len(cs))
	for i, p := range cs {
		labels[i] = p.Label
	}
	return labels
}

// Subset returns the pairs at the given indices, in index order
func (cs CorrespondenceSet) Subset(mask InlierMask) CorrespondenceSet {
	out := make(CorrespondenceSet, 0, len(mask))
	for _, idx := range mask {
		if idx >= 0 && idx < len(cs) {
			out = append(out, cs[idx])
		}
	}
	return out
}

// InlierMask holds ascending indices into a CorrespondenceSet
type InlierMask []int

// Contains reports whether idx is part of the mask
func (m InlierMask) Contains(idx int) bool {
	for _, i := range m {
		if i == idx {
			return true
		}
		if i > idx {
			return false
		}
	}
	return false
}

// RigidTransform maps p to R*p + T, where R is a proper 2x2 rotation
//
//	R = [R[0][0] R[0][1]]
//	    [R[1][0] R[1][1]]
type RigidTransform struct {
	R [2][2]float64 `json:"rotation"`
	T Point         `json:"translation"`
}

// Entry status values used when a report is produced by Register
const (
	StatusInlier    = "inlier"
	StatusRejected  = "rejected"
	StatusUnmatched = "unmatched"
)

// ResidualEntry reports one transformed point. Ideal and Residual are nil when the
// point had no ideal counterpart, which keeps absence distinct from a perfect fit.
type ResidualEntry struct {
	Label       string   `json:"label"`
	Original    Point    `json:"original"`
	Transformed Point    `json:"transformed"`
	Ideal       *Point   `json:"ideal,omitempty"`
	Residual    *float64 `json:"residual,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// HasResidual reports whether the entry was compared against an ideal point
func (e ResidualEntry) HasResidual() bool {
	return e.Residual != nil
}

// ResidualReport lists every transformed point in input order
type ResidualReport struct {
	Entries []ResidualEntry `json:"entries"`
}

// ReportStats summarizes the residuals of a report
type ReportStats struct {
	Matched int     `json:"matched"`
	RMS     float64 `json:"rms"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
}

// Stats computes residual statistics over entries that have a residual.
// When onlyStatus is non-empty, only entries with that status are counted.
func (r ResidualReport) Stats(onlyStatus string) ReportStats {
	var s ReportStats
	var sum, sumSq float64
	for _, e := range r.Entries {
		if e.Residual == nil {
			continue
		}
		if onlyStatus != "" && e.Status != onlyStatus {
			continue
		}
		d := *e.Residual
		s.Matched++
		sum += d
		sumSq += d * d
		if d > s.Max {
			s.Max = d
		}
	}
	if s.Matched > 0 {
		s.Mean = sum / float64(s.Matched)
		s.RMS = math.Sqrt(sumSq / float64(s.Matched))
	}
	return s
}

// Lookup returns the entry with the given label
func (r ResidualReport) Lookup(label string) (ResidualEntry, bool) {
	for _, e := range r.Entries {
		if e.Label == label {
			return e, true
		}
	}
	return ResidualEntry{}, false
}
