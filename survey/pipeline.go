package survey

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of one registration run
type Result struct {
	RunID     string                  `json:"runId"`
	CreatedAt time.Time               `json:"createdAt"`
	Transform RigidTransform          `json:"transform"`
	Angle     float64                 `json:"angleDeg"`
	RMSE      float64                 `json:"rmse"` // Over inliers
	Pairs     CorrespondenceSet       `json:"pairs"`
	Mask      InlierMask              `json:"inlierMask"`
	Rejected  []Rejection             `json:"rejected,omitempty"`
	Unmatched []UnmatchedLabelWarning `json:"unmatched,omitempty"`
	Trials    int                     `json:"trials"`
	Report    ResidualReport          `json:"report"`
}

// Inliers returns the pairs retained by the outlier filter
func (r *Result) Inliers() CorrespondenceSet {
	return r.Pairs.Subset(r.Mask)
}

// Register runs the full pipeline: resolve labels, reject outliers, fit the
// rigid transform on the inliers and report residuals for every real point.
//
// The final fit needs at least three non-collinear inliers. A run where the
// filter keeps only two pairs, for example three pairs with one outlier, fails
// with DegenerateConfigurationError.
func Register(real, ideal []LabeledPoint, cfg FilterConfig) (*Result, error) {
	pairs, unmatched, err := Resolve(real, ideal)
	if err != nil {
		return nil, fmt.Errorf("resolving correspondences: %w", err)
	}
	for _, w := range unmatched {
		log.Printf("Warning: %s", w)
	}
	if len(pairs) < minimalSample {
		return nil, &InsufficientDataError{Stage: "resolve", Have: len(pairs), Need: minimalSample}
	}

	filtered, err := Filter(pairs, cfg)
	if err != nil {
		return nil, fmt.Errorf("filtering outliers: %w", err)
	}
	log.Printf("Outlier filter: %d/%d pairs kept after %d trials (exhaustive=%v)",
		len(filtered.Inliers), len(pairs), filtered.Trials, filtered.Exhaustive)
	log.Printf("   Inliers: %s", strings.Join(filtered.Inliers.Labels(), ", "))
	for _, rej := range filtered.Rejected {
		log.Printf("   Rejected %s: residual %.3f (%s)", rej.Pair.Label, rej.Residual, rej.Reason)
	}

	transform, err := Align(filtered.Inliers)
	if err != nil {
		return nil, fmt.Errorf("aligning inliers: %w", err)
	}

	result := &Result{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Transform: transform,
		Angle:     transform.Angle(),
		RMSE:      RMSE(transform, filtered.Inliers),
		Pairs:     pairs,
		Mask:      filtered.Mask,
		Rejected:  filtered.Rejected,
		Unmatched: unmatched,
		Trials:    filtered.Trials,
		Report:    Apply(transform, real, IdealIndex(ideal)),
	}
	annotateReport(result)

	log.Printf("Registration %s: rot=%.4f° tx=%.3f ty=%.3f rmse=%.4f",
		result.RunID, result.Angle, transform.T.X, transform.T.Y, result.RMSE)
	return result, nil
}

func annotateReport(r *Result) {
	status := make(map[string]string, len(r.Pairs))
	for i, p := range r.Pairs {
		if r.Mask.Contains(i) {
			status[p.Label] = StatusInlier
		} else {
			status[p.Label] = StatusRejected
		}
	}
	for i := range r.Report.Entries {
		e := &r.Report.Entries[i]
		if s, ok := status[e.Label]; ok {
			e.Status = s
		} else {
			e.Status = StatusUnmatched
		}
	}
}
