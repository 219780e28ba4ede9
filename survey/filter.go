package survey

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Rejection reason codes
const (
	ReasonResidualExceedsThreshold = "residual_exceeds_threshold"
)

// minimalSample is the number of pairs needed to hypothesize a 2D rigid transform
const minimalSample = 2

// coincidentTolerance is the distance below which two sample points are treated as the same point
const coincidentTolerance = 1e-12

// FilterConfig holds configuration for sample-consensus outlier rejection.
// Distances are in the same units as the input coordinates.
type FilterConfig struct {
	ResidualThreshold float64  // Max residual for a pair to count as inlier
	MinSampleSize     int      // Min pairs required before sampling (at least 2)
	MaxTrials         int      // Hard cap on hypotheses evaluated
	Confidence        float64  // Probability of drawing at least one all-inlier sample
	OutlierFraction   *float64 // Assumed outlier fraction for the trial count; nil means the default
	Seed              *int64   // Nil means seed from the clock
	Workers           int      // Concurrent hypothesis scorers; 0 means GOMAXPROCS
}

const defaultOutlierFraction = 0.5

// DefaultFilterConfig returns sensible defaults for survey data in meters
func DefaultFilterConfig() FilterConfig {
	outliers := defaultOutlierFraction
	return FilterConfig{
		ResidualThreshold: 0.5,
		MinSampleSize:     2,
		MaxTrials:         500,
		Confidence:        0.99,
		OutlierFraction:   &outliers,
	}
}

// Rejection records a pair removed by the filter
type Rejection struct {
	Index    int                `json:"index"`
	Pair     CorrespondencePair `json:"pair"`
	Reason   string             `json:"reason"`
	Residual float64            `json:"residual"`
}

// FilterResult contains the outcome of outlier rejection
type FilterResult struct {
	Inliers    CorrespondenceSet // Retained pairs, in input order
	Mask       InlierMask        // Indices of Inliers in the input set
	Rejected   []Rejection       // Removed pairs, in input order
	Hypothesis RigidTransform    // Best two-point hypothesis
	Trials     int               // Hypotheses evaluated
	Exhaustive bool              // Every pair combination was evaluated
}

// RequiredTrials returns the number of draws needed so that the probability of
// never drawing an all-inlier sample of size sampleSize stays below 1-confidence.
func RequiredTrials(confidence, outlierFraction float64, sampleSize int) int {
	if outlierFraction <= 0 {
		return 1
	}
	if outlierFraction >= 1 || confidence <= 0 {
		return math.MaxInt32
	}
	if confidence >= 1 {
		confidence = 1 - 1e-12
	}
	allInlier := math.Pow(1-outlierFraction, float64(sampleSize))
	if allInlier >= 1 {
		return 1
	}
	n := math.Log(1-confidence) / math.Log(1-allInlier)
	if math.IsInf(n, 0) || n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Ceil(n))
}

// hypothesis is a scored two-point candidate
type hypothesis struct {
	transform   RigidTransform
	inliers     int
	residualSum float64
	valid       bool
}

// Filter removes pairs whose mapping disagrees with the consensus rigid transform.
//
// Each trial solves the rotation and translation that maps one pair of real points
// onto its ideal pair, then counts pairs within ResidualThreshold. The hypothesis with
// the most inliers wins; ties go to the lowest residual sum over inliers, then to the
// earliest trial. Samples with coincident real or ideal points are skipped and do not
// count as trials.
func Filter(pairs CorrespondenceSet, cfg FilterConfig) (*FilterResult, error) {
	minSize := cfg.MinSampleSize
	if minSize < minimalSample {
		minSize = minimalSample
	}
	if len(pairs) < minSize {
		return nil, &InsufficientDataError{Stage: "filter", Have: len(pairs), Need: minSize}
	}
	if cfg.ResidualThreshold <= 0 || math.IsNaN(cfg.ResidualThreshold) {
		return nil, fmt.Errorf("filter: residual threshold must be positive, got %v", cfg.ResidualThreshold)
	}

	trials := trialBudget(cfg)
	samples, exhaustive := drawSamples(pairs, trials, newRNG(cfg.Seed))
	if len(samples) == 0 {
		return nil, &DegenerateConfigurationError{Stage: "filter", Reason: "every sample has coincident real or ideal points"}
	}

	scored, err := scoreSamples(pairs, samples, cfg.ResidualThreshold, cfg.Workers)
	if err != nil {
		return nil, err
	}

	best := -1
	for i, h := range scored {
		if !h.valid {
			continue
		}
		if best < 0 || better(h, scored[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil, &DegenerateConfigurationError{Stage: "filter", Reason: "no valid hypothesis"}
	}

	winner := scored[best].transform
	result := &FilterResult{
		Hypothesis: winner,
		Trials:     len(samples),
		Exhaustive: exhaustive,
	}
	for i, p := range pairs {
		d := Distance(winner.Apply(p.Real), p.Ideal)
		if d <= cfg.ResidualThreshold {
			result.Mask = append(result.Mask, i)
			result.Inliers = append(result.Inliers, p)
			continue
		}
		result.Rejected = append(result.Rejected, Rejection{
			Index:    i,
			Pair:     p,
			Reason:   ReasonResidualExceedsThreshold,
			Residual: d,
		})
	}

	return result, nil
}

// better reports whether a beats b. Equal hypotheses keep the earlier one.
func better(a, b hypothesis) bool {
	if a.inliers != b.inliers {
		return a.inliers > b.inliers
	}
	return a.residualSum < b.residualSum
}

func trialBudget(cfg FilterConfig) int {
	maxTrials := cfg.MaxTrials
	if maxTrials <= 0 {
		maxTrials = DefaultFilterConfig().MaxTrials
	}
	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = DefaultFilterConfig().Confidence
	}
	outliers := defaultOutlierFraction
	if cfg.OutlierFraction != nil {
		outliers = *cfg.OutlierFraction
	}
	trials := RequiredTrials(confidence, outliers, minimalSample)
	if trials > maxTrials {
		trials = maxTrials
	}
	return trials
}

func newRNG(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// drawSamples returns up to trials non-degenerate index pairs. When every
// combination fits in the budget they are enumerated in order instead.
func drawSamples(pairs CorrespondenceSet, trials int, rng *rand.Rand) ([][2]int, bool) {
	n := len(pairs)
	combinations := n * (n - 1) / 2

	if combinations <= trials {
		samples := make([][2]int, 0, combinations)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if !degenerateSample(pairs[i], pairs[j]) {
					samples = append(samples, [2]int{i, j})
				}
			}
		}
		return samples, true
	}

	samples := make([][2]int, 0, trials)
	maxDraws := trials * 20
	for draws := 0; len(samples) < trials && draws < maxDraws; draws++ {
		i := rng.Intn(n)
		j := rng.Intn(n - 1)
		if j >= i {
			j++
		}
		if degenerateSample(pairs[i], pairs[j]) {
			continue
		}
		samples = append(samples, [2]int{i, j})
	}
	return samples, false
}

func degenerateSample(a, b CorrespondencePair) bool {
	return Distance(a.Real, b.Real) < coincidentTolerance || Distance(a.Ideal, b.Ideal) < coincidentTolerance
}

// scoreSamples evaluates every sample concurrently. Each result lands in the
// slot of its sample so the reduction does not depend on completion order.
func scoreSamples(pairs CorrespondenceSet, samples [][2]int, threshold float64, workers int) ([]hypothesis, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	scored := make([]hypothesis, len(samples))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)

	for i, s := range samples {
		g.Go(func() error {
			t, ok := twoPointTransform(pairs[s[0]], pairs[s[1]])
			if !ok {
				return nil
			}
			h := hypothesis{transform: t, valid: true}
			for _, p := range pairs {
				d := Distance(t.Apply(p.Real), p.Ideal)
				if d <= threshold {
					h.inliers++
					h.residualSum += d
				}
			}
			scored[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring hypotheses: %w", err)
	}
	return scored, nil
}

// twoPointTransform solves the rotation aligning the real segment a→b with the
// ideal segment, and the translation mapping the real midpoint onto the ideal midpoint.
func twoPointTransform(a, b CorrespondencePair) (RigidTransform, bool) {
	rx := b.Real.X - a.Real.X
	ry := b.Real.Y - a.Real.Y
	ix := b.Ideal.X - a.Ideal.X
	iy := b.Ideal.Y - a.Ideal.Y

	if math.Hypot(rx, ry) < coincidentTolerance || math.Hypot(ix, iy) < coincidentTolerance {
		return RigidTransform{}, false
	}

	t := Rotation(math.Atan2(iy, ix) - math.Atan2(ry, rx))
	realMid := Point{X: (a.Real.X + b.Real.X) / 2, Y: (a.Real.Y + b.Real.Y) / 2}
	idealMid := Point{X: (a.Ideal.X + b.Ideal.X) / 2, Y: (a.Ideal.Y + b.Ideal.Y) / 2}
	rm := t.Apply(realMid)
	t.T = Point{X: idealMid.X - rm.X, Y: idealMid.Y - rm.Y}
	return t, true
}
