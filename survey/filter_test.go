package survey

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func seed(v int64) *int64 { return &v }

func fraction(v float64) *float64 { return &v }

// contaminated returns 20 pairs following want, with every fifth pair moved far away
func contaminated(want RigidTransform) (CorrespondenceSet, map[int]bool) {
	pairs := make(CorrespondenceSet, 0, 20)
	outliers := make(map[int]bool)
	for i := 0; i < 20; i++ {
		real := Point{X: float64(i%5) * 17.3, Y: float64(i/5)*11.9 + float64(i%3)}
		ideal := want.Apply(real)
		if i%5 == 3 {
			ideal.X += 40 + float64(i)
			ideal.Y -= 25 + 2*float64(i)
			outliers[i] = true
		}
		pairs = append(pairs, CorrespondencePair{Label: fmt.Sprintf("P%d", i), Real: real, Ideal: ideal})
	}
	return pairs, outliers
}

func TestRequiredTrials(t *testing.T) {
	tests := []struct {
		confidence, outliers float64
		size, want           int
	}{
		{0.99, 0.5, 2, 17},
		{0.99, 0.2, 2, 5},
		{0.99, 0, 2, 1},
		{0.95, 0.5, 2, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredTrials(tt.confidence, tt.outliers, tt.size),
			"RequiredTrials(%v, %v, %d)", tt.confidence, tt.outliers, tt.size)
	}
	assert.Greater(t, RequiredTrials(0.99, 0.99, 2), 1000)
}

func TestTrialBudget_OutlierFraction(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.OutlierFraction = nil
	assert.Equal(t, 17, trialBudget(cfg), "unset fraction uses 0.5")

	cfg.OutlierFraction = fraction(0)
	assert.Equal(t, 1, trialBudget(cfg), "explicit zero trusts every pair")

	cfg.OutlierFraction = fraction(0.2)
	assert.Equal(t, 5, trialBudget(cfg))
}

func TestFilter_OutlierRobustness(t *testing.T) {
	want := NewRigidTransform(37, 120, -45)
	pairs, outliers := contaminated(want)

	cfg := DefaultFilterConfig()
	cfg.Seed = seed(42)

	result, err := Filter(pairs, cfg)
	require.NoError(t, err)
	assert.False(t, result.Exhaustive)
	assert.Equal(t, 17, result.Trials)

	require.Len(t, result.Inliers, 16)
	for _, idx := range result.Mask {
		assert.False(t, outliers[idx], "outlier %d kept", idx)
	}
	require.Len(t, result.Rejected, 4)
	for _, rej := range result.Rejected {
		assert.True(t, outliers[rej.Index], "inlier %d rejected", rej.Index)
		assert.Equal(t, ReasonResidualExceedsThreshold, rej.Reason)
		assert.Greater(t, rej.Residual, cfg.ResidualThreshold)
		assert.Equal(t, pairs[rej.Index], rej.Pair)
	}

	got, err := Align(result.Inliers)
	require.NoError(t, err)
	assertTransformNear(t, want, got, 1e-9)
}

func TestFilter_DeterministicAcrossWorkers(t *testing.T) {
	pairs, _ := contaminated(NewRigidTransform(-12, 3, 4))

	cfg := DefaultFilterConfig()
	cfg.Seed = seed(7)
	cfg.MaxTrials = 60
	cfg.OutlierFraction = fraction(0.9) // forces the MaxTrials cap

	cfg.Workers = 1
	serial, err := Filter(pairs, cfg)
	require.NoError(t, err)
	assert.Equal(t, 60, serial.Trials)

	for _, workers := range []int{2, 8, 64} {
		cfg.Workers = workers
		parallel, err := Filter(pairs, cfg)
		require.NoError(t, err)
		if diff := cmp.Diff(serial, parallel); diff != "" {
			t.Errorf("workers=%d result mismatch (-serial +parallel):\n%s", workers, diff)
		}
	}
}

func TestFilter_SameSeedSameSamples(t *testing.T) {
	pairs, _ := contaminated(Identity())
	rngA := newRNG(seed(99))
	rngB := newRNG(seed(99))
	a, _ := drawSamples(pairs, 30, rngA)
	b, _ := drawSamples(pairs, 30, rngB)
	assert.Equal(t, a, b)
}

func TestFilter_Exhaustive(t *testing.T) {
	want := NewRigidTransform(45, 1, 1)
	real := []Point{{0, 0}, {4, 0}, {4, 3}, {0, 3}, {2, 8}}
	pairs := pairsFrom(real, want)

	result, err := Filter(pairs, FilterConfig{ResidualThreshold: 0.01})
	require.NoError(t, err)
	assert.True(t, result.Exhaustive)
	assert.Equal(t, 10, result.Trials)
	assert.Equal(t, InlierMask{0, 1, 2, 3, 4}, result.Mask)
	assert.Empty(t, result.Rejected)
}

func TestFilter_DegenerateSamplesSkipped(t *testing.T) {
	// B duplicates A's real position; the (A,B) sample is skipped
	pairs := CorrespondenceSet{
		{Label: "A", Real: Point{0, 0}, Ideal: Point{0, 0}},
		{Label: "B", Real: Point{0, 0}, Ideal: Point{1, 1}},
		{Label: "C", Real: Point{5, 0}, Ideal: Point{5, 0}},
	}
	result, err := Filter(pairs, FilterConfig{ResidualThreshold: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Trials)
}

func TestFilter_AllDegenerate(t *testing.T) {
	pairs := CorrespondenceSet{
		{Label: "A", Real: Point{1, 1}, Ideal: Point{0, 0}},
		{Label: "B", Real: Point{1, 1}, Ideal: Point{2, 0}},
		{Label: "C", Real: Point{1, 1}, Ideal: Point{0, 2}},
	}
	_, err := Filter(pairs, FilterConfig{ResidualThreshold: 0.5})
	assert.ErrorIs(t, err, ErrDegenerateConfiguration)
}

func TestFilter_InsufficientData(t *testing.T) {
	one := CorrespondenceSet{{Label: "A", Real: Point{0, 0}, Ideal: Point{1, 1}}}
	_, err := Filter(one, DefaultFilterConfig())
	require.ErrorIs(t, err, ErrInsufficientData)

	pairs := pairsFrom([]Point{{0, 0}, {1, 0}, {0, 1}}, Identity())
	cfg := DefaultFilterConfig()
	cfg.MinSampleSize = 4
	_, err = Filter(pairs, cfg)

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "filter", insufficient.Stage)
	assert.Equal(t, 3, insufficient.Have)
	assert.Equal(t, 4, insufficient.Need)
}

func TestFilter_InvalidThreshold(t *testing.T) {
	pairs := pairsFrom([]Point{{0, 0}, {1, 0}, {0, 1}}, Identity())
	_, err := Filter(pairs, FilterConfig{ResidualThreshold: 0})
	assert.Error(t, err)
	_, err = Filter(pairs, FilterConfig{ResidualThreshold: -1})
	assert.Error(t, err)
}

func TestBetter(t *testing.T) {
	more := hypothesis{inliers: 5, residualSum: 3, valid: true}
	fewer := hypothesis{inliers: 4, residualSum: 0.1, valid: true}
	tight := hypothesis{inliers: 5, residualSum: 1, valid: true}

	assert.True(t, better(more, fewer))
	assert.False(t, better(fewer, more))
	assert.True(t, better(tight, more), "ties go to the lower residual sum")
	assert.False(t, better(more, more), "equal hypotheses keep the earlier one")
}

func TestTwoPointTransform(t *testing.T) {
	want := NewRigidTransform(63, -4, 9)
	a := CorrespondencePair{Real: Point{1, 2}, Ideal: want.Apply(Point{1, 2})}
	b := CorrespondencePair{Real: Point{-6, 5}, Ideal: want.Apply(Point{-6, 5})}

	got, ok := twoPointTransform(a, b)
	require.True(t, ok)
	assertTransformNear(t, want, got, 1e-9)

	_, ok = twoPointTransform(a, a)
	assert.False(t, ok)
}

func TestFilter_PropertyPartition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 25).Draw(t, "n")
		pairs := make(CorrespondenceSet, n)
		for i := range pairs {
			pairs[i] = CorrespondencePair{
				Label: fmt.Sprintf("P%d", i),
				Real:  Point{X: rapid.Float64Range(-50, 50).Draw(t, "rx"), Y: rapid.Float64Range(-50, 50).Draw(t, "ry")},
				Ideal: Point{X: rapid.Float64Range(-50, 50).Draw(t, "ix"), Y: rapid.Float64Range(-50, 50).Draw(t, "iy")},
			}
		}
		cfg := DefaultFilterConfig()
		cfg.ResidualThreshold = rapid.Float64Range(0.01, 20).Draw(t, "threshold")
		cfg.Seed = seed(rapid.Int64().Draw(t, "seed"))

		result, err := Filter(pairs, cfg)
		if err != nil {
			return
		}

		seen := make(map[int]bool)
		for k, idx := range result.Mask {
			if result.Inliers[k] != pairs[idx] {
				t.Fatalf("inlier %d is not input pair %d", k, idx)
			}
			seen[idx] = true
		}
		for _, rej := range result.Rejected {
			if seen[rej.Index] {
				t.Fatalf("pair %d both kept and rejected", rej.Index)
			}
			seen[rej.Index] = true
		}
		if len(seen) != n {
			t.Fatalf("mask and rejections cover %d of %d pairs", len(seen), n)
		}
	})
}
