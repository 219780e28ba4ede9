package survey

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	real := []LabeledPoint{
		{Label: "C", X: 0, Y: 10},
		{Label: "A", X: 0, Y: 0},
		{Label: "X", X: 99, Y: 99},
		{Label: "B", X: 10, Y: 0},
	}
	ideal := []LabeledPoint{
		{Label: "A", X: 5, Y: 5},
		{Label: "B", X: 5, Y: 15},
		{Label: "C", X: -5, Y: 5},
		{Label: "D", X: 0, Y: 0},
	}

	pairs, unmatched, err := Resolve(real, ideal)
	require.NoError(t, err)

	want := CorrespondenceSet{
		{Label: "C", Real: Point{0, 10}, Ideal: Point{-5, 5}},
		{Label: "A", Real: Point{0, 0}, Ideal: Point{5, 5}},
		{Label: "B", Real: Point{10, 0}, Ideal: Point{5, 15}},
	}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Errorf("Resolve() pairs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []UnmatchedLabelWarning{{Label: "X", Index: 2}}, unmatched)
}

func TestResolve_Idempotent(t *testing.T) {
	real := []LabeledPoint{{Label: "1", X: 1, Y: 2}, {Label: "2", X: 3, Y: 4}, {Label: "3", X: 5, Y: 7}}
	ideal := []LabeledPoint{{Label: "3", X: 0, Y: 0}, {Label: "1", X: 1, Y: 1}, {Label: "2", X: 2, Y: 2}}

	first, w1, err := Resolve(real, ideal)
	require.NoError(t, err)
	second, w2, err := Resolve(real, ideal)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second Resolve() differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, w1, w2)
}

func TestResolve_DuplicateLabel(t *testing.T) {
	tests := []struct {
		name       string
		real       []LabeledPoint
		ideal      []LabeledPoint
		collection string
	}{
		{
			name:       "real",
			real:       []LabeledPoint{{Label: "V1", X: 0, Y: 0}, {Label: "V2", X: 1, Y: 0}, {Label: "V1", X: 2, Y: 0}},
			ideal:      []LabeledPoint{{Label: "V1"}, {Label: "V2"}},
			collection: "real",
		},
		{
			name:       "ideal",
			real:       []LabeledPoint{{Label: "V1"}, {Label: "V2"}},
			ideal:      []LabeledPoint{{Label: "V1", X: 0, Y: 0}, {Label: "V1", X: 1, Y: 1}},
			collection: "ideal",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, _, err := Resolve(tt.real, tt.ideal)
			require.ErrorIs(t, err, ErrDuplicateLabel)
			assert.Nil(t, pairs)

			var dup *DuplicateLabelError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, "V1", dup.Label)
			assert.Equal(t, tt.collection, dup.Collection)
			assert.Contains(t, err.Error(), `"V1"`)
		})
	}
}

func TestResolve_NoOverlap(t *testing.T) {
	pairs, unmatched, err := Resolve(
		[]LabeledPoint{{Label: "a"}, {Label: "b"}},
		[]LabeledPoint{{Label: "c"}},
	)
	require.NoError(t, err)
	assert.Empty(t, pairs)
	assert.Len(t, unmatched, 2)
}

func TestIdealIndex(t *testing.T) {
	idx := IdealIndex([]LabeledPoint{{Label: "A", X: 1, Y: 2}, {Label: "B", X: 3, Y: 4}})
	assert.Equal(t, map[string]Point{"A": {1, 2}, "B": {3, 4}}, idx)
}

func TestCorrespondenceSet_LabelsAndMask(t *testing.T) {
	pairs := CorrespondenceSet{{Label: "P1"}, {Label: "V2"}, {Label: "P3"}, {Label: "V4"}}
	assert.Equal(t, []string{"P1", "V2", "P3", "V4"}, pairs.Labels())

	mask := InlierMask{0, 2, 3}
	assert.Equal(t, []string{"P1", "P3", "V4"}, pairs.Subset(mask).Labels())

	for idx, want := range map[int]bool{-1: false, 0: true, 1: false, 2: true, 3: true, 4: false} {
		assert.Equal(t, want, mask.Contains(idx), "Contains(%d)", idx)
	}
	assert.False(t, InlierMask(nil).Contains(0))
}
