package survey

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// collinearTolerance is the smallest relative spread across the main axis
// accepted before points are treated as collinear. The singular values of the
// cross-covariance grow with the squared spread, so the test is on sqrt(σ2/σ1).
const collinearTolerance = 1e-7

// Align computes the least-squares rigid transform mapping real points onto
// ideal points using the Kabsch algorithm.
//
// H = (centered ideal)ᵗ·(centered real) is decomposed as U·Σ·Vᵗ and R = U·Vᵗ.
// When det(R) < 0 the last column of V is negated so R is a proper rotation.
// The translation is centroid(ideal) − R·centroid(real).
func Align(pairs CorrespondenceSet) (RigidTransform, error) {
	if len(pairs) < 2 {
		return RigidTransform{}, &InsufficientDataError{Stage: "align", Have: len(pairs), Need: 2}
	}

	realPts := pairs.RealPoints()
	idealPts := pairs.IdealPoints()
	realCentroid := Centroid(realPts)
	idealCentroid := Centroid(idealPts)

	// Cross-covariance H[i][j] = Σ ideal_i * real_j over centered coordinates
	var h11, h12, h21, h22 float64
	for k := range realPts {
		rx := realPts[k].X - realCentroid.X
		ry := realPts[k].Y - realCentroid.Y
		ix := idealPts[k].X - idealCentroid.X
		iy := idealPts[k].Y - idealCentroid.Y

		h11 += ix * rx
		h12 += ix * ry
		h21 += iy * rx
		h22 += iy * ry
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(2, 2, []float64{h11, h12, h21, h22}), mat.SVDFull); !ok {
		return RigidTransform{}, &DegenerateConfigurationError{Stage: "align", Reason: "SVD of cross-covariance did not converge"}
	}

	sigma := svd.Values(nil)
	if sigma[0] <= 0 || math.IsNaN(sigma[0]) {
		return RigidTransform{}, &DegenerateConfigurationError{Stage: "align", Reason: "points have zero spread"}
	}
	if math.Sqrt(sigma[1]/sigma[0]) <= collinearTolerance {
		return RigidTransform{}, &DegenerateConfigurationError{
			Stage:  "align",
			Reason: fmt.Sprintf("points are collinear (singular values %.3g, %.3g)", sigma[0], sigma[1]),
		}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())

	if mat.Det(&r) < 0 {
		// Reflection: flip the last column of V and recompute
		v.Set(0, 1, -v.At(0, 1))
		v.Set(1, 1, -v.At(1, 1))
		r.Mul(&u, v.T())
	}

	t := RigidTransform{
		R: [2][2]float64{
			{r.At(0, 0), r.At(0, 1)},
			{r.At(1, 0), r.At(1, 1)},
		},
	}
	rc := t.Apply(realCentroid)
	t.T = Point{X: idealCentroid.X - rc.X, Y: idealCentroid.Y - rc.Y}

	if err := t.Validate(); err != nil {
		return RigidTransform{}, fmt.Errorf("align: %w", err)
	}

	return t, nil
}

// RMSE returns the root-mean-square residual of t over pairs
func RMSE(t RigidTransform, pairs CorrespondenceSet) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var sumSq float64
	for _, p := range pairs {
		d := Distance(t.Apply(p.Real), p.Ideal)
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(pairs)))
}
