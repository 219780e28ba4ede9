package survey

import (
	"fmt"
	"math"
)

// orthonormalTolerance bounds ‖RᵗR − I‖ and |det(R) − 1| for a valid rotation
const orthonormalTolerance = 1e-9

// Identity returns the transform that leaves points unchanged
func Identity() RigidTransform {
	return RigidTransform{R: [2][2]float64{{1, 0}, {0, 1}}}
}

// Rotation creates a rotation transform (angle in radians, around origin)
func Rotation(angle float64) RigidTransform {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return RigidTransform{R: [2][2]float64{{cos, -sin}, {sin, cos}}}
}

// RotationDeg creates a rotation transform (angle in degrees, around origin)
func RotationDeg(degrees float64) RigidTransform {
	return Rotation(degrees * math.Pi / 180.0)
}

// NewRigidTransform creates a rotation + translation transform.
// Rotation is applied first (around origin), then translation.
func NewRigidTransform(degrees, tx, ty float64) RigidTransform {
	t := RotationDeg(degrees)
	t.T = Point{X: tx, Y: ty}
	return t
}

// Apply transforms a point: p' = R*p + T
func (t RigidTransform) Apply(p Point) Point {
	return Point{
		X: t.R[0][0]*p.X + t.R[0][1]*p.Y + t.T.X,
		Y: t.R[1][0]*p.X + t.R[1][1]*p.Y + t.T.Y,
	}
}

// ApplyAll transforms multiple points
func (t RigidTransform) ApplyAll(points []Point) []Point {
	result := make([]Point, len(points))
	for i, p := range points {
		result[i] = t.Apply(p)
	}
	return result
}

// Compose returns the transform equivalent to applying other first, then t
func (t RigidTransform) Compose(other RigidTransform) RigidTransform {
	var r [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = t.R[i][0]*other.R[0][j] + t.R[i][1]*other.R[1][j]
		}
	}
	return RigidTransform{R: r, T: t.Apply(other.T)}
}

// Inverse returns the transform mapping ideal coordinates back to real ones.
// For a rotation the inverse is its transpose.
func (t RigidTransform) Inverse() RigidTransform {
	rt := [2][2]float64{{t.R[0][0], t.R[1][0]}, {t.R[0][1], t.R[1][1]}}
	inv := RigidTransform{R: rt}
	neg := inv.Apply(t.T)
	inv.T = Point{X: -neg.X, Y: -neg.Y}
	return inv
}

// Det returns the determinant of the rotation part
func (t RigidTransform) Det() float64 {
	return t.R[0][0]*t.R[1][1] - t.R[0][1]*t.R[1][0]
}

// Angle returns the rotation angle in degrees, normalized to [0, 360)
func (t RigidTransform) Angle() float64 {
	return NormalizeAngle(math.Atan2(t.R[1][0], t.R[0][0]) * 180 / math.Pi)
}

// OrthonormalityError returns the Frobenius norm of RᵗR − I
func (t RigidTransform) OrthonormalityError() float64 {
	var sum float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			v := t.R[0][i]*t.R[0][j] + t.R[1][i]*t.R[1][j]
			if i == j {
				v -= 1
			}
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// Validate checks that R is a proper rotation within numerical tolerance
func (t RigidTransform) Validate() error {
	for _, v := range []float64{t.R[0][0], t.R[0][1], t.R[1][0], t.R[1][1], t.T.X, t.T.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("transform contains non-finite value")
		}
	}
	if e := t.OrthonormalityError(); e > orthonormalTolerance {
		return fmt.Errorf("rotation is not orthonormal (‖RᵗR − I‖ = %.3g)", e)
	}
	if d := t.Det(); math.Abs(d-1) > orthonormalTolerance {
		return fmt.Errorf("rotation determinant is %.6f, want +1", d)
	}
	return nil
}

// NormalizeAngle normalizes an angle in degrees to the range [0, 360).
func NormalizeAngle(degrees float64) float64 {
	degrees = math.Mod(degrees, 360)
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// Distance calculates Euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Centroid calculates the center of mass of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point{X: sumX / n, Y: sumY / n}
}
