package l1geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Intrinsics holds pinhole focal lengths and principal point, in pixels.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
	Width  int
	Height int
}

// Validate checks focal lengths and principal point are usable.
func (in Intrinsics) Validate() error {
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("focal lengths must be positive, got fx=%f fy=%f", in.Fx, in.Fy)
	}
	if in.Cx <= 0 || in.Cy <= 0 {
		return fmt.Errorf("principal point must be positive, got cx=%f cy=%f", in.Cx, in.Cy)
	}
	return nil
}

// Camera is a camera-to-world rigid transform. The camera looks down +Z
// in its own frame with +X right and +Y down.
type Camera struct {
	pose *mat.Dense // 4x4 camera-to-world
	rot  mat.Matrix // 3x3 view of pose
	t    Vec3
}

// NewCamera builds a Camera from a row-major 4x4 camera-to-world matrix.
// The bottom row must be (0, 0, 0, 1).
func NewCamera(c2w [16]float64) (*Camera, error) {
	if c2w[12] != 0 || c2w[13] != 0 || c2w[14] != 0 || c2w[15] != 1 {
		return nil, fmt.Errorf("camera pose bottom row must be [0 0 0 1], got %v", c2w[12:])
	}
	for i, v := range c2w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("camera pose element %d is not finite", i)
		}
	}
	pose := mat.NewDense(4, 4, c2w[:])
	return &Camera{
		pose: pose,
		rot:  pose.Slice(0, 3, 0, 3),
		t:    Vec3{c2w[3], c2w[7], c2w[11]},
	}, nil
}

// Position returns the camera centre in world coordinates.
func (c *Camera) Position() Vec3 { return c.t }

// Pose returns a copy of the camera-to-world matrix.
func (c *Camera) Pose() *mat.Dense {
	return mat.DenseCopyOf(c.pose)
}

// WorldToCamera maps a world point into the camera frame: R^T (p - t).
func (c *Camera) WorldToCamera(p Vec3) Vec3 {
	d := p.Sub(c.t)
	in := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
	var out mat.VecDense
	out.MulVec(c.rot.T(), in)
	return Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Sees reports whether the world point p falls inside the view frustum
// implied by in, dilated by margin world units on each side.
func (c *Camera) Sees(p Vec3, in Intrinsics, margin float64) bool {
	q := c.WorldToCamera(p)
	if q.Z <= 0 {
		return false
	}
	return math.Abs(q.X) < in.Cx/in.Fx*q.Z+margin &&
		math.Abs(q.Y) < in.Cy/in.Fy*q.Z+margin
}

// Ray returns the world-space ray through pixel (px, py). Pixel centres
// sit at half-integer coordinates.
func (c *Camera) Ray(in Intrinsics, px, py float64) Ray {
	dirCam := mat.NewVecDense(3, []float64{
		(px + 0.5 - in.Cx) / in.Fx,
		(py + 0.5 - in.Cy) / in.Fy,
		1,
	})
	var dir mat.VecDense
	dir.MulVec(c.rot, dirCam)
	return Ray{
		Origin: c.t,
		Dir:    Vec3{dir.AtVec(0), dir.AtVec(1), dir.AtVec(2)}.Normalize(),
	}
}

// LookAt builds a camera at eye facing target. up is the world direction
// that appears upward in the image; it must not be parallel to the view
// direction.
func LookAt(eye, target, up Vec3) (*Camera, error) {
	fwd := target.Sub(eye).Normalize()
	if fwd.Length() == 0 {
		return nil, fmt.Errorf("eye and target coincide at %v", eye)
	}
	right := up.Scale(-1).Cross(fwd)
	if right.Length() < 1e-9 {
		return nil, fmt.Errorf("up %v is parallel to view direction %v", up, fwd)
	}
	right = right.Normalize()
	down := fwd.Cross(right)
	return NewCamera([16]float64{
		right.X, down.X, fwd.X, eye.X,
		right.Y, down.Y, fwd.Y, eye.Y,
		right.Z, down.Z, fwd.Z, eye.Z,
		0, 0, 0, 1,
	})
}

// Orbit returns n cameras evenly spaced on a circle of the given radius
// around the Y axis at height y, all facing the origin.
func Orbit(n int, radius, y float64) ([]*Camera, error) {
	cams := make([]*Camera, 0, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		eye := Vec3{radius * math.Sin(a), y, -radius * math.Cos(a)}
		c, err := LookAt(eye, Vec3{}, Vec3{Y: 1})
		if err != nil {
			return nil, fmt.Errorf("orbit camera %d: %w", i, err)
		}
		cams = append(cams, c)
	}
	return cams, nil
}
