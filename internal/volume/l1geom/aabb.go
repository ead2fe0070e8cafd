package l1geom

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAABB is returned for boxes that are empty on some axis.
var ErrInvalidAABB = errors.New("invalid aabb")

// NoHit is the near/far value assigned to rays that miss the box.
// Both bounds are set to it, so near >= far and the ray yields no samples.
const NoHit = math.MaxFloat32

// AABB is an axis-aligned box given by its min and max corners.
type AABB struct {
	Min Vec3
	Max Vec3
}

// CubeAABB returns the box [-bound, bound]^3.
func CubeAABB(bound float64) AABB {
	return AABB{
		Min: Vec3{-bound, -bound, -bound},
		Max: Vec3{bound, bound, bound},
	}
}

// Validate checks that the box is non-empty on every axis.
func (b AABB) Validate() error {
	for i := 0; i < 3; i++ {
		if !(b.Min.At(i) < b.Max.At(i)) {
			return fmt.Errorf("%w: axis %d min %.4f must be < max %.4f", ErrInvalidAABB, i, b.Min.At(i), b.Max.At(i))
		}
	}
	return nil
}

// Contains reports whether p lies inside the box (inclusive).
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// NearFar returns the entry and exit distances of r through the box
// using the slab method. near is raised to at least minNear. Rays that
// miss (or whose exit lies before minNear) get near = far = NoHit.
func (b AABB) NearFar(r Ray, minNear float64) (near, far float64) {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)

	for axis := 0; axis < 3; axis++ {
		o := r.Origin.At(axis)
		d := r.Dir.At(axis)
		lo := b.Min.At(axis)
		hi := b.Max.At(axis)

		if math.Abs(d) < 1e-15 {
			// Parallel to this slab: inside or never.
			if o < lo || o > hi {
				return NoHit, NoHit
			}
			continue
		}

		inv := 1 / d
		t0 := (lo - o) * inv
		t1 := (hi - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return NoHit, NoHit
		}
	}

	near = math.Max(tmin, minNear)
	far = tmax
	if far < near {
		return NoHit, NoHit
	}
	return near, far
}

// NearFarBatch computes NearFar for every ray.
func (b AABB) NearFarBatch(rays []Ray, minNear float64) (nears, fars []float64) {
	nears = make([]float64, len(rays))
	fars = make([]float64, len(rays))
	for i, r := range rays {
		nears[i], fars[i] = b.NearFar(r, minNear)
	}
	return nears, fars
}
