// Package testutil provides shared test helpers for the renderer packages.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta fails the test if got and want differ by more than delta.
func AssertInDelta(t testing.TB, name string, got, want, delta float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > delta {
		t.Errorf("%s = %.6f, want %.6f (±%g)", name, got, want, delta)
	}
}

// AssertColorInDelta compares every channel of two colors.
func AssertColorInDelta(t testing.TB, name string, got, want l1geom.Color, delta float64) {
	t.Helper()
	AssertInDelta(t, name+".R", got.R, want.R, delta)
	AssertInDelta(t, name+".G", got.G, want.G, delta)
	AssertInDelta(t, name+".B", got.B, want.B, delta)
}

// Rays returns n parallel rays along +Z starting at z=-3, spread on a
// small square grid in X/Y so that all of them cross the unit cube.
func Rays(n int) []l1geom.Ray {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	rays := make([]l1geom.Ray, n)
	for i := range rays {
		x := (float64(i%side)/float64(max(side-1, 1)) - 0.5) * 0.5
		y := (float64(i/side)/float64(max(side-1, 1)) - 0.5) * 0.5
		rays[i] = l1geom.Ray{
			Origin: l1geom.Vec3{X: x, Y: y, Z: -3},
			Dir:    l1geom.Vec3{Z: 1},
		}
	}
	return rays
}
