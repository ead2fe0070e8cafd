package testutil

import (
	"testing"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertInDelta(t *testing.T) {
	t.Parallel()
	AssertInDelta(t, "value", 0.632, 1-0.368, 1e-9)
	AssertColorInDelta(t, "color", l1geom.Gray(0.5), l1geom.Color{R: 0.5, G: 0.5, B: 0.5000001}, 1e-6)
}

func TestRays(t *testing.T) {
	t.Parallel()
	box := l1geom.CubeAABB(1)
	for _, n := range []int{1, 2, 7, 64} {
		rays := Rays(n)
		if len(rays) != n {
			t.Fatalf("Rays(%d) returned %d rays", n, len(rays))
		}
		for i, r := range rays {
			near, far := box.NearFar(r, 0)
			if near >= far {
				t.Errorf("Rays(%d)[%d] misses the unit cube", n, i)
			}
		}
	}
}
