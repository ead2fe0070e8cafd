package l3march

import (
	"testing"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
)

const testGrid = 8

// makeView builds a single-cascade 8^3 view over the unit cube with the
// voxels accepted by occupied set.
func makeView(t *testing.T, occupied func(x, y, z int) bool) l2grid.SliceView {
	t.Helper()
	bits := make([]byte, testGrid*testGrid*testGrid/8)
	for x := 0; x < testGrid; x++ {
		for y := 0; y < testGrid; y++ {
			for z := 0; z < testGrid; z++ {
				if occupied(x, y, z) {
					idx := l1geom.Morton3D(uint32(x), uint32(y), uint32(z))
					bits[idx/8] |= 1 << (idx % 8)
				}
			}
		}
	}
	view, err := l2grid.NewSliceView(bits, 1, testGrid, 1)
	if err != nil {
		t.Fatalf("NewSliceView: %v", err)
	}
	return view
}

func fullView(t *testing.T) l2grid.SliceView {
	return makeView(t, func(int, int, int) bool { return true })
}

func emptyView(t *testing.T) l2grid.SliceView {
	return makeView(t, func(int, int, int) bool { return false })
}

func testConfig() *Config {
	return &Config{DtGamma: 1.0 / 128, MaxSteps: 1024, StepAlign: 128, Workers: 2}
}

func xRay(y, z float64) l1geom.Ray {
	return l1geom.Ray{Origin: l1geom.Vec3{X: -3, Y: y, Z: z}, Dir: l1geom.Vec3{X: 1}}
}

func zRay(x, y float64) l1geom.Ray {
	return l1geom.Ray{Origin: l1geom.Vec3{X: x, Y: y, Z: -3}, Dir: l1geom.Vec3{Z: 1}}
}

func nearFar(rays []l1geom.Ray) ([]float64, []float64) {
	return l1geom.CubeAABB(1).NearFarBatch(rays, 0.05)
}
