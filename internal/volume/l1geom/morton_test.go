package l1geom

import "testing"

func TestMorton3D_UnitAxes(t *testing.T) {
	tests := []struct {
		x, y, z uint32
		want    uint32
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{0, 1, 0, 2},
		{0, 0, 1, 4},
		{1, 1, 1, 7},
		{2, 0, 0, 8},
	}
	for _, tt := range tests {
		if got := Morton3D(tt.x, tt.y, tt.z); got != tt.want {
			t.Errorf("Morton3D(%d,%d,%d) = %d, want %d", tt.x, tt.y, tt.z, got, tt.want)
		}
	}
}

func TestMorton3D_BijectiveOnGrid(t *testing.T) {
	const g = 8
	seen := make([]bool, g*g*g)
	for x := uint32(0); x < g; x++ {
		for y := uint32(0); y < g; y++ {
			for z := uint32(0); z < g; z++ {
				code := Morton3D(x, y, z)
				if code >= g*g*g {
					t.Fatalf("code %d out of range for (%d,%d,%d)", code, x, y, z)
				}
				if seen[code] {
					t.Fatalf("duplicate code %d", code)
				}
				seen[code] = true

				ix, iy, iz := Morton3DInvert(code)
				if ix != x || iy != y || iz != z {
					t.Fatalf("invert(%d) = (%d,%d,%d), want (%d,%d,%d)", code, ix, iy, iz, x, y, z)
				}
			}
		}
	}
}

func TestMorton3D_MaxAxis(t *testing.T) {
	code := Morton3D(MaxMortonAxis, MaxMortonAxis, MaxMortonAxis)
	if code != 1<<30-1 {
		t.Errorf("expected all 30 bits set, got %b", code)
	}
}
