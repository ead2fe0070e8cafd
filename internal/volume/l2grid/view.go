package l2grid

import (
	"fmt"
	"math/bits"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// SliceView is a read-only window onto one time slice of the bitfield.
// It has no mutators. Views obtained from Grid.Acquire are only valid
// until released.
type SliceView struct {
	bits     []byte
	cascades int
	size     int
	cells    int
	bound    float64
}

// NewSliceView wraps a packed bitfield of cascades*size^3 bits. The slice
// is not copied.
func NewSliceView(packed []byte, cascades, size int, bound float64) (SliceView, error) {
	if size < 2 || size > l1geom.MaxMortonAxis+1 || size&(size-1) != 0 {
		return SliceView{}, fmt.Errorf("grid size must be a power of two in [2, %d], got %d", l1geom.MaxMortonAxis+1, size)
	}
	if cascades < 1 {
		return SliceView{}, fmt.Errorf("cascades must be >= 1, got %d", cascades)
	}
	cells := size * size * size
	if len(packed) != cascades*cells/8 {
		return SliceView{}, fmt.Errorf("bitfield has %d bytes, want %d", len(packed), cascades*cells/8)
	}
	return SliceView{bits: packed, cascades: cascades, size: size, cells: cells, bound: bound}, nil
}

// Cascades returns the number of cascades in the view.
func (v SliceView) Cascades() int { return v.cascades }

// GridSize returns the per-axis resolution.
func (v SliceView) GridSize() int { return v.size }

// Bound returns the scene half-extent.
func (v SliceView) Bound() float64 { return v.bound }

// Occupied reports whether voxel (x,y,z) of cascade level is set.
// Coordinates must already be clamped to [0, GridSize).
func (v SliceView) Occupied(level, x, y, z int) bool {
	idx := level*v.cells + int(l1geom.Morton3D(uint32(x), uint32(y), uint32(z)))
	return v.bits[idx>>3]&(1<<(idx&7)) != 0
}

// OccupiedCount returns the number of set bits in cascade level.
func (v SliceView) OccupiedCount(level int) int {
	n := 0
	for _, b := range v.bits[level*v.cells/8 : (level+1)*v.cells/8] {
		n += bits.OnesCount8(b)
	}
	return n
}
