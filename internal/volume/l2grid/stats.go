package l2grid

import (
	"math/bits"

	"gonum.org/v1/gonum/floats"
)

// BlockStats summarises one (time slice, cascade) block.
type BlockStats struct {
	Slice         int
	Cascade       int
	Occupied      int     // set bits
	Untrained     int     // sentinel voxels
	OccupancyRate float64 // Occupied / voxels
	MeanDensity   float64 // over non-sentinel voxels
	MaxDensity    float64
}

// Stats is a point-in-time summary of the whole grid.
type Stats struct {
	TimeSize    int
	Cascades    int
	GridSize    int
	Updates     int
	MeanDensity float64
	Threshold   float64
	MeanCount   int
	Blocks      []BlockStats // slice-major
}

// Block returns the stats for (slice, cascade).
func (s Stats) Block(slice, cascade int) BlockStats {
	return s.Blocks[slice*s.Cascades+cascade]
}

// Stats computes occupancy and density statistics for every block.
func (g *Grid) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		TimeSize:    g.cfg.TimeSize,
		Cascades:    g.cascades,
		GridSize:    g.cfg.GridSize,
		Updates:     g.updates,
		MeanDensity: g.meanDensity,
		Threshold:   g.threshold(),
		MeanCount:   g.meanCount,
		Blocks:      make([]BlockStats, 0, g.cfg.TimeSize*g.cascades),
	}

	vals := make([]float64, 0, g.cells)
	for t := 0; t < g.cfg.TimeSize; t++ {
		sb := g.sliceBits(t)
		for level := 0; level < g.cascades; level++ {
			b := BlockStats{Slice: t, Cascade: level}
			for _, v := range sb[level*g.cells/8 : (level+1)*g.cells/8] {
				b.Occupied += bits.OnesCount8(v)
			}
			b.OccupancyRate = float64(b.Occupied) / float64(g.cells)

			vals = vals[:0]
			off := g.offset(t, level)
			for _, d := range g.density[off : off+g.cells] {
				if d < 0 {
					b.Untrained++
					continue
				}
				vals = append(vals, float64(d))
			}
			if len(vals) > 0 {
				b.MeanDensity = floats.Sum(vals) / float64(len(vals))
				b.MaxDensity = floats.Max(vals)
			}
			s.Blocks = append(s.Blocks, b)
		}
	}
	return s
}
