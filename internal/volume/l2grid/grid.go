package l2grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/timeutil"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// Untrained marks voxels never seen by any training camera. Such voxels
// are excluded from refresh and from the mean density.
const Untrained float32 = -1

var (
	// ErrNoOccupiedVoxels is returned by a stochastic refresh when a
	// (slice, cascade) block has no voxel with positive density to
	// resample from.
	ErrNoOccupiedVoxels = errors.New("no occupied voxels to resample")
	// ErrNoCameras is returned when marking with an empty camera set.
	ErrNoCameras = errors.New("no cameras to mark untrained regions")
	// ErrSnapshotMismatch is returned when a snapshot's dimensions do not
	// match the grid it is restored into.
	ErrSnapshotMismatch = errors.New("snapshot dimensions do not match grid")
)

// Grid is the spatio-temporal occupancy grid: a density value per
// (time slice, cascade, voxel) and the packed bitfield derived from it.
//
// Voxels within a cascade are addressed by their Morton code. Renders
// read the bitfield through Acquire while Update, MarkUntrained,
// Restore and Reset take the write lock.
type Grid struct {
	cfg      GridConfig
	cascades int
	cells    int // GridSize^3
	clock    timeutil.Clock

	mu          sync.RWMutex
	density     []float32 // [TimeSize][cascades][cells]
	bitfield    []byte    // [TimeSize][cascades*cells/8]
	meanDensity float64
	updates     int
	meanCount   int

	counter stepCounter
}

// New creates a Grid with every voxel at zero density and an empty bitfield.
func New(cfg *GridConfig) (*Grid, error) {
	return NewWithClock(cfg, timeutil.RealClock{})
}

// NewWithClock is New with an injectable clock for snapshot timestamps.
func NewWithClock(cfg *GridConfig, clock timeutil.Clock) (*Grid, error) {
	if cfg == nil {
		return nil, fmt.Errorf("grid config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid config: %w", err)
	}
	cascades := cfg.Cascades()
	cells := cfg.GridSize * cfg.GridSize * cfg.GridSize
	return &Grid{
		cfg:      *cfg,
		cascades: cascades,
		cells:    cells,
		clock:    clock,
		density:  make([]float32, cfg.TimeSize*cascades*cells),
		bitfield: make([]byte, cfg.TimeSize*cascades*cells/8),
	}, nil
}

// Config returns a copy of the grid configuration.
func (g *Grid) Config() GridConfig { return g.cfg }

// Cascades returns the number of cascades.
func (g *Grid) Cascades() int { return g.cascades }

// Enabled reports whether the grid is maintained.
func (g *Grid) Enabled() bool { return g.cfg.Enabled }

// CascadeBound returns the half-extent of cascade level: min(2^level, Bound).
func (g *Grid) CascadeBound(level int) float64 {
	return math.Min(math.Ldexp(1, level), g.cfg.Bound)
}

// SliceIndex maps a normalised time to its slice: clamp(floor(t*T), 0, T-1).
func (g *Grid) SliceIndex(t float64) int {
	return SliceIndex(t, g.cfg.TimeSize)
}

// SliceIndex maps a normalised time in [0,1] onto one of size slices.
func SliceIndex(t float64, size int) int {
	if math.IsNaN(t) {
		return 0
	}
	s := math.Floor(t * float64(size))
	if s < 0 {
		return 0
	}
	if s > float64(size-1) {
		return size - 1
	}
	return int(s)
}

// MeanDensity returns the mean non-sentinel density after the last update.
func (g *Grid) MeanDensity() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.meanDensity
}

// Updates returns how many refreshes have completed.
func (g *Grid) Updates() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.updates
}

// MeanCount returns the running estimate of samples per training render,
// or 0 if none has been reduced yet.
func (g *Grid) MeanCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.meanCount
}

// Threshold returns the occupancy threshold the bitfield was last packed
// with: min(mean density, DensityThresh).
func (g *Grid) Threshold() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.threshold()
}

func (g *Grid) threshold() float64 {
	return math.Min(g.meanDensity, g.cfg.DensityThresh)
}

func (g *Grid) offset(slice, cascade int) int {
	return (slice*g.cascades + cascade) * g.cells
}

func (g *Grid) sliceBits(slice int) []byte {
	n := g.cascades * g.cells / 8
	return g.bitfield[slice*n : (slice+1)*n]
}

// voxelCenter returns the world position of voxel (x,y,z) in cascade level,
// matching the layout used for both marking and refresh.
func (g *Grid) voxelCenter(level int, x, y, z uint32) l1geom.Vec3 {
	cb := g.CascadeBound(level)
	hgs := cb / float64(g.cfg.GridSize)
	extent := cb - hgs
	denom := float64(g.cfg.GridSize - 1)
	return l1geom.Vec3{
		X: (2*float64(x)/denom - 1) * extent,
		Y: (2*float64(y)/denom - 1) * extent,
		Z: (2*float64(z)/denom - 1) * extent,
	}
}

// Acquire returns a read-only view of one time slice's bitfield and holds
// the read lock until release is called. Updates block until every
// outstanding view is released.
func (g *Grid) Acquire(slice int) (view SliceView, release func()) {
	if slice < 0 || slice >= g.cfg.TimeSize {
		panic(fmt.Sprintf("l2grid: slice %d out of range [0, %d)", slice, g.cfg.TimeSize))
	}
	g.mu.RLock()
	view = SliceView{
		bits:     g.sliceBits(slice),
		cascades: g.cascades,
		size:     g.cfg.GridSize,
		cells:    g.cells,
		bound:    g.cfg.Bound,
	}
	var once sync.Once
	return view, func() { once.Do(g.mu.RUnlock) }
}

// Pack rebuilds every slice's bitfield from the density grid using the
// current threshold.
func (g *Grid) Pack(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pack(ctx, float32(g.threshold()))
}

// pack sets bit k of slice t iff density[t][k] > thresh. Caller holds mu.
func (g *Grid) pack(ctx context.Context, thresh float32) error {
	pc := parallel.Config{Workers: g.cfg.Workers}
	return parallel.For(ctx, pc, g.cfg.TimeSize, func(_ context.Context, lo, hi int) error {
		for t := lo; t < hi; t++ {
			packSlice(g.sliceBits(t), g.density[g.offset(t, 0):g.offset(t+1, 0)], thresh)
		}
		return nil
	})
}

func packSlice(bits []byte, density []float32, thresh float32) {
	for i := range bits {
		var b byte
		d := density[i*8 : i*8+8]
		for j := 0; j < 8; j++ {
			if d[j] > thresh {
				b |= 1 << j
			}
		}
		bits[i] = b
	}
}

// Reset zeroes the density grid, bitfield, statistics and step counter.
func (g *Grid) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.density)
	clear(g.bitfield)
	g.meanDensity = 0
	g.updates = 0
	g.meanCount = 0
	g.counter.reset()
	diagf("grid reset: slices=%d cascades=%d size=%d", g.cfg.TimeSize, g.cascades, g.cfg.GridSize)
}

// CrossSection returns a copy of the densities on the z plane of one
// cascade, indexed [y][x].
func (g *Grid) CrossSection(slice, cascade, z int) ([][]float32, error) {
	n := g.cfg.GridSize
	if slice < 0 || slice >= g.cfg.TimeSize || cascade < 0 || cascade >= g.cascades || z < 0 || z >= n {
		return nil, fmt.Errorf("cross section (%d, %d, %d) out of range", slice, cascade, z)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	off := g.offset(slice, cascade)
	out := make([][]float32, n)
	for y := 0; y < n; y++ {
		row := make([]float32, n)
		for x := 0; x < n; x++ {
			row[x] = g.density[off+int(l1geom.Morton3D(uint32(x), uint32(y), uint32(z)))]
		}
		out[y] = row
	}
	return out, nil
}
