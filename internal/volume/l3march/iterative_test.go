package l3march

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

func TestIterative_NStep(t *testing.T) {
	rays := make([]l1geom.Ray, 100)
	for i := range rays {
		rays[i] = zRay(0, 0)
	}
	nears := make([]float64, len(rays))
	fars := make([]float64, len(rays))
	for i := range rays {
		nears[i], fars[i] = 2, 4
	}
	// Only three rays are live.
	for i := 3; i < len(rays); i++ {
		nears[i], fars[i] = l1geom.NoHit, l1geom.NoHit
	}

	it := testConfig().NewIterative(rays, nears, fars, fullView(t), false, 0)
	assert.Equal(t, []int{0, 1, 2}, it.Alive())
	assert.Equal(t, 8, it.NStep(), "capped at 8")

	all := testConfig().NewIterative(rays[:16], make([]float64, 16), filled(16, 4), fullView(t), false, 0)
	assert.Equal(t, 1, all.NStep())

	half := testConfig().NewIterative(rays[:16], append(filled(2, 2), filled(14, l1geom.NoHit)...), filled(16, 4), fullView(t), false, 0)
	assert.Equal(t, 8, half.NStep())
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestIterative_MatchesTrainMarch(t *testing.T) {
	t.Parallel()
	rays := []l1geom.Ray{zRay(0.1, 0.2), zRay(-0.6, 0.3), xRay(0.5, -0.5), zRay(4, 4)}
	nears, fars := nearFar(rays)
	cfg := testConfig()
	view := makeView(t, func(x, y, z int) bool { return (x+y+z)%3 != 0 })
	ctx := context.Background()

	want, err := cfg.MarchTrain(ctx, rays, nears, fars, view, TrainParams{})
	require.NoError(t, err)

	it := cfg.NewIterative(rays, nears, fars, view, false, 0)
	got := make([][]Sample, len(rays))
	for !it.Done() {
		b, err := it.Step(ctx)
		require.NoError(t, err)
		for k, i := range b.Alive {
			got[i] = append(got[i], b.RaySamples(k)...)
		}
		it.Retire(b, make([]bool, len(b.Alive)))
	}

	for i := range rays {
		assert.Equal(t, want.RaySamples(i), append([]Sample{}, got[i]...), "ray %d", i)
	}
	assert.Empty(t, got[3], "missing ray never marches")
}

func TestIterative_TerminatesWithinStepBudget(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxSteps = 16
	rays := []l1geom.Ray{zRay(0, 0), zRay(0.3, 0.3)}
	nears, fars := nearFar(rays)

	// Never retiring keeps the alive set full, so only the step budget
	// can end the loop.
	it := cfg.NewIterative(rays, nears, fars, fullView(t), false, 0)
	iterations := 0
	for !it.Done() {
		_, err := it.Step(context.Background())
		require.NoError(t, err)
		iterations++
		require.LessOrEqual(t, iterations, cfg.MaxSteps)
	}
	assert.Equal(t, cfg.MaxSteps, iterations)
	assert.Equal(t, cfg.MaxSteps, it.Steps())
	assert.Len(t, it.Alive(), 2)
}

func TestIterative_RetireDeadRays(t *testing.T) {
	t.Parallel()
	rays := []l1geom.Ray{zRay(0, 0), zRay(0.3, 0.3), zRay(-0.3, 0.3)}
	nears, fars := nearFar(rays)
	it := testConfig().NewIterative(rays, nears, fars, fullView(t), false, 0)

	b, err := it.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Alive, 3)
	for k := range b.Alive {
		assert.Equal(t, 1, b.Rays[k].Count)
		assert.False(t, b.Exhausted(k))
	}

	it.Retire(b, []bool{false, true, false})
	assert.Equal(t, []int{0, 2}, it.Alive())

	b, err = it.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, b.Alive)
	it.Retire(b, []bool{true, true})
	assert.True(t, it.Done())

	assert.Panics(t, func() { it.Retire(b, []bool{true}) })
}

func TestIterative_EmptyGridExhaustsRays(t *testing.T) {
	t.Parallel()
	rays := []l1geom.Ray{zRay(0, 0), xRay(0.2, 0.2)}
	nears, fars := nearFar(rays)
	it := testConfig().NewIterative(rays, nears, fars, emptyView(t), false, 0)

	b, err := it.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
	for k := range b.Alive {
		assert.True(t, b.Exhausted(k))
	}
	it.Retire(b, make([]bool, len(b.Alive)))
	assert.True(t, it.Done())
}

func TestIterative_PerturbStartsWithinFirstStep(t *testing.T) {
	t.Parallel()
	rays := []l1geom.Ray{zRay(0, 0)}
	nears, fars := nearFar(rays)
	cfg := testConfig()

	it := cfg.NewIterative(rays, nears, fars, fullView(t), true, 5)
	b, err := it.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())
	st := newStepper(cfg, fullView(t))
	assert.GreaterOrEqual(t, b.Samples[0].T, nears[0])
	assert.Less(t, b.Samples[0].T, nears[0]+st.dt(nears[0]))
}
