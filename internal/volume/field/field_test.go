package field

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

func TestValidateOutput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := Query{Positions: make([]l1geom.Vec3, 3), Dirs: make([]l1geom.Vec3, 3), Mode: ModeDynamic}

	t.Run("dynamic ok", func(t *testing.T) {
		out, err := Constant{Sigma: 1, Dynamic: true}.Evaluate(ctx, q)
		require.NoError(t, err)
		assert.NoError(t, ValidateOutput(ModeDynamic, 3, out))
	})

	t.Run("static field used as dynamic", func(t *testing.T) {
		out, err := StaticBox{Box: l1geom.CubeAABB(1), Sigma: 1}.Evaluate(ctx, q)
		require.NoError(t, err)
		assert.NoError(t, ValidateOutput(ModeStatic, 3, out))
		assert.True(t, errors.Is(ValidateOutput(ModeDynamic, 3, out), ErrMissingSceneFlow))
	})

	t.Run("empty dynamic batch still needs flow", func(t *testing.T) {
		out, err := Constant{Sigma: 1}.Evaluate(ctx, Query{})
		require.NoError(t, err)
		assert.ErrorIs(t, ValidateOutput(ModeDynamic, 0, out), ErrMissingSceneFlow)
	})

	t.Run("length mismatch", func(t *testing.T) {
		out := Output{Sigma: make([]float64, 2), Color: make([]l1geom.Color, 3)}
		assert.ErrorIs(t, ValidateOutput(ModeStatic, 3, out), ErrOutputLength)
	})

	t.Run("bad deform length", func(t *testing.T) {
		out, err := Constant{Dynamic: true}.Evaluate(ctx, q)
		require.NoError(t, err)
		out.Deform = make([]l1geom.Vec3, 1)
		assert.ErrorIs(t, ValidateOutput(ModeDynamic, 3, out), ErrOutputLength)
	})
}

func TestMovingSphere(t *testing.T) {
	t.Parallel()
	s := MovingSphere{
		Center:    l1geom.Vec3{X: -0.5},
		Velocity:  l1geom.Vec3{X: 1},
		Radius:    0.2,
		Sigma:     10,
		Color:     l1geom.Color{R: 1},
		FrameStep: 0.1,
	}
	ctx := context.Background()
	pts := []l1geom.Vec3{{X: -0.5}, {X: 0.5}}

	d0, err := s.Density(ctx, pts, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0}, d0)

	d1, err := s.Density(ctx, pts, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10}, d1)

	out, err := s.Evaluate(ctx, Query{Positions: pts, Dirs: make([]l1geom.Vec3, 2), Time: 0, Mode: ModeDynamic})
	require.NoError(t, err)
	require.NoError(t, ValidateOutput(ModeDynamic, 2, out))
	assert.InDelta(t, 0.1, out.FlowForward[0].X, 1e-12)
	assert.InDelta(t, -0.1, out.FlowBackward[0].X, 1e-12)
	assert.Equal(t, 1.0, out.Blend[0])
	assert.Equal(t, 0.0, out.Blend[1])
}

func TestSumDensity(t *testing.T) {
	t.Parallel()
	f := Sum{Constant{Sigma: 1}, StaticBox{Box: l1geom.CubeAABB(0.5), Sigma: 2}}
	d, err := f.Density(context.Background(), []l1geom.Vec3{{}, {X: 0.9}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, d)
}

func TestBackgrounds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sph := [][2]float64{{0, -1}, {0, 0}, {0, 1}}

	c, err := ConstantBackground(l1geom.Gray(1)).Background(ctx, sph, nil)
	require.NoError(t, err)
	assert.Equal(t, []l1geom.Color{l1geom.Gray(1), l1geom.Gray(1), l1geom.Gray(1)}, c)

	g, err := SkyGradient{Zenith: l1geom.Color{B: 1}, Horizon: l1geom.Color{R: 1}}.Background(ctx, sph, nil)
	require.NoError(t, err)
	assert.Equal(t, l1geom.Color{B: 1}, g[0])
	assert.Equal(t, l1geom.Color{R: 1}, g[1])
	assert.Equal(t, l1geom.Color{R: 1}, g[2])
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "static", ModeStatic.String())
	assert.Equal(t, "dynamic", ModeDynamic.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
}
