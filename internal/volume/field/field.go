package field

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// Mode selects which of the two fields is being queried.
type Mode int

const (
	// ModeStatic queries the time-invariant field.
	ModeStatic Mode = iota
	// ModeDynamic queries the time-conditioned field.
	ModeDynamic
)

func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	// ErrMissingSceneFlow is returned when a dynamic query comes back
	// without scene-flow or blending outputs.
	ErrMissingSceneFlow = errors.New("dynamic field returned no scene flow or blend")
	// ErrOutputLength is returned when output lengths disagree with the query.
	ErrOutputLength = errors.New("field output length mismatch")
)

// Query is a batch of sample positions and view directions at one time.
type Query struct {
	Positions []l1geom.Vec3
	Dirs      []l1geom.Vec3
	Time      float64
	Mode      Mode
}

// Len returns the number of samples in the query.
func (q Query) Len() int { return len(q.Positions) }

// Output holds per-sample field values. The dynamic field must fill
// FlowBackward, FlowForward and Blend; Deform is optional.
type Output struct {
	Sigma        []float64
	Color        []l1geom.Color
	FlowBackward []l1geom.Vec3
	FlowForward  []l1geom.Vec3
	Blend        []float64
	Deform       []l1geom.Vec3
}

// Evaluator answers field queries. Implementations must be safe for
// concurrent use.
type Evaluator interface {
	Evaluate(ctx context.Context, q Query) (Output, error)
}

// DensityField returns raw densities at points for a normalised time.
// The occupancy grid updater uses it. It must be safe for concurrent use.
type DensityField interface {
	Density(ctx context.Context, pts []l1geom.Vec3, t float64) ([]float64, error)
}

// Background returns a color per ray given its background-sphere
// coordinates and direction.
type Background interface {
	Background(ctx context.Context, sph [][2]float64, dirs []l1geom.Vec3) ([]l1geom.Color, error)
}

// ValidateOutput checks that out carries n samples for every field the
// mode requires.
func ValidateOutput(mode Mode, n int, out Output) error {
	if len(out.Sigma) != n {
		return fmt.Errorf("%w: sigma has %d values, want %d", ErrOutputLength, len(out.Sigma), n)
	}
	if len(out.Color) != n {
		return fmt.Errorf("%w: color has %d values, want %d", ErrOutputLength, len(out.Color), n)
	}
	if mode != ModeDynamic {
		return nil
	}
	if out.FlowBackward == nil || out.FlowForward == nil || out.Blend == nil {
		return ErrMissingSceneFlow
	}
	if len(out.FlowBackward) != n || len(out.FlowForward) != n || len(out.Blend) != n {
		return fmt.Errorf("%w: scene flow/blend lengths %d/%d/%d, want %d",
			ErrOutputLength, len(out.FlowBackward), len(out.FlowForward), len(out.Blend), n)
	}
	if out.Deform != nil && len(out.Deform) != n {
		return fmt.Errorf("%w: deform has %d values, want %d", ErrOutputLength, len(out.Deform), n)
	}
	return nil
}
