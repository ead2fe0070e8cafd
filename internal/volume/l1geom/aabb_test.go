package l1geom

import (
	"errors"
	"math"
	"testing"
)

func TestNearFar_AxisAligned(t *testing.T) {
	box := CubeAABB(1)
	r := Ray{Origin: Vec3{0, 0, -3}, Dir: Vec3{0, 0, 1}}

	near, far := box.NearFar(r, 0.05)
	if math.Abs(near-2) > 1e-12 || math.Abs(far-4) > 1e-12 {
		t.Errorf("expected near=2 far=4, got near=%f far=%f", near, far)
	}

	near, _ = box.NearFar(r, 2.5)
	if near != 2.5 {
		t.Errorf("expected near raised to minNear 2.5, got %f", near)
	}
}

func TestNearFar_OriginInside(t *testing.T) {
	box := CubeAABB(1)
	r := Ray{Origin: Vec3{}, Dir: Vec3{1, 0, 0}}

	near, far := box.NearFar(r, 0.05)
	if near != 0.05 {
		t.Errorf("expected near clamped to 0.05, got %f", near)
	}
	if math.Abs(far-1) > 1e-12 {
		t.Errorf("expected far=1, got %f", far)
	}
}

func TestNearFar_Miss(t *testing.T) {
	box := CubeAABB(1)
	tests := []struct {
		name string
		ray  Ray
	}{
		{"offset parallel", Ray{Origin: Vec3{5, 5, -3}, Dir: Vec3{0, 0, 1}}},
		{"diagonal miss", Ray{Origin: Vec3{-3, 2.5, 0}, Dir: Vec3{1, 0.01, 0}}},
		{"pointing away", Ray{Origin: Vec3{0, 0, -3}, Dir: Vec3{0, 0, -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			near, far := box.NearFar(tt.ray, 0)
			if near < far {
				t.Errorf("expected degenerate interval, got near=%f far=%f", near, far)
			}
		})
	}
}

func TestNearFar_Diagonal(t *testing.T) {
	box := CubeAABB(2)
	r := Ray{Origin: Vec3{-4, -4, -4}, Dir: Vec3{1, 1, 1}.Normalize()}
	near, far := box.NearFar(r, 0)

	wantNear := 2 * math.Sqrt(3)
	wantFar := 6 * math.Sqrt(3)
	if math.Abs(near-wantNear) > 1e-9 || math.Abs(far-wantFar) > 1e-9 {
		t.Errorf("expected near=%f far=%f, got near=%f far=%f", wantNear, wantFar, near, far)
	}
}

func TestAABBValidate(t *testing.T) {
	if err := CubeAABB(1).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := AABB{Min: Vec3{0, 0, 0}, Max: Vec3{1, 0, 1}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAABB) {
		t.Errorf("expected ErrInvalidAABB for flat box, got %v", err)
	}
}

func TestNearFarBatch(t *testing.T) {
	box := CubeAABB(1)
	rays := []Ray{
		{Origin: Vec3{0, 0, -3}, Dir: Vec3{0, 0, 1}},
		{Origin: Vec3{5, 5, -3}, Dir: Vec3{0, 0, 1}},
	}
	nears, fars := box.NearFarBatch(rays, 0)
	if len(nears) != 2 || len(fars) != 2 {
		t.Fatalf("expected 2 results, got %d/%d", len(nears), len(fars))
	}
	if nears[0] >= fars[0] {
		t.Errorf("ray 0 should hit")
	}
	if nears[1] < fars[1] {
		t.Errorf("ray 1 should miss")
	}
}
