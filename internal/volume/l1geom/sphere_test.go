package l1geom

import (
	"math"
	"testing"
)

func TestSphFromRay(t *testing.T) {
	tests := []struct {
		name string
		ray  Ray
		want [2]float64
	}{
		{"equator +x", Ray{Origin: Vec3{}, Dir: Vec3{1, 0, 0}}, [2]float64{0, 0}},
		{"north pole", Ray{Origin: Vec3{}, Dir: Vec3{0, 0, 1}}, [2]float64{0, -1}},
		{"south pole", Ray{Origin: Vec3{}, Dir: Vec3{0, 0, -1}}, [2]float64{0, 1}},
		{"equator +y", Ray{Origin: Vec3{}, Dir: Vec3{0, 3, 0}}, [2]float64{0.5, 0}},
		{"offset origin", Ray{Origin: Vec3{0, 0, -1}, Dir: Vec3{0, 0, 1}}, [2]float64{0, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SphFromRay(tt.ray, 4)
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("SphFromRay = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestSphFromRay_Range(t *testing.T) {
	for i := 0; i < 64; i++ {
		a := float64(i) * 0.37
		r := Ray{Origin: Vec3{0.3, -0.2, 0.1}, Dir: Vec3{math.Cos(a), math.Sin(a), math.Sin(2 * a)}}
		uv := SphFromRay(r, 2)
		if uv[0] < -1 || uv[0] > 1 || uv[1] < -1 || uv[1] > 1 {
			t.Fatalf("coords out of range: %v", uv)
		}
	}
}
