package l1geom

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const maxTransformsSize = 16 * 1024 * 1024

// Frame is one posed image from a transforms file.
type Frame struct {
	FilePath string
	Time     float64
	Camera   *Camera
}

// Transforms is a loaded transforms.json: shared intrinsics plus frames.
type Transforms struct {
	Intrinsics Intrinsics
	Frames     []Frame
}

// Cameras returns the camera of every frame, in file order.
func (t *Transforms) Cameras() []*Camera {
	cams := make([]*Camera, len(t.Frames))
	for i, f := range t.Frames {
		cams[i] = f.Camera
	}
	return cams
}

type transformsFile struct {
	FlX         *float64 `json:"fl_x"`
	FlY         *float64 `json:"fl_y"`
	Cx          *float64 `json:"cx"`
	Cy          *float64 `json:"cy"`
	W           *float64 `json:"w"`
	H           *float64 `json:"h"`
	CameraAngle *float64 `json:"camera_angle_x"`
	Frames      []struct {
		FilePath        string      `json:"file_path"`
		Time            *float64    `json:"time"`
		TransformMatrix [][]float64 `json:"transform_matrix"`
	} `json:"frames"`
}

// LoadTransforms reads a transforms.json file. Poses are given in the
// OpenGL convention (camera looks down -Z, +Y up) and are converted to
// the +Z-forward, +Y-down convention used by Camera. Translations are
// multiplied by scale. Frames without a time are spread evenly over [0,1].
func LoadTransforms(path string, scale float64) (*Transforms, error) {
	if filepath.Ext(path) != ".json" {
		return nil, fmt.Errorf("transforms file must have .json extension, got %s", filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat transforms file: %w", err)
	}
	if info.Size() > maxTransformsSize {
		return nil, fmt.Errorf("transforms file too large: %d bytes (max %d)", info.Size(), maxTransformsSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transforms file: %w", err)
	}
	var raw transformsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse transforms JSON: %w", err)
	}
	if scale <= 0 {
		scale = 1
	}

	in, err := raw.intrinsics()
	if err != nil {
		return nil, err
	}

	out := &Transforms{Intrinsics: in, Frames: make([]Frame, 0, len(raw.Frames))}
	for i, f := range raw.Frames {
		if len(f.TransformMatrix) != 4 {
			return nil, fmt.Errorf("frame %d: transform_matrix must have 4 rows, got %d", i, len(f.TransformMatrix))
		}
		var m [16]float64
		for r, row := range f.TransformMatrix {
			if len(row) != 4 {
				return nil, fmt.Errorf("frame %d: transform_matrix row %d must have 4 columns, got %d", i, r, len(row))
			}
			copy(m[r*4:], row)
		}
		// Flip camera Y and Z axes.
		for r := 0; r < 3; r++ {
			m[r*4+1] = -m[r*4+1]
			m[r*4+2] = -m[r*4+2]
			m[r*4+3] *= scale
		}
		cam, err := NewCamera(m)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		ts := 0.0
		if f.Time != nil {
			ts = *f.Time
		} else if len(raw.Frames) > 1 {
			ts = float64(i) / float64(len(raw.Frames)-1)
		}
		out.Frames = append(out.Frames, Frame{FilePath: f.FilePath, Time: ts, Camera: cam})
	}
	return out, nil
}

func (f *transformsFile) intrinsics() (Intrinsics, error) {
	if f.W == nil || f.H == nil {
		return Intrinsics{}, fmt.Errorf("transforms file must specify w and h")
	}
	in := Intrinsics{Width: int(*f.W), Height: int(*f.H)}

	switch {
	case f.FlX != nil:
		in.Fx = *f.FlX
		in.Fy = in.Fx
		if f.FlY != nil {
			in.Fy = *f.FlY
		}
	case f.CameraAngle != nil:
		in.Fx = 0.5 * *f.W / math.Tan(0.5**f.CameraAngle)
		in.Fy = in.Fx
	default:
		return Intrinsics{}, fmt.Errorf("transforms file must specify fl_x or camera_angle_x")
	}

	in.Cx = *f.W / 2
	if f.Cx != nil {
		in.Cx = *f.Cx
	}
	in.Cy = *f.H / 2
	if f.Cy != nil {
		in.Cy = *f.Cy
	}
	return in, in.Validate()
}
