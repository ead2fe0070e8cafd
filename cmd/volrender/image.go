package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

func to8(v float64) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

func colorImage(px []l1geom.Color, w, h int) (*image.RGBA, error) {
	if len(px) != w*h {
		return nil, fmt.Errorf("%d pixels for a %dx%d image", len(px), w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, c := range px {
		img.SetRGBA(i%w, i/w, color.RGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: 255})
	}
	return img, nil
}

func grayImage(px []float64, w, h int) (*image.Gray, error) {
	if len(px) != w*h {
		return nil, fmt.Errorf("%d pixels for a %dx%d image", len(px), w, h)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range px {
		img.SetGray(i%w, i/w, color.Gray{Y: to8(v)})
	}
	return img, nil
}

func writeColorPNG(path string, px []l1geom.Color, w, h int) error {
	img, err := colorImage(px, w, h)
	if err != nil {
		return err
	}
	return savePNG(path, img)
}

func writeGrayPNG(path string, px []float64, w, h int) error {
	img, err := grayImage(px, w, h)
	if err != nil {
		return err
	}
	return savePNG(path, img)
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
