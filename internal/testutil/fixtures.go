// Package testutil generates synthetic image frames for tests, so no binary
// assets need to be checked in.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// MakeJPEG returns a JPEG-encoded gradient frame of the given size.
func MakeJPEG(width, height int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(width, height), &jpeg.Options{Quality: 90}); err != nil {
		panic(fmt.Sprintf("encode fixture jpeg: %v", err))
	}
	return buf.Bytes()
}

// MakePNG returns a PNG-encoded gradient frame of the given size.
func MakePNG(width, height int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(width, height)); err != nil {
		panic(fmt.Sprintf("encode fixture png: %v", err))
	}
	return buf.Bytes()
}

// gradient draws a deterministic two-axis color ramp so resized outputs
// still carry distinguishable content.
func gradient(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(width, 1)),
				G: uint8(y * 255 / max(height, 1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}
