// Package encode turns raw captured frames into compact payloads for
// transmission: decode, bound the dimensions, re-encode as lossy JPEG.
package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// Default encoder settings.
const (
	// DefaultMaxDimension bounds the long edge of transmitted frames.
	DefaultMaxDimension = 640
	// DefaultQuality is the JPEG quality used for re-encoding.
	DefaultQuality = 70
)

// MIMEJPEG tags payloads produced by the encoder.
const MIMEJPEG = "image/jpeg"

// ErrDecode is returned when the input bytes are not a recognized image.
// The capture cycle that hit it is abandoned; nothing else is affected.
var ErrDecode = errors.New("unrecognized image data")

// Payload is an encoded frame ready for transmission.
type Payload struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Encoder downsamples and re-encodes frames. It is stateless and safe for
// concurrent use.
type Encoder struct {
	maxDimension int
	quality      int
}

// NewEncoder creates an Encoder. Non-positive arguments fall back to the
// defaults.
func NewEncoder(maxDimension, quality int) *Encoder {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	return &Encoder{maxDimension: maxDimension, quality: quality}
}

// Encode decodes raw image bytes, downsamples so the long edge does not
// exceed the configured maximum (aspect ratio preserved, never upscales),
// and re-encodes as JPEG. Output is deterministic for identical input and
// configuration.
func (e *Encoder) Encode(raw []byte) (Payload, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > e.maxDimension || bounds.Dy() > e.maxDimension {
		img = imaging.Fit(img, e.maxDimension, e.maxDimension, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.quality)); err != nil {
		return Payload{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Payload{
		Data:     buf.Bytes(),
		MIMEType: MIMEJPEG,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}
