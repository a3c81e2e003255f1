// Package capture provides frame acquisition for the inspection pipeline
// using GoCV (OpenCV).
package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrCameraNotOpen is returned when capturing from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Source produces one still-image byte buffer on demand. Implementations
// return encoded image bytes (typically JPEG); the pipeline owns any further
// decoding and re-encoding.
type Source interface {
	Open() error
	Close() error
	Capture() ([]byte, error)
	IsOpen() bool
}

// cameraSource captures frames from a local camera device using GoCV.
type cameraSource struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
}

// NewCamera creates a Source backed by the camera with the given device ID.
func NewCamera(deviceID int) Source {
	return &cameraSource{deviceID: deviceID}
}

// Open opens the camera device and sets the capture resolution.
func (c *cameraSource) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	cap, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	cap.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	cap.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)

	c.capture = cap
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// Capture reads a single frame and returns it encoded as JPEG.
func (c *cameraSource) Capture() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.capture.Read(&mat); !ok {
		return nil, errors.New("failed to read frame from camera")
	}
	if mat.Empty() {
		return nil, errors.New("captured frame is empty")
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	// Copy out: the native buffer is released on return.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return data, nil
}

// IsOpen returns true if the camera is currently open.
func (c *cameraSource) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
