// Package camera provides frame capture for the controller.
// Frames are scoped resources: every frame obtained from Acquire must be
// handed back with Release before the next Acquire.
package camera

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frame represents a single captured frame. Data may point into a driver
// buffer and is only valid until the frame is released.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    string // "MJPG", "JPEG"
	Timestamp time.Time

	index uint32
}

// Settings describes the fixed capture format opened at boot.
type Settings struct {
	Device      string
	Width       int
	Height      int
	PixelFormat string
}

// Camera is the capture subsystem used by the control loop.
type Camera interface {
	// Open initializes the device. Failure here is fatal at boot.
	Open() error
	// Acquire waits up to timeout for the next frame. It returns ErrNoFrame
	// when no frame is available in time.
	Acquire(timeout time.Duration) (*Frame, error)
	// Release returns the frame's buffer to the driver.
	Release(frame *Frame) error
	Close() error
}

// ErrCameraNotFound is returned when the camera device is not found.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrFrameNotReleased is returned by Acquire while the previous frame is held.
var ErrFrameNotReleased = errors.New("previous frame not released")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("frame not available")

// ErrUnsupportedFormat is returned for pixel formats the recognizer cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// FourCC returns the V4L2 four character code for a pixel format name.
// Only compressed JPEG formats are accepted because dlib decodes JPEG.
func FourCC(format string) (uint32, error) {
	name := strings.ToUpper(strings.TrimSpace(format))
	switch name {
	case "MJPG", "JPEG":
		return uint32(name[0]) | uint32(name[1])<<8 | uint32(name[2])<<16 | uint32(name[3])<<24, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
