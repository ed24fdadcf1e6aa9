//go:build !linux

package camera

import "time"

// V4L2 is only available on Linux. Elsewhere Open reports the device missing.
type V4L2 struct {
	settings Settings
}

func NewV4L2(settings Settings) *V4L2 {
	return &V4L2{settings: settings}
}

func (c *V4L2) Open() error {
	return ErrCameraNotFound
}

func (c *V4L2) Acquire(timeout time.Duration) (*Frame, error) {
	return nil, ErrCameraNotOpen
}

func (c *V4L2) Release(frame *Frame) error {
	return nil
}

func (c *V4L2) Close() error {
	return nil
}
