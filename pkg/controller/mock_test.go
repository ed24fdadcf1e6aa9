package controller

import (
	"image"
	"time"

	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/recognition"
)

type MockCamera struct {
	OpenFunc    func() error
	AcquireFunc func(timeout time.Duration) (*camera.Frame, error)
	CloseFunc   func() error

	Acquired int
	Released int
	Closed   bool
}

func (m *MockCamera) Open() error {
	if m.OpenFunc != nil {
		return m.OpenFunc()
	}
	return nil
}

func (m *MockCamera) Acquire(timeout time.Duration) (*camera.Frame, error) {
	if m.AcquireFunc != nil {
		frame, err := m.AcquireFunc(timeout)
		if err == nil {
			m.Acquired++
		}
		return frame, err
	}
	m.Acquired++
	return &camera.Frame{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Width: 320, Height: 240, Format: "MJPG"}, nil
}

func (m *MockCamera) Release(frame *camera.Frame) error {
	m.Released++
	return nil
}

func (m *MockCamera) Close() error {
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockEngine reports one region per entry in Faces and extracts that entry.
type MockEngine struct {
	LoadModelsFunc func(modelPath string) error
	DetectFunc     func(frame *camera.Frame) ([]recognition.Region, error)

	Faces  []recognition.Embedding
	Closed bool
}

func (m *MockEngine) LoadModels(modelPath string) error {
	if m.LoadModelsFunc != nil {
		return m.LoadModelsFunc(modelPath)
	}
	return nil
}

func (m *MockEngine) Detect(frame *camera.Frame) ([]recognition.Region, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(frame)
	}
	regions := make([]recognition.Region, len(m.Faces))
	for i := range m.Faces {
		regions[i] = recognition.Region{Rect: image.Rect(i, 0, i+1, 1)}
	}
	return regions, nil
}

func (m *MockEngine) Extract(frame *camera.Frame, region recognition.Region) (recognition.Embedding, error) {
	return m.Faces[region.Rect.Min.X].Clone(), nil
}

func (m *MockEngine) Close() error {
	m.Closed = true
	return nil
}

type MockTrigger struct {
	Pending bool
}

func (m *MockTrigger) Pressed() bool {
	p := m.Pending
	m.Pending = false
	return p
}

func (m *MockTrigger) Requested() bool {
	return m.Pressed()
}

type MockRestarter struct {
	Errors []error
}

func (m *MockRestarter) Restart(err error) {
	m.Errors = append(m.Errors, err)
}
