package recognition

import (
	"github.com/Kagami/go-face"
)

type MockFaceEngine struct {
	RecognizeFunc func(data []byte) ([]face.Face, error)
	CloseFunc     func()
}

func (m *MockFaceEngine) Recognize(data []byte) ([]face.Face, error) {
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(data)
	}
	return nil, nil
}

func (m *MockFaceEngine) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

func loadedEngine(maxFaces int, mock *MockFaceEngine) *DlibEngine {
	r := NewDlibEngine(maxFaces)
	r.factory = func(path string) (FaceEngine, error) {
		return mock, nil
	}
	_ = r.LoadModels("dummy")
	return r
}
