// Package recognition provides face detection, embedding extraction and
// matching. Detection and embedding run on dlib via go-face; matching is a
// linear cosine-similarity scan over the enrolled identities.
package recognition

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/logging"
)

// Region is a detected face within a frame.
type Region struct {
	Rect      image.Rectangle
	Landmarks []image.Point

	// dlib computes the descriptor during detection; it is carried with the
	// region until Extract hands it out.
	descriptor    face.Descriptor
	hasDescriptor bool
}

// Detector finds face regions in a frame. An empty result is not an error.
type Detector interface {
	Detect(frame *camera.Frame) ([]Region, error)
}

// Extractor computes the embedding of one detected region.
type Extractor interface {
	Extract(frame *camera.Frame, region Region) (Embedding, error)
}

// FaceEngine is the subset of go-face's Recognizer used here.
type FaceEngine interface {
	Recognize(imgData []byte) ([]face.Face, error)
	Close()
}

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// ErrEmptyFrame is returned when a frame carries no image data.
var ErrEmptyFrame = errors.New("empty frame")

// ErrNoDescriptor is returned when a region was not produced by this engine.
var ErrNoDescriptor = errors.New("region has no descriptor")

// DlibEngine implements Detector and Extractor on top of go-face.
type DlibEngine struct {
	engine    FaceEngine
	factory   func(modelPath string) (FaceEngine, error)
	modelPath string
	maxFaces  int
	loaded    bool
	mu        sync.RWMutex
}

// NewDlibEngine creates an engine that reports at most maxFaces regions per frame.
func NewDlibEngine(maxFaces int) *DlibEngine {
	if maxFaces <= 0 {
		maxFaces = 1
	}
	return &DlibEngine{
		maxFaces: maxFaces,
		factory: func(modelPath string) (FaceEngine, error) {
			rec, err := face.NewRecognizer(modelPath)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	}
}

// LoadModels loads the dlib models from modelPath. The directory must contain
// shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat
// and mmod_human_face_detector.dat.
func (r *DlibEngine) LoadModels(modelPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	logging.Component("recognition").Infof("Loading face models from: %s", modelPath)

	engine, err := r.factory(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	r.engine = engine
	r.modelPath = modelPath
	r.loaded = true
	return nil
}

// IsLoaded returns true if models are loaded.
func (r *DlibEngine) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Close releases the dlib resources.
func (r *DlibEngine) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		r.engine.Close()
		r.engine = nil
	}
	r.loaded = false
	return nil
}

// Detect runs dlib on the frame's JPEG data and returns up to maxFaces regions.
func (r *DlibEngine) Detect(frame *camera.Frame) ([]Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return nil, ErrModelNotLoaded
	}
	if frame == nil || len(frame.Data) == 0 {
		return nil, ErrEmptyFrame
	}

	faces, err := r.engine.Recognize(frame.Data)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	if len(faces) > r.maxFaces {
		faces = faces[:r.maxFaces]
	}

	regions := make([]Region, 0, len(faces))
	for _, f := range faces {
		regions = append(regions, Region{
			Rect:          f.Rectangle,
			Landmarks:     f.Shapes,
			descriptor:    f.Descriptor,
			hasDescriptor: true,
		})
	}

	if len(regions) > 0 {
		logging.Component("recognition").Debugf("Detected %d face(s)", len(regions))
	}
	return regions, nil
}

// Extract returns the region's descriptor as an embedding. The frame is not
// re-read: dlib already computed the descriptor during Detect.
func (r *DlibEngine) Extract(_ *camera.Frame, region Region) (Embedding, error) {
	if !region.hasDescriptor {
		return nil, ErrNoDescriptor
	}
	out := make(Embedding, len(region.descriptor))
	copy(out, region.descriptor[:])
	return out, nil
}

// NewRegion builds a region carrying a precomputed descriptor. It lets
// simulated detectors produce regions that DlibEngine.Extract accepts.
func NewRegion(rect image.Rectangle, descriptor face.Descriptor) Region {
	return Region{Rect: rect, descriptor: descriptor, hasDescriptor: true}
}
