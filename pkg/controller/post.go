package controller

import (
	"errors"
	"fmt"

	"github.com/MrCodeEU/facegate/pkg/enrollment"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/storage"
)

// ErrCaptureInit is returned when the camera cannot be opened at boot.
var ErrCaptureInit = errors.New("capture subsystem initialization failed")

// ErrDetectorInit is returned when the detection models cannot be loaded.
var ErrDetectorInit = errors.New("face detector initialization failed")

// POST stages.
const (
	StageCapture  = "capture"
	StageDetector = "detector"
)

// BootError is a fatal POST failure.
type BootError struct {
	Stage string
	Err   error
}

func (e *BootError) Error() string {
	return fmt.Sprintf("POST failed at %s: %v", e.Stage, e.Err)
}

func (e *BootError) Unwrap() error {
	return e.Err
}

// Restarter handles fatal POST failures.
type Restarter interface {
	Restart(err error)
}

// Boot runs the power-on self-test. It returns a *BootError when the
// controller cannot operate. A store that cannot be loaded is not fatal:
// the controller continues with an empty, memory-only store.
func (c *Controller) Boot() error {
	log := logging.Component("post")

	if err := c.relay.Reset(); err != nil {
		log.WithError(err).Warn("Failed to drive relay low")
	}

	if err := c.camera.Open(); err != nil {
		return &BootError{Stage: StageCapture, Err: fmt.Errorf("%w: %w", ErrCaptureInit, err)}
	}
	log.Info("Capture subsystem ready")

	if err := c.engine.LoadModels(c.cfg.Recognition.ModelPath); err != nil {
		_ = c.camera.Close()
		return &BootError{Stage: StageDetector, Err: fmt.Errorf("%w: %w", ErrDetectorInit, err)}
	}
	log.Info("Face detector ready")

	c.store = c.loadStore()
	c.enroller = enrollment.NewEnroller(c.store, c.cfg.Enrollment.CapturesRequired)

	log.WithFields(logging.Fields{
		"identities": c.store.Len(),
		"capacity":   c.store.Capacity(),
	}).Info("POST complete")
	return nil
}

func (c *Controller) loadStore() *storage.FaceStore {
	log := logging.Component("post")
	capacity := c.cfg.Storage.MaxIdentities

	if c.openBackend != nil {
		backend, err := c.openBackend()
		if err == nil {
			store, err := storage.Load(backend, capacity)
			if err == nil {
				return store
			}
			_ = backend.Close()
			log.WithError(err).Warn("Face store unreadable, continuing with an empty store")
		} else {
			log.WithError(err).Warn("Face store unavailable, continuing with an empty store")
		}
	}

	store, _ := storage.Load(storage.NewMemoryBackend(), capacity)
	return store
}
