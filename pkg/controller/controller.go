// Package controller runs the access controller: the power-on self-test
// followed by the fixed control cycle that feeds frames to enrollment or
// recognition and times the relay.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/config"
	"github.com/MrCodeEU/facegate/pkg/enrollment"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/recognition"
	"github.com/MrCodeEU/facegate/pkg/storage"
)

// Engine detects faces and extracts their embeddings.
type Engine interface {
	recognition.Detector
	recognition.Extractor
	LoadModels(modelPath string) error
	Close() error
}

// Relay is the timed relay output.
type Relay interface {
	Energize(d time.Duration) (bool, error)
	Update() error
	Reset() error
	Active() bool
}

// Trigger reports an enrollment request once per event without blocking.
type Trigger interface {
	Pressed() bool
}

// Requests reports enrollment requests from the control channel.
type Requests interface {
	Requested() bool
}

// Deps are the collaborators a Controller drives. Button and Control may be nil.
type Deps struct {
	Camera      camera.Camera
	Engine      Engine
	Relay       Relay
	Button      Trigger
	Control     Requests
	OpenBackend func() (storage.Backend, error)
	Restarter   Restarter
}

// Controller holds all mutable controller state. It is owned by the
// goroutine calling Run.
type Controller struct {
	cfg         *config.Config
	camera      camera.Camera
	engine      Engine
	relay       Relay
	button      Trigger
	control     Requests
	openBackend func() (storage.Backend, error)
	restarter   Restarter

	store    *storage.FaceStore
	enroller *enrollment.Enroller
}

// New creates a Controller. Boot must succeed before Cycle is called.
func New(cfg *config.Config, deps Deps) *Controller {
	return &Controller{
		cfg:         cfg,
		camera:      deps.Camera,
		engine:      deps.Engine,
		relay:       deps.Relay,
		button:      deps.Button,
		control:     deps.Control,
		openBackend: deps.OpenBackend,
		restarter:   deps.Restarter,
	}
}

// Run boots the controller and repeats the control cycle until ctx is
// cancelled. A fatal POST failure is handed to the Restarter and returned.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Boot(); err != nil {
		logging.WithError(err).Error("POST failed")
		if c.restarter != nil {
			c.restarter.Restart(err)
		}
		return err
	}
	defer c.Shutdown()

	interval := c.cfg.LoopInterval()
	logging.Infof("Control loop started")

	for {
		select {
		case <-ctx.Done():
			logging.Infof("Control loop stopped")
			return nil
		default:
		}

		if err := c.Cycle(); err != nil {
			logging.WithError(err).Error("Control cycle failed")
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
	}
}

// Cycle runs one control cycle: relay timing, trigger sampling, frame
// acquisition, detection, then enrollment or recognition. The frame is
// released on every path.
func (c *Controller) Cycle() error {
	if c.enroller == nil {
		return errors.New("controller not booted")
	}

	if err := c.relay.Update(); err != nil {
		logging.Component("relay").WithError(err).Error("Failed to release relay")
	}

	triggered := c.triggered()

	embeddings, err := c.capture()
	if err != nil && !errors.Is(err, camera.ErrNoFrame) {
		logging.Component("camera").WithError(err).Warn("Frame skipped")
	}

	recognize, err := c.enroller.Step(triggered, embeddings)
	if err != nil {
		return err
	}
	if recognize {
		return c.recognize(embeddings)
	}
	return nil
}

// triggered samples both trigger sources. Both are read every cycle so a
// request on one does not linger on the other.
func (c *Controller) triggered() bool {
	pressed := c.button != nil && c.button.Pressed()
	requested := c.control != nil && c.control.Requested()
	return pressed || requested
}

// capture acquires a frame and returns one embedding per usable face.
func (c *Controller) capture() (embeddings []recognition.Embedding, err error) {
	frame, err := c.camera.Acquire(c.cfg.FrameTimeout())
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := c.camera.Release(frame); rerr != nil && err == nil {
			err = fmt.Errorf("failed to release frame: %w", rerr)
		}
	}()

	regions, err := c.engine.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	for _, region := range regions {
		emb, err := c.engine.Extract(frame, region)
		if err != nil {
			logging.Component("match").WithError(err).Debug("Skipping face without embedding")
			continue
		}
		embeddings = append(embeddings, emb)
	}
	return embeddings, nil
}

// Store returns the face store loaded at boot.
func (c *Controller) Store() *storage.FaceStore {
	return c.store
}

// Enrolling reports whether an enrollment session is open.
func (c *Controller) Enrolling() bool {
	return c.enroller != nil && c.enroller.Enrolling()
}

// Shutdown locks the barrier and releases the camera, engine and store.
func (c *Controller) Shutdown() {
	if err := c.relay.Reset(); err != nil {
		logging.WithError(err).Warn("Failed to drive relay low")
	}
	if err := c.camera.Close(); err != nil {
		logging.WithError(err).Warn("Failed to close camera")
	}
	if err := c.engine.Close(); err != nil {
		logging.WithError(err).Warn("Failed to close detector")
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			logging.WithError(err).Warn("Failed to close face store")
		}
	}
}
