// Package board binds the controller's GPIO lines: the relay output, the
// status indicator and the enrollment button.
package board

import (
	"errors"
	"fmt"

	"github.com/MrCodeEU/facegate/pkg/config"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned when a configured pin name is unknown to the host.
var ErrPinNotFound = errors.New("gpio pin not found")

// Pins holds the configured GPIO lines.
type Pins struct {
	Relay     gpio.PinOut
	Status    gpio.PinOut
	Enroll    gpio.PinIn
	ActiveLow bool
}

// Open initializes the host drivers and claims the configured pins.
func Open(cfg config.BoardConfig) (*Pins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	return openPins(cfg, gpioreg.ByName)
}

func openPins(cfg config.BoardConfig, lookup func(name string) gpio.PinIO) (*Pins, error) {
	relay := lookup(cfg.RelayPin)
	if relay == nil {
		return nil, fmt.Errorf("%w: relay %s", ErrPinNotFound, cfg.RelayPin)
	}
	status := lookup(cfg.StatusPin)
	if status == nil {
		return nil, fmt.Errorf("%w: status %s", ErrPinNotFound, cfg.StatusPin)
	}
	enroll := lookup(cfg.EnrollPin)
	if enroll == nil {
		return nil, fmt.Errorf("%w: enroll %s", ErrPinNotFound, cfg.EnrollPin)
	}

	for _, p := range []gpio.PinIO{relay, status} {
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure %s as output: %w", p.Name(), err)
		}
	}

	pull := gpio.PullDown
	if cfg.EnrollActiveLow {
		pull = gpio.PullUp
	}
	if err := enroll.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s as input: %w", enroll.Name(), err)
	}

	logging.Component("board").WithFields(logging.Fields{
		"relay":  relay.Name(),
		"status": status.Name(),
		"enroll": enroll.Name(),
	}).Debug("GPIO configured")

	return &Pins{
		Relay:     relay,
		Status:    status,
		Enroll:    enroll,
		ActiveLow: cfg.EnrollActiveLow,
	}, nil
}

// Close drives both outputs low.
func (p *Pins) Close() error {
	var errs []error
	for _, out := range []gpio.PinOut{p.Relay, p.Status} {
		if err := out.Out(gpio.Low); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
