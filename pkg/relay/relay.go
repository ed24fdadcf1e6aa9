// Package relay drives the lock relay and its status indicator with timed,
// non-retriggerable pulses.
package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrCodeEU/facegate/pkg/clock"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"periph.io/x/conn/v3/gpio"
)

// Output is a digital output line. gpio.PinOut satisfies it.
type Output interface {
	Out(l gpio.Level) error
}

// Driver owns the relay and status outputs. Both always carry the same level.
type Driver struct {
	mu       sync.Mutex
	relay    Output
	status   Output
	clock    clock.Clock
	active   bool
	deadline time.Time
}

// New creates a Driver. Outputs are not touched until Reset or Energize.
func New(relay, status Output, clk clock.Clock) *Driver {
	return &Driver{
		relay:  relay,
		status: status,
		clock:  clk,
	}
}

// Energize starts a pulse of length d. It returns false without side
// effects when a pulse is already running; the deadline is never extended.
func (d *Driver) Energize(duration time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return false, nil
	}

	if err := d.drive(gpio.High); err != nil {
		// best effort, the relay must not stay half on
		_ = d.drive(gpio.Low)
		return false, err
	}

	d.active = true
	d.deadline = d.clock.Now().Add(duration)
	logging.Component("relay").WithField("duration", duration).Info("Relay energized")
	return true, nil
}

// Update ends the pulse once its deadline has passed. It is the only way a
// pulse ends and does nothing while the relay is inactive.
func (d *Driver) Update() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active || d.clock.Now().Before(d.deadline) {
		return nil
	}

	if err := d.drive(gpio.Low); err != nil {
		return err
	}
	d.active = false
	logging.Component("relay").Info("Relay released")
	return nil
}

// Reset forces both outputs low.
func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.drive(gpio.Low); err != nil {
		return err
	}
	d.active = false
	d.deadline = time.Time{}
	return nil
}

// Active reports whether a pulse is running.
func (d *Driver) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Deadline returns the end of the running pulse, or the zero time.
func (d *Driver) Deadline() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return time.Time{}
	}
	return d.deadline
}

func (d *Driver) drive(l gpio.Level) error {
	if err := d.relay.Out(l); err != nil {
		return fmt.Errorf("failed to drive relay %s: %w", l, err)
	}
	if err := d.status.Out(l); err != nil {
		return fmt.Errorf("failed to drive status %s: %w", l, err)
	}
	return nil
}
