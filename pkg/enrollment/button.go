package enrollment

import (
	"time"

	"github.com/MrCodeEU/facegate/pkg/clock"
	"periph.io/x/conn/v3/gpio"
)

// Pin is a digital input. gpio.PinIn satisfies it.
type Pin interface {
	Read() gpio.Level
}

// Button debounces the enrollment button. A level must hold for the
// debounce interval before it is accepted.
type Button struct {
	pin       Pin
	activeLow bool
	debounce  time.Duration
	clock     clock.Clock

	stable    bool
	candidate bool
	since     time.Time
}

// NewButton returns a Button reading pin. The button starts released, so a
// button already held at boot produces a press once debounced.
func NewButton(pin Pin, activeLow bool, debounce time.Duration, clk clock.Clock) *Button {
	return &Button{
		pin:       pin,
		activeLow: activeLow,
		debounce:  debounce,
		clock:     clk,
	}
}

// Pressed samples the pin and reports true once per debounced press.
func (b *Button) Pressed() bool {
	down := b.pin.Read() == gpio.High
	if b.activeLow {
		down = !down
	}

	now := b.clock.Now()
	if down != b.candidate {
		b.candidate = down
		b.since = now
	}

	if b.candidate == b.stable || now.Sub(b.since) < b.debounce {
		return false
	}
	b.stable = b.candidate
	return b.stable
}
