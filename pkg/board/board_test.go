package board

import (
	"errors"
	"testing"

	"github.com/MrCodeEU/facegate/pkg/config"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func testPins() map[string]*gpiotest.Pin {
	return map[string]*gpiotest.Pin{
		"GPIO12": {N: "GPIO12", Num: 12, L: gpio.High},
		"GPIO26": {N: "GPIO26", Num: 26, L: gpio.High},
		"GPIO13": {N: "GPIO13", Num: 13},
	}
}

func lookupIn(pins map[string]*gpiotest.Pin) func(string) gpio.PinIO {
	return func(name string) gpio.PinIO {
		if p, ok := pins[name]; ok {
			return p
		}
		return nil
	}
}

func TestOpenPins(t *testing.T) {
	cfg := config.DefaultConfig().Board
	pins := testPins()

	p, err := openPins(cfg, lookupIn(pins))
	if err != nil {
		t.Fatalf("openPins failed: %v", err)
	}

	if pins["GPIO12"].L != gpio.Low || pins["GPIO26"].L != gpio.Low {
		t.Error("expected outputs to be driven low")
	}
	if pins["GPIO13"].P != gpio.PullUp {
		t.Errorf("expected pull-up on active-low input, got %v", pins["GPIO13"].P)
	}
	if !p.ActiveLow {
		t.Error("expected ActiveLow to follow config")
	}
}

func TestOpenPins_ActiveHigh(t *testing.T) {
	cfg := config.DefaultConfig().Board
	cfg.EnrollActiveLow = false
	pins := testPins()

	if _, err := openPins(cfg, lookupIn(pins)); err != nil {
		t.Fatalf("openPins failed: %v", err)
	}
	if pins["GPIO13"].P != gpio.PullDown {
		t.Errorf("expected pull-down on active-high input, got %v", pins["GPIO13"].P)
	}
}

func TestOpenPins_Missing(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.BoardConfig)
	}{
		{"relay", func(c *config.BoardConfig) { c.RelayPin = "GPIO99" }},
		{"status", func(c *config.BoardConfig) { c.StatusPin = "GPIO99" }},
		{"enroll", func(c *config.BoardConfig) { c.EnrollPin = "GPIO99" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig().Board
			tt.modify(&cfg)
			if _, err := openPins(cfg, lookupIn(testPins())); !errors.Is(err, ErrPinNotFound) {
				t.Errorf("expected ErrPinNotFound, got %v", err)
			}
		})
	}
}

func TestPinsClose(t *testing.T) {
	pins := testPins()
	p, err := openPins(config.DefaultConfig().Board, lookupIn(pins))
	if err != nil {
		t.Fatalf("openPins failed: %v", err)
	}
	_ = p.Relay.Out(gpio.High)
	_ = p.Status.Out(gpio.High)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if pins["GPIO12"].L != gpio.Low || pins["GPIO26"].L != gpio.Low {
		t.Error("expected outputs low after Close")
	}
}
