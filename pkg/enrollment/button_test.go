package enrollment

import (
	"testing"
	"time"

	"github.com/MrCodeEU/facegate/pkg/clock"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestButton_DebouncedPress(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO13", L: gpio.High}
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewButton(pin, true, 50*time.Millisecond, clk)

	if b.Pressed() {
		t.Fatal("released button reported a press")
	}

	pin.L = gpio.Low
	if b.Pressed() {
		t.Error("press reported before the debounce interval")
	}
	clk.Advance(30 * time.Millisecond)
	if b.Pressed() {
		t.Error("press reported before the debounce interval")
	}
	clk.Advance(20 * time.Millisecond)
	if !b.Pressed() {
		t.Fatal("expected a press after 50ms stable")
	}

	// held: only one edge
	clk.Advance(time.Second)
	if b.Pressed() {
		t.Error("held button reported a second press")
	}
}

func TestButton_BounceIsIgnored(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO13", L: gpio.High}
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewButton(pin, true, 50*time.Millisecond, clk)

	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			pin.L = gpio.Low
		} else {
			pin.L = gpio.High
		}
		if b.Pressed() {
			t.Fatalf("bounce %d reported a press", i)
		}
		clk.Advance(10 * time.Millisecond)
	}
}

func TestButton_ReleaseAndPressAgain(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO13", L: gpio.Low}
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewButton(pin, true, 50*time.Millisecond, clk)

	// held at boot
	b.Pressed()
	clk.Advance(50 * time.Millisecond)
	if !b.Pressed() {
		t.Fatal("expected a button held at boot to produce a press")
	}

	pin.L = gpio.High
	b.Pressed()
	clk.Advance(50 * time.Millisecond)
	if b.Pressed() {
		t.Error("release must not report a press")
	}

	pin.L = gpio.Low
	b.Pressed()
	clk.Advance(50 * time.Millisecond)
	if !b.Pressed() {
		t.Error("expected a second press")
	}
}

func TestButton_ActiveHigh(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO13", L: gpio.Low}
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewButton(pin, false, 0, clk)

	if b.Pressed() {
		t.Error("low level on an active-high button reported a press")
	}
	pin.L = gpio.High
	if !b.Pressed() {
		t.Error("expected an immediate press with zero debounce")
	}
}
