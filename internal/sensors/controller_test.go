package sensors

import (
	"math"
	"testing"
	"time"

	"github.com/bogenpirat/bettlicht/internal/hal"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

// fakeLights records every SetBrightness call and mirrors the host
// handle's remember-on-off semantics.
type fakeLights struct {
	bri     uint8
	briLast uint8
	calls   []briCall
}

type briCall struct {
	b    uint8
	mode usermod.CallMode
}

func newFakeLights() *fakeLights {
	return &fakeLights{briLast: 255}
}

func (f *fakeLights) Brightness() uint8     { return f.bri }
func (f *fakeLights) LastBrightness() uint8 { return f.briLast }

func (f *fakeLights) SetBrightness(b uint8, mode usermod.CallMode) {
	if b == 0 && f.bri != 0 {
		f.briLast = f.bri
	}
	f.bri = b
	f.calls = append(f.calls, briCall{b, mode})
}

var t0 = time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)

// step is comfortably past the internal poll rate limit.
const step = 400 * time.Millisecond

func newTestController(cfg Config) (*Controller, *hal.Fake, *fakeLights) {
	pins := hal.NewFake()
	lights := newFakeLights()
	return New(cfg, pins, lights), pins, lights
}

func TestSetupConfiguresPIRInputs(t *testing.T) {
	c, pins, _ := newTestController(Config{
		PIRPins:    []uint16{13, 14},
		StayOnTime: time.Minute,
	})
	c.Setup()

	if !pins.IsInput(13) || !pins.IsInput(14) {
		t.Error("Setup should configure every PIR pin as digital input")
	}
	if pins.IsInput(32) {
		t.Error("Setup should not touch unconfigured pins")
	}
}

func TestMotionRequiresAnyPIR(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIRPins = []uint16{13, 14}
	cfg.LDRPins = []uint16{32}
	c, pins, lights := newTestController(cfg)

	pins.SetAnalog(32, 400) // dark

	// [false, false]: no motion, stays off
	c.Loop(t0)
	if len(lights.calls) != 0 {
		t.Fatalf("No PIR triggered, expected no command, got %d", len(lights.calls))
	}

	// [false, true]: motion, turns on
	pins.SetDigital(14, true)
	c.Loop(t0.Add(step))
	if lights.bri == 0 {
		t.Error("One triggered PIR should count as motion")
	}
}

func TestDarkEnoughRequiresAnyLDRBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIRPins = []uint16{13}
	cfg.LDRPins = []uint16{32, 33}
	c, pins, lights := newTestController(cfg)

	pins.SetDigital(13, true)

	// [600, 700] with threshold 500: too bright
	pins.SetAnalog(32, 600)
	pins.SetAnalog(33, 700)
	c.Loop(t0)
	if lights.bri != 0 {
		t.Error("No LDR below threshold, lights should stay off")
	}

	// [600, 400]: one below threshold is enough
	pins.SetAnalog(33, 400)
	c.Loop(t0.Add(step))
	if lights.bri == 0 {
		t.Error("One LDR below threshold should count as dark")
	}
}

func TestAutoOnRestoresRememberedBrightness(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIRPins = []uint16{13}
	cfg.LDRPins = []uint16{32}
	c, pins, lights := newTestController(cfg)

	lights.briLast = 180
	pins.SetDigital(13, true)
	pins.SetAnalog(32, 100)

	c.Loop(t0)

	if len(lights.calls) != 1 {
		t.Fatalf("Expected exactly one command, got %d", len(lights.calls))
	}
	if lights.calls[0].b != 180 {
		t.Errorf("Expected restored brightness 180, got %d", lights.calls[0].b)
	}
	if lights.calls[0].mode != usermod.CallModeNoNotify {
		t.Error("Automatic turn-on must not notify")
	}

	// Manual flag is cleared on an automatic turn-on
	state := map[string]any{}
	c.AddToJSONState(state)
	sensorsObj := state["sensors"].(map[string]any)
	if sensorsObj["lastOnManual"].(bool) {
		t.Error("Automatic turn-on should clear the manual flag")
	}
}

func TestNoAutoOnWhileAlreadyOn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIRPins = []uint16{13}
	cfg.LDRPins = []uint16{32}
	c, pins, lights := newTestController(cfg)

	lights.bri = 128
	pins.SetDigital(13, true)
	pins.SetAnalog(32, 100)

	c.Loop(t0)
	if len(lights.calls) != 0 {
		t.Errorf("Lights already on, expected no command, got %d", len(lights.calls))
	}
}

func TestAutoOffAfterStayOnTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIRPins = []uint16{13}
	cfg.LDRPins = []uint16{32}
	cfg.StayOnTime = 2 * time.Second
	c, pins, lights := newTestController(cfg)

	lights.bri = 128
	pins.SetAnalog(32, 4000) // bright, so no competing turn-on later

	// Motion while on records the time but emits nothing.
	pins.SetDigital(13, true)
	c.Loop(t0)
	if len(lights.calls) != 0 {
		t.Fatalf("Motion while on should not emit a command, got %d", len(lights.calls))
	}

	pins.SetDigital(13, false)

	// Inside the stay-on window: nothing.
	c.Loop(t0.Add(1 * time.Second))
	if len(lights.calls) != 0 {
		t.Fatal("Stay-on time not elapsed, expected no command")
	}

	// Past the window: one turn-off that remembers the level.
	c.Loop(t0.Add(3 * time.Second))
	if len(lights.calls) != 1 {
		t.Fatalf("Expected exactly one turn-off command, got %d", len(lights.calls))
	}
	if lights.bri != 0 {
		t.Error("Lights should be off")
	}
	if lights.briLast != 128 {
		t.Errorf("Turn-off should remember brightness 128, got %d", lights.briLast)
	}
	if lights.calls[0].mode != usermod.CallModeNoNotify {
		t.Error("Automatic turn-off must not notify")
	}
}

func TestManualFlagSuppressesAutoOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIRPins = []uint16{13}
	cfg.StayOnTime = time.Second
	c, _, lights := newTestController(cfg)

	lights.bri = 200
	c.ReadFromJSONState(map[string]any{"on": true})

	for i := 0; i < 10; i++ {
		c.Loop(t0.Add(time.Duration(i) * time.Hour))
	}

	if len(lights.calls) != 0 {
		t.Errorf("Manual flag set, expected no automatic turn-off, got %d commands", len(lights.calls))
	}
}

func TestNoSensorsNeverTurnsOnButStillTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StayOnTime = time.Second
	c, _, lights := newTestController(cfg)

	// Off and sensorless: nothing ever happens.
	for i := 0; i < 10; i++ {
		c.Loop(t0.Add(time.Duration(i) * step))
	}
	if len(lights.calls) != 0 {
		t.Fatalf("No sensors and off, expected no commands, got %d", len(lights.calls))
	}

	// On with no recorded motion: the timeout fires immediately. This
	// mirrors the inherited behavior and is intentional.
	lights.bri = 90
	c.Loop(t0.Add(time.Hour))
	if len(lights.calls) != 1 || lights.bri != 0 {
		t.Error("Timeout should still turn sensorless lights off")
	}
}

func TestLoopRateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIRPins = []uint16{13}
	cfg.LDRPins = []uint16{32}
	c, pins, lights := newTestController(cfg)

	pins.SetAnalog(32, 100)

	// First call polls (and sees no motion).
	c.Loop(t0)

	// Motion appears, but 100ms later is inside the rate limit window.
	pins.SetDigital(13, true)
	c.Loop(t0.Add(100 * time.Millisecond))
	if len(lights.calls) != 0 {
		t.Fatal("Poll within 300ms should be a no-op")
	}

	// Past the window the motion is picked up.
	c.Loop(t0.Add(step))
	if lights.bri == 0 {
		t.Error("Poll past the rate limit should sample the pins")
	}
}

func TestAverageLDRResistance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LDRPins = []uint16{32}
	cfg.KnownResistor = 10000
	c, pins, _ := newTestController(cfg)

	pins.SetAnalog(32, 1024)
	c.Loop(t0)

	want := 10000 * (4096.0/1024.0 - 1) // 30000
	if got := c.AverageLDRResistance(); got != want {
		t.Errorf("AverageLDRResistance = %v, want %v", got, want)
	}

	// Full-scale reading: zero resistance.
	pins.SetAnalog(32, 4096)
	c.Loop(t0.Add(step))
	if got := c.AverageLDRResistance(); got != 0 {
		t.Errorf("Full-scale reading should give 0 ohm, got %v", got)
	}

	// Zero reading: +Inf sentinel, never a fault.
	pins.SetAnalog(32, 0)
	c.Loop(t0.Add(2 * step))
	if got := c.AverageLDRResistance(); !math.IsInf(got, 1) {
		t.Errorf("Zero reading should give +Inf, got %v", got)
	}
}

func TestAverageLDRResistanceNoPins(t *testing.T) {
	c, _, _ := newTestController(DefaultConfig())
	c.Loop(t0)
	if got := c.AverageLDRResistance(); got != 0 {
		t.Errorf("No LDR pins should give 0, got %v", got)
	}
}

func TestAverageLDRResistanceMeansAcrossPins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LDRPins = []uint16{32, 33}
	cfg.KnownResistor = 10000
	c, pins, _ := newTestController(cfg)

	pins.SetAnalog(32, 1024) // 30000 ohm
	pins.SetAnalog(33, 2048) // 10000 ohm
	c.Loop(t0)

	if got := c.AverageLDRResistance(); got != 20000 {
		t.Errorf("AverageLDRResistance = %v, want 20000", got)
	}
}
