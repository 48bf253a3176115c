// Package sensors implements the PIR/LDR sensor usermod: turn the lights
// on when it is dark and motion is detected, turn them off again after a
// stay-on timeout with no motion, unless the most recent "on" was manual.
package sensors

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bogenpirat/bettlicht/internal/hal"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

// ModuleID identifies this usermod to the host.
const ModuleID uint16 = 43

// pollInterval caps how often Loop actually samples the pins.
const pollInterval = 300 * time.Millisecond

const (
	defaultLDRThreshold  = 500
	defaultStayOnTime    = 60 * time.Second
	defaultKnownResistor = 100000.0
	defaultVoltage       = 5.0

	// Persisted documents written before the resistance estimate existed
	// carry no resistor value; they default to the 10k divider those
	// builds shipped with.
	importKnownResistor = 10000.0
)

// Config holds the sensor wiring and automation thresholds.
type Config struct {
	PIRPins []uint16
	LDRPins []uint16

	// LDRThreshold is compared against raw ADC readings; a lower reading
	// means less light for this circuit topology.
	LDRThreshold int

	// StayOnTime is how long the lights stay on after the last motion.
	StayOnTime time.Duration

	// KnownResistor is the fixed divider resistance in ohms, used only
	// for the informational resistance estimate.
	KnownResistor float64

	// Voltage is the divider supply voltage. Reported in config only.
	Voltage float64
}

// DefaultConfig returns the boot-time defaults.
func DefaultConfig() Config {
	return Config{
		LDRThreshold:  defaultLDRThreshold,
		StayOnTime:    defaultStayOnTime,
		KnownResistor: defaultKnownResistor,
		Voltage:       defaultVoltage,
	}
}

// Readings are the last values sampled from the pins, index-aligned with
// the configured pin lists. Rebuilt in full on every poll.
type Readings struct {
	PIR []bool
	LDR []int
}

// Action is a requested brightness transition.
type Action uint8

const (
	// ActionTurnOn restores the remembered brightness level.
	ActionTurnOn Action = iota + 1

	// ActionTurnOff remembers the current level and sets brightness 0.
	ActionTurnOff
)

// Command is the outcome of a poll: at most one transition, tagged with
// the call mode the host must apply it with.
type Command struct {
	Action Action
	Mode   usermod.CallMode
}

// Controller is the sensor usermod. It is driven entirely by host hook
// invocations, which the registry serializes; it holds no lock and spawns
// nothing.
type Controller struct {
	cfg    Config
	pins   hal.PinReader
	lights usermod.Lights

	readings Readings

	epoch        time.Time
	lastPoll     time.Time
	lastMotion   time.Time
	lastOnManual bool
}

// New creates the sensor controller.
func New(cfg Config, pins hal.PinReader, lights usermod.Lights) *Controller {
	return &Controller{
		cfg:    cfg,
		pins:   pins,
		lights: lights,
		epoch:  time.Now(),
	}
}

// Name implements usermod.Usermod.
func (c *Controller) Name() string { return "sensors" }

// ID implements usermod.Usermod.
func (c *Controller) ID() uint16 { return ModuleID }

// Config returns the active configuration.
func (c *Controller) Config() Config { return c.cfg }

// Setup configures every PIR pin as a digital input.
func (c *Controller) Setup() {
	for _, pin := range c.cfg.PIRPins {
		c.pins.SetupDigital(pin)
	}
	log.Info().
		Uints16("pir_pins", c.cfg.PIRPins).
		Uints16("ldr_pins", c.cfg.LDRPins).
		Int("ldr_threshold", c.cfg.LDRThreshold).
		Dur("stay_on_time", c.cfg.StayOnTime).
		Msg("Sensor controller ready")
}

// Loop samples the sensors and applies at most one brightness transition.
// Calls closer together than the poll interval are no-ops.
func (c *Controller) Loop(now time.Time) {
	if now.Sub(c.lastPoll) <= pollInterval {
		return
	}
	c.lastPoll = now

	cmd := c.poll(now, c.lights.Brightness())
	if cmd == nil {
		return
	}

	switch cmd.Action {
	case ActionTurnOn:
		level := c.lights.LastBrightness()
		log.Debug().Uint8("bri", level).Msg("Motion in the dark, restoring brightness")
		c.lights.SetBrightness(level, cmd.Mode)
	case ActionTurnOff:
		log.Debug().Dur("stay_on_time", c.cfg.StayOnTime).Msg("Stay-on time elapsed, turning off")
		c.lights.SetBrightness(0, cmd.Mode)
	}
}

// poll refreshes the readings and decides on a transition. Split from
// Loop so the decision logic is a function of (config, readings, clock,
// brightness) and nothing else.
func (c *Controller) poll(now time.Time, bri uint8) *Command {
	c.updateReadings()

	if c.motionDetected() {
		c.lastMotion = now
	}

	isOn := bri != 0

	// Turn on iff currently off, motion is seen and it is dark enough.
	if !isOn && c.motionDetected() && c.darkEnough() {
		c.lastOnManual = false
		return &Command{Action: ActionTurnOn, Mode: usermod.CallModeNoNotify}
	}

	// Turn off iff currently on, the last "on" was not manual and no
	// motion has been seen for the stay-on time.
	if isOn && !c.lastOnManual && now.Sub(c.lastMotion) > c.cfg.StayOnTime {
		return &Command{Action: ActionTurnOff, Mode: usermod.CallModeNoNotify}
	}

	return nil
}

// updateReadings clears and repopulates both reading sequences. Readings
// are never partially updated.
func (c *Controller) updateReadings() {
	pir := make([]bool, 0, len(c.cfg.PIRPins))
	for _, pin := range c.cfg.PIRPins {
		pir = append(pir, c.pins.ReadDigital(pin))
	}

	ldr := make([]int, 0, len(c.cfg.LDRPins))
	for _, pin := range c.cfg.LDRPins {
		ldr = append(ldr, c.pins.ReadAnalog(pin))
	}

	c.readings = Readings{PIR: pir, LDR: ldr}
}

// motionDetected reports whether any PIR sensor is triggered. Vacuously
// false with no PIR pins configured.
func (c *Controller) motionDetected() bool {
	for _, triggered := range c.readings.PIR {
		if triggered {
			return true
		}
	}
	return false
}

// darkEnough reports whether any LDR reads below the threshold.
// Vacuously false with no LDR pins configured, so the turn-on rule never
// fires without sensors; the turn-off rule does not depend on this and
// still can.
func (c *Controller) darkEnough() bool {
	for _, raw := range c.readings.LDR {
		if raw < c.cfg.LDRThreshold {
			return true
		}
	}
	return false
}

// triggeredPIRCount returns how many PIR sensors currently read high.
func (c *Controller) triggeredPIRCount() int {
	n := 0
	for _, triggered := range c.readings.PIR {
		if triggered {
			n++
		}
	}
	return n
}

// AverageLDRResistance estimates the mean LDR resistance in ohms from the
// last readings using the voltage-divider formula
// R_ldr = R_known * (ADCRange/raw - 1). A raw reading of 0 contributes
// +Inf, the limit of the formula in total darkness. Returns 0 with no
// LDR pins configured. Informational only; automation compares raw
// readings against the threshold directly.
func (c *Controller) AverageLDRResistance() float64 {
	if len(c.readings.LDR) == 0 {
		return 0
	}

	var sum float64
	for _, raw := range c.readings.LDR {
		if raw == 0 {
			sum = math.Inf(1)
			continue
		}
		sum += c.cfg.KnownResistor * (float64(hal.ADCRange)/float64(raw) - 1)
	}
	return sum / float64(len(c.readings.LDR))
}
