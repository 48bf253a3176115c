package sensors

import (
	"math"
	"time"
)

// AddToJSONState appends a "sensors" object with the latest readings and
// automation state to the shared state document.
func (c *Controller) AddToJSONState(root map[string]any) {
	pir := make([]bool, len(c.readings.PIR))
	copy(pir, c.readings.PIR)
	ldr := make([]int, len(c.readings.LDR))
	copy(ldr, c.readings.LDR)

	root["sensors"] = map[string]any{
		"pir":                  pir,
		"ldr":                  ldr,
		"lastPirTriggeredTime": c.lastMotionMillis(),
		"lastOnManual":         c.lastOnManual,
		"ldrThreshold":         c.cfg.LDRThreshold,
		"stayOnTime":           c.cfg.StayOnTime.Milliseconds(),
	}
}

// ReadFromJSONState marks the current "on" state as manual when a client
// submitted on=true. Nothing else is importable through this path, so an
// automatic turn-off is suppressed until the next automatic turn-on.
func (c *Controller) ReadFromJSONState(root map[string]any) {
	if on, ok := root["on"].(bool); ok && on {
		c.lastOnManual = true
	}
}

// AddToJSONInfo appends diagnostic entries to the "u" object: the average
// LDR resistance as a (value, unit) pair and the triggered PIR count.
func (c *Controller) AddToJSONInfo(root map[string]any) {
	u, ok := root["u"].(map[string]any)
	if !ok {
		u = make(map[string]any)
		root["u"] = u
	}

	// +Inf (total darkness) is not representable in JSON.
	var resistance any = math.Round(c.AverageLDRResistance())
	if math.IsInf(c.AverageLDRResistance(), 1) {
		resistance = "inf"
	}

	u["LDR resistance"] = []any{resistance, " Ohm"}
	u["PIR triggered"] = []any{c.triggeredPIRCount(), ""}
}

// AddToConfig appends the module's persistent settings. Pin lists are
// serialized as comma-separated strings, scalars as plain fields.
func (c *Controller) AddToConfig(root map[string]any) {
	root[c.Name()] = map[string]any{
		"pirPins":          FormatPinList(c.cfg.PIRPins),
		"ldrPins":          FormatPinList(c.cfg.LDRPins),
		"ldrThreshold":     c.cfg.LDRThreshold,
		"ldrVoltage":       c.cfg.Voltage,
		"ldrKnownResistor": c.cfg.KnownResistor,
		"stayOnTime":       c.cfg.StayOnTime.Milliseconds(),
	}
}

// ReadFromConfig reads the settings back, defaulting missing scalars. A
// parsed pin list replaces the existing one only if it yields at least
// one pin; otherwise the existing (default) list is kept.
func (c *Controller) ReadFromConfig(root map[string]any) bool {
	top, ok := root[c.Name()].(map[string]any)
	if !ok {
		return false
	}

	c.cfg.LDRThreshold = intField(top, "ldrThreshold", defaultLDRThreshold)
	c.cfg.StayOnTime = time.Duration(int64Field(top, "stayOnTime", defaultStayOnTime.Milliseconds())) * time.Millisecond
	c.cfg.KnownResistor = floatField(top, "ldrKnownResistor", importKnownResistor)
	c.cfg.Voltage = floatField(top, "ldrVoltage", defaultVoltage)

	if pins := ParsePinList(stringField(top, "pirPins")); len(pins) > 0 {
		c.cfg.PIRPins = pins
	}
	if pins := ParsePinList(stringField(top, "ldrPins")); len(pins) > 0 {
		c.cfg.LDRPins = pins
	}

	return true
}

// lastMotionMillis reports the last-motion timestamp as monotonic
// milliseconds since module creation, 0 until the first trigger.
func (c *Controller) lastMotionMillis() int64 {
	if c.lastMotion.IsZero() {
		return 0
	}
	return c.lastMotion.Sub(c.epoch).Milliseconds()
}

// Field accessors tolerate both native Go values (set by AddToConfig) and
// the float64/string values encoding/json produces after a round trip.

func intField(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func int64Field(m map[string]any, key string, def int64) int64 {
	switch v := m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return def
}

func floatField(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
