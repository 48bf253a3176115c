// Package hal provides pin-level access to sensor hardware.
//
// The real driver uses periph.io and is only built for linux/arm targets;
// the fake driver runs anywhere and backs development and tests. Reads do
// not fail: a missing or misconfigured pin reads as untriggered/zero.
package hal

// ADCBits is the resolution of the analog-to-digital converter. Raw
// analog readings span 0..2^ADCBits-1.
const ADCBits = 12

// ADCRange is the number of distinct raw analog values (2^ADCBits).
const ADCRange = 1 << ADCBits

// PinReader reads digital and analog sensor pins.
type PinReader interface {
	// SetupDigital configures a pin as a digital input. Fire-and-forget.
	SetupDigital(pin uint16)

	// ReadDigital returns true when the pin reads high.
	ReadDigital(pin uint16) bool

	// ReadAnalog returns the raw ADC reading for the pin, in
	// 0..ADCRange-1. Unconfigured pins read 0.
	ReadAnalog(pin uint16) int

	// Close releases hardware resources.
	Close() error
}
