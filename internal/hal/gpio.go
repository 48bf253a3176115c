//go:build !(linux && arm)

package hal

import "errors"

// NewGPIO is only functional on linux/arm builds, where the periph.io
// driver in gpio_arm.go takes over. Elsewhere it fails so that callers
// fall back to the fake driver explicitly.
func NewGPIO() (PinReader, error) {
	return nil, errors.New("gpio driver requires linux/arm hardware (use the fake driver)")
}
