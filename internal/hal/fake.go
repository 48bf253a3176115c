package hal

import "sync"

// Fake is an in-memory PinReader for development and tests. Pin values
// are set explicitly via SetDigital/SetAnalog.
type Fake struct {
	mu      sync.Mutex
	digital map[uint16]bool
	analog  map[uint16]int
	inputs  map[uint16]bool
}

// NewFake creates a fake pin reader with all pins low/zero.
func NewFake() *Fake {
	return &Fake{
		digital: make(map[uint16]bool),
		analog:  make(map[uint16]int),
		inputs:  make(map[uint16]bool),
	}
}

// SetDigital sets the value a digital pin will read.
func (f *Fake) SetDigital(pin uint16, high bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digital[pin] = high
}

// SetAnalog sets the raw value an analog pin will read.
func (f *Fake) SetAnalog(pin uint16, raw int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analog[pin] = raw
}

// IsInput reports whether SetupDigital was called for the pin.
func (f *Fake) IsInput(pin uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[pin]
}

func (f *Fake) SetupDigital(pin uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[pin] = true
}

func (f *Fake) ReadDigital(pin uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.digital[pin]
}

func (f *Fake) ReadAnalog(pin uint16) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analog[pin]
}

func (f *Fake) Close() error {
	return nil
}
