//go:build linux && arm

package hal

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIO reads pins through periph.io. Digital pins are resolved by their
// BCM number from the host registry; analog pins must be attached to an
// ADC channel via RegisterADC before they read anything but 0.
type GPIO struct {
	mu   sync.Mutex
	pins map[uint16]gpio.PinIn
	adcs map[uint16]analog.PinADC
}

// NewGPIO initializes the periph host and returns a hardware pin reader.
func NewGPIO() (PinReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	return &GPIO{
		pins: make(map[uint16]gpio.PinIn),
		adcs: make(map[uint16]analog.PinADC),
	}, nil
}

// RegisterADC attaches an ADC channel to a logical analog pin number.
func (g *GPIO) RegisterADC(pin uint16, adc analog.PinADC) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adcs[pin] = adc
}

func (g *GPIO) SetupDigital(pin uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		log.Warn().Uint16("pin", pin).Msg("Digital pin not found in gpio registry")
		return
	}
	if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
		log.Warn().Err(err).Uint16("pin", pin).Msg("Failed to configure digital input")
		return
	}
	g.pins[pin] = p
}

func (g *GPIO) ReadDigital(pin uint16) bool {
	g.mu.Lock()
	p, ok := g.pins[pin]
	g.mu.Unlock()
	if !ok {
		return false
	}
	return p.Read() == gpio.High
}

func (g *GPIO) ReadAnalog(pin uint16) int {
	g.mu.Lock()
	adc, ok := g.adcs[pin]
	g.mu.Unlock()
	if !ok {
		return 0
	}

	sample, err := adc.Read()
	if err != nil {
		log.Warn().Err(err).Uint16("pin", pin).Msg("Analog read failed")
		return 0
	}
	return int(sample.Raw)
}

func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, adc := range g.adcs {
		if err := adc.Halt(); err != nil {
			log.Warn().Err(err).Msg("Failed to halt ADC channel")
		}
	}
	return nil
}
