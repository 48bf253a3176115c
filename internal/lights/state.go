// Package lights holds the host's shared brightness state. There is one
// State per process; the usermod loop and the JSON API both write it, and
// the last writer wins.
package lights

import (
	"sync"

	"github.com/bogenpirat/bettlicht/internal/eventbus"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

// ChangeFunc observes every effective brightness transition, regardless
// of call mode. Used by the host for the transition ledger and metrics.
type ChangeFunc func(prev, cur uint8, mode usermod.CallMode)

// State implements usermod.Lights.
type State struct {
	mu      sync.Mutex
	bri     uint8
	briLast uint8

	bus      *eventbus.Bus
	onChange []ChangeFunc
}

// NewState creates the light state, off, with full brightness remembered.
func NewState(bus *eventbus.Bus) *State {
	return &State{briLast: 255, bus: bus}
}

// OnChange registers an observer for effective transitions. Not safe to
// call after the host loop has started.
func (s *State) OnChange(fn ChangeFunc) {
	s.onChange = append(s.onChange, fn)
}

// Brightness returns the current level, 0 meaning off.
func (s *State) Brightness() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bri
}

// LastBrightness returns the level remembered from before the most
// recent turn-off.
func (s *State) LastBrightness() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.briLast
}

// SetBrightness applies a new level. Turning off (nonzero to 0) stores
// the old level so a later turn-on can restore it. Changes made with
// CallModeNoNotify skip the host broadcast but still reach OnChange
// observers.
func (s *State) SetBrightness(b uint8, mode usermod.CallMode) {
	s.mu.Lock()
	prev := s.bri
	if b == 0 && s.bri != 0 {
		s.briLast = s.bri
	}
	s.bri = b
	s.mu.Unlock()

	if prev == b {
		return
	}

	for _, fn := range s.onChange {
		fn(prev, b, mode)
	}

	if mode != usermod.CallModeNoNotify && s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeStateChange,
			Data: map[string]any{
				"on":  b != 0,
				"bri": int(b),
			},
		})
	}
}
