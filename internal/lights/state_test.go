package lights

import (
	"context"
	"testing"
	"time"

	"github.com/bogenpirat/bettlicht/internal/eventbus"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

func TestTurnOffRemembersBrightness(t *testing.T) {
	s := NewState(nil)

	s.SetBrightness(120, usermod.CallModeDirect)
	s.SetBrightness(0, usermod.CallModeDirect)

	if s.Brightness() != 0 {
		t.Error("Lights should be off")
	}
	if s.LastBrightness() != 120 {
		t.Errorf("LastBrightness = %d, want 120", s.LastBrightness())
	}

	// Restoring uses the remembered level.
	s.SetBrightness(s.LastBrightness(), usermod.CallModeDirect)
	if s.Brightness() != 120 {
		t.Errorf("Brightness = %d, want 120", s.Brightness())
	}
}

func TestInitialLastBrightnessIsFull(t *testing.T) {
	s := NewState(nil)
	if s.LastBrightness() != 255 {
		t.Errorf("LastBrightness = %d, want 255", s.LastBrightness())
	}
}

func TestOnChangeSeesAllTransitions(t *testing.T) {
	s := NewState(nil)

	var seen []usermod.CallMode
	s.OnChange(func(prev, cur uint8, mode usermod.CallMode) {
		seen = append(seen, mode)
	})

	s.SetBrightness(80, usermod.CallModeNoNotify)
	s.SetBrightness(80, usermod.CallModeDirect) // no-op, same level
	s.SetBrightness(0, usermod.CallModeDirect)

	if len(seen) != 2 {
		t.Fatalf("Expected 2 observed transitions, got %d", len(seen))
	}
	if seen[0] != usermod.CallModeNoNotify || seen[1] != usermod.CallModeDirect {
		t.Errorf("Observed modes = %v", seen)
	}
}

func TestNoNotifySkipsBroadcast(t *testing.T) {
	bus := eventbus.New()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Close(ctx)
	}()

	events := make(chan eventbus.Event, 4)
	bus.Subscribe(eventbus.EventTypeStateChange, func(e eventbus.Event) {
		events <- e
	})

	s := NewState(bus)

	// Silent change: nothing on the bus.
	s.SetBrightness(100, usermod.CallModeNoNotify)
	select {
	case <-events:
		t.Fatal("CallModeNoNotify must not broadcast")
	case <-time.After(100 * time.Millisecond):
	}

	// Notifying change: one event.
	s.SetBrightness(0, usermod.CallModeDirect)
	select {
	case e := <-events:
		if e.Data["on"].(bool) {
			t.Error("Broadcast should report off")
		}
		if e.Data["bri"].(int) != 0 {
			t.Errorf("Broadcast bri = %v, want 0", e.Data["bri"])
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a state-change broadcast")
	}
}
