// Package usermod defines the host callback contract for pluggable modules.
// The host owns a Registry of Usermod implementations and invokes their
// hooks in registration order; modules carry no dispatch logic of their own.
package usermod

import "time"

// CallMode tags a brightness change with how the host should broadcast it.
type CallMode uint8

const (
	// CallModeDirect is a regular change: the host fires its
	// change-broadcast side effects (event bus, MQTT).
	CallModeDirect CallMode = iota

	// CallModeNoNotify applies the change silently. Used by modules whose
	// transitions must not re-trigger the host's own notifications.
	CallModeNoNotify
)

// Lights is the host's shared brightness state handle. There is exactly
// one instance; modules read it and conditionally overwrite it.
type Lights interface {
	// Brightness returns the current level, 0 meaning off.
	Brightness() uint8

	// LastBrightness returns the level remembered from before the most
	// recent turn-off. Never 0.
	LastBrightness() uint8

	// SetBrightness applies a new level. Turning off (nonzero to 0)
	// remembers the previous level for a later restore.
	SetBrightness(b uint8, mode CallMode)
}

// Usermod is implemented by modules driven by the host loop.
type Usermod interface {
	// Name is the stable key for this module in config documents.
	Name() string

	// ID is a fixed numeric identifier for host bookkeeping.
	ID() uint16

	// Setup is called once at boot, before networking is available.
	Setup()

	// Loop is called on every host loop iteration. Modules that poll
	// hardware are expected to rate-limit themselves.
	Loop(now time.Time)

	// AddToJSONState appends this module's entries to the shared state
	// document served by the JSON API.
	AddToJSONState(root map[string]any)

	// ReadFromJSONState lets the module react to state changes submitted
	// by external clients.
	ReadFromJSONState(root map[string]any)

	// AddToJSONInfo appends diagnostic entries to the "u" object of the
	// info document.
	AddToJSONInfo(root map[string]any)

	// AddToConfig appends a named object with this module's persistent
	// settings to the config document.
	AddToConfig(root map[string]any)

	// ReadFromConfig reads the settings back, applying defaults for
	// missing keys. Returns false if the module's object was absent and
	// the document should be rewritten.
	ReadFromConfig(root map[string]any) bool
}
