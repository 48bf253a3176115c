package usermod

import (
	"fmt"
	"sync"
	"time"
)

// Registry holds all registered usermods and fans host hooks out to them
// in registration order. Dispatch is serialized: the host loop and the
// JSON API both drive modules through here, and modules themselves stay
// single-threaded, matching the firmware model this contract comes from.
type Registry struct {
	mu   sync.Mutex
	mods []Usermod
}

// NewRegistry creates an empty usermod registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a usermod to the registry.
func (r *Registry) Register(mod Usermod) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mods {
		if m.Name() == mod.Name() {
			return fmt.Errorf("usermod %q already registered", mod.Name())
		}
	}

	r.mods = append(r.mods, mod)
	return nil
}

// Names returns registered module names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.mods))
	for _, m := range r.mods {
		names = append(names, m.Name())
	}
	return names
}

// Setup invokes the one-time boot hook on every module.
func (r *Registry) Setup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mods {
		m.Setup()
	}
}

// Loop invokes the periodic hook on every module.
func (r *Registry) Loop(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mods {
		m.Loop(now)
	}
}

// AddToJSONState collects every module's state fragment into root.
func (r *Registry) AddToJSONState(root map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mods {
		m.AddToJSONState(root)
	}
}

// ReadFromJSONState offers an externally submitted state document to
// every module.
func (r *Registry) ReadFromJSONState(root map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mods {
		m.ReadFromJSONState(root)
	}
}

// AddToJSONInfo collects every module's diagnostic entries into root.
func (r *Registry) AddToJSONInfo(root map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mods {
		m.AddToJSONInfo(root)
	}
}

// AddToConfig collects every module's persistent settings into root.
func (r *Registry) AddToConfig(root map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mods {
		m.AddToConfig(root)
	}
}

// ReadFromConfig replays a persisted config document into every module.
// Returns true only if every module found its settings object.
func (r *Registry) ReadFromConfig(root map[string]any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	complete := true
	for _, m := range r.mods {
		if !m.ReadFromConfig(root) {
			complete = false
		}
	}
	return complete
}
