package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"

	"github.com/bogenpirat/bettlicht/internal/config"
	"github.com/bogenpirat/bettlicht/internal/eventbus"
	"github.com/bogenpirat/bettlicht/internal/lights"
	"github.com/bogenpirat/bettlicht/internal/storage"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

// APIService serves the JSON state/info/config API, health checks and
// Prometheus metrics.
type APIService struct {
	cfg      *config.Config
	registry *usermod.Registry
	lights   *lights.State
	store    *storage.Store
	bus      *eventbus.Bus
	server   *http.Server
}

// NewAPIService creates the JSON API service.
func NewAPIService(cfg *config.Config, registry *usermod.Registry, state *lights.State, store *storage.Store, bus *eventbus.Bus) *APIService {
	return &APIService{
		cfg:      cfg,
		registry: registry,
		lights:   state,
		store:    store,
		bus:      bus,
	}
}

// Start begins the API server if enabled.
func (s *APIService) Start(ctx context.Context) {
	if !s.cfg.API.Enabled {
		log.Info().Msg("JSON API is disabled")
		return
	}
	go s.run(ctx)
}

func (s *APIService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/json/state", s.handleState)
	mux.HandleFunc("/json/info", s.handleInfo)
	mux.HandleFunc("/json/cfg", s.handleConfig)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Info().Str("addr", addr).Msg("Starting JSON API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("JSON API server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("JSON API server error")
	}
}

// handleState serves the shared state document and accepts state changes
// from clients. Client-initiated changes are manual: they broadcast
// normally and suppress the automatic turn-off.
func (s *APIService) handleState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bri := s.lights.Brightness()
		root := map[string]any{
			"on":  bri != 0,
			"bri": int(bri),
		}
		s.registry.AddToJSONState(root)
		writeJSON(w, root)

	case http.MethodPost:
		root, err := decodeBody(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.applyState(root)
		s.registry.ReadFromJSONState(root)
		writeJSON(w, map[string]any{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// applyState interprets the host-owned fields of a submitted state
// document: an explicit "bri" wins over a bare "on" toggle.
func (s *APIService) applyState(root map[string]any) {
	if v, ok := root["bri"].(float64); ok {
		b := v
		if b < 0 {
			b = 0
		}
		if b > 255 {
			b = 255
		}
		s.lights.SetBrightness(uint8(b), usermod.CallModeDirect)
		return
	}

	if on, ok := root["on"].(bool); ok {
		if on {
			s.lights.SetBrightness(s.lights.LastBrightness(), usermod.CallModeDirect)
		} else {
			s.lights.SetBrightness(0, usermod.CallModeDirect)
		}
	}
}

// handleInfo serves the diagnostic info document, including the "u"
// object the usermods populate.
func (s *APIService) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	root := map[string]any{
		"name": "bettlicht",
	}
	s.registry.AddToJSONInfo(root)
	writeJSON(w, root)
}

// handleConfig serves the usermod config document and accepts updated
// settings, which are persisted immediately.
func (s *APIService) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		root := make(map[string]any)
		s.registry.AddToConfig(root)
		writeJSON(w, root)

	case http.MethodPost:
		root, err := decodeBody(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.registry.ReadFromConfig(root)
		if err := s.persist(); err != nil {
			log.Error().Err(err).Msg("Failed to persist usermod config")
			http.Error(w, "failed to persist config", http.StatusInternalServerError)
			return
		}

		s.bus.Publish(eventbus.Event{Type: eventbus.EventTypeConfigChange, Data: root})
		writeJSON(w, map[string]any{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// persist rewrites the persisted config document from the modules'
// current settings, so defaults applied during import are stored too.
func (s *APIService) persist() error {
	root := make(map[string]any)
	s.registry.AddToConfig(root)

	payload, err := json.Marshal(root)
	if err != nil {
		return err
	}
	return s.store.Set(storage.DocKindUsermodConfig, configDocID, payload)
}

func decodeBody(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()

	var root map[string]any
	if err := json.NewDecoder(r.Body).Decode(&root); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return root, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
