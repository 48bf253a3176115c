package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bogenpirat/bettlicht/internal/config"
	"github.com/bogenpirat/bettlicht/internal/db"
	"github.com/bogenpirat/bettlicht/internal/eventbus"
	"github.com/bogenpirat/bettlicht/internal/hal"
	"github.com/bogenpirat/bettlicht/internal/ledger"
	"github.com/bogenpirat/bettlicht/internal/lights"
	"github.com/bogenpirat/bettlicht/internal/sensors"
	"github.com/bogenpirat/bettlicht/internal/storage"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

// configDocID keys the single persisted usermod config document.
const configDocID = "mods"

// Services is a container for all application services. It manages
// initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Store  *storage.Store
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus
	Pins   hal.PinReader

	// Host state
	Lights   *lights.State
	Registry *usermod.Registry
	Sensors  *sensors.Controller

	// Background services
	Loop *LoopService
	API  *APIService
	MQTT *MQTTService
}

// NewServices creates all services with explicit dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Store = storage.NewStore(database.DB)
	s.Ledger = ledger.New(database.DB)
	s.Bus = eventbus.New()
	s.Lights = lights.NewState(s.Bus)

	s.Pins, err = openPins(cfg.HAL.Driver)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Registry = usermod.NewRegistry()
	s.Sensors = sensors.New(sensors.Config{
		PIRPins:       cfg.Sensors.PIRPins,
		LDRPins:       cfg.Sensors.LDRPins,
		LDRThreshold:  cfg.Sensors.LDRThreshold,
		StayOnTime:    cfg.Sensors.StayOnTime.Duration(),
		KnownResistor: cfg.Sensors.KnownResistor,
		Voltage:       cfg.Sensors.Voltage,
	}, s.Pins, s.Lights)

	if err := s.Registry.Register(s.Sensors); err != nil {
		s.Close()
		return nil, err
	}

	s.Loop = NewLoopService(cfg, s.Registry, s.Lights, s.Ledger)
	s.API = NewAPIService(cfg, s.Registry, s.Lights, s.Store, s.Bus)
	s.MQTT = NewMQTTService(cfg, s.Registry, s.Lights, s.Bus)

	return s, nil
}

func openPins(driver string) (hal.PinReader, error) {
	switch driver {
	case "gpio":
		pins, err := hal.NewGPIO()
		if err != nil {
			return nil, fmt.Errorf("failed to open gpio driver: %w", err)
		}
		return pins, nil
	default:
		log.Warn().Msg("Using fake pin driver, no hardware will be read")
		return hal.NewFake(), nil
	}
}

// Start replays the persisted usermod config, runs the one-time setup
// hooks and starts all background services.
func (s *Services) Start(ctx context.Context) error {
	if err := s.replayConfig(); err != nil {
		return err
	}

	s.Registry.Setup()

	s.Loop.Start(ctx)
	s.API.Start(ctx)
	s.MQTT.Start(ctx)

	return nil
}

// replayConfig loads the persisted usermod config document and feeds it
// through the config-import hooks. A missing or incomplete document is
// rewritten from the modules' current settings, so first boot persists
// the YAML defaults.
func (s *Services) replayConfig() error {
	payload, version, err := s.Store.Get(storage.DocKindUsermodConfig, configDocID)
	if err != nil {
		return fmt.Errorf("failed to load usermod config: %w", err)
	}

	complete := false
	if len(payload) > 0 {
		var root map[string]any
		if err := json.Unmarshal(payload, &root); err != nil {
			log.Warn().Err(err).Msg("Persisted usermod config is malformed, rewriting")
		} else {
			complete = s.Registry.ReadFromConfig(root)
			log.Info().Int64("version", version).Bool("complete", complete).Msg("Replayed persisted usermod config")
		}
	}

	if !complete {
		if err := s.PersistConfig(); err != nil {
			return err
		}
	}
	return nil
}

// PersistConfig collects every module's settings and writes the config
// document.
func (s *Services) PersistConfig() error {
	root := make(map[string]any)
	s.Registry.AddToConfig(root)

	payload, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal usermod config: %w", err)
	}
	if err := s.Store.Set(storage.DocKindUsermodConfig, configDocID, payload); err != nil {
		return fmt.Errorf("failed to persist usermod config: %w", err)
	}
	return nil
}

// ResetConfig drops the persisted usermod config document.
func (s *Services) ResetConfig() error {
	return s.Store.Clear(storage.DocKindUsermodConfig)
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Pins != nil {
		if err := s.Pins.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close pin driver")
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

// ledgerRetention converts the configured retention days to a duration.
func ledgerRetention(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour
}
