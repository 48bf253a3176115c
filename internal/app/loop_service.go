package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"

	"github.com/bogenpirat/bettlicht/internal/config"
	"github.com/bogenpirat/bettlicht/internal/ledger"
	"github.com/bogenpirat/bettlicht/internal/lights"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

// LoopService is the host scheduler: it drives the usermod Loop hooks on
// a fixed cadence and records brightness transitions in the ledger and
// the metrics set.
type LoopService struct {
	cfg      *config.Config
	registry *usermod.Registry
	ledger   *ledger.Ledger

	loopTicks *metrics.Counter
	onSeconds *metrics.Summary

	mu       sync.Mutex
	turnedOn time.Time
}

// NewLoopService creates the loop service and hooks it into the light
// state's transition observer.
func NewLoopService(cfg *config.Config, registry *usermod.Registry, state *lights.State, l *ledger.Ledger) *LoopService {
	s := &LoopService{
		cfg:       cfg,
		registry:  registry,
		ledger:    l,
		loopTicks: metrics.GetOrCreateCounter("bettlicht_loop_ticks_total"),
		onSeconds: metrics.GetOrCreateSummary("bettlicht_lights_on_seconds"),
	}
	state.OnChange(s.observeTransition)
	return s
}

// Start begins the host loop and the ledger cleanup task.
func (s *LoopService) Start(ctx context.Context) {
	go s.run(ctx)
	go s.runLedgerCleanup(ctx)
}

func (s *LoopService) run(ctx context.Context) {
	interval := s.cfg.Loop.Interval.Duration()
	log.Info().Dur("interval", interval).Msg("Starting host loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping host loop")
			return
		case now := <-ticker.C:
			s.loopTicks.Inc()
			s.registry.Loop(now)
		}
	}
}

// observeTransition classifies a brightness transition and records it.
// Automation changes arrive tagged CallModeNoNotify; everything else is
// user-initiated.
func (s *LoopService) observeTransition(prev, cur uint8, mode usermod.CallMode) {
	var kind ledger.Kind
	switch {
	case mode == usermod.CallModeNoNotify && cur == 0:
		kind = ledger.KindAutoOff
	case mode == usermod.CallModeNoNotify:
		kind = ledger.KindAutoOn
	default:
		kind = ledger.KindManual
	}

	s.trackOnDuration(prev, cur)

	metrics.GetOrCreateCounter(fmt.Sprintf(`bettlicht_transitions_total{kind=%q}`, kind)).Inc()

	if err := s.ledger.Append(kind, map[string]any{
		"from": int(prev),
		"to":   int(cur),
	}); err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to record transition")
	}
}

// trackOnDuration feeds the lights-on summary on every off transition.
func (s *LoopService) trackOnDuration(prev, cur uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case prev == 0 && cur != 0:
		s.turnedOn = time.Now()
	case prev != 0 && cur == 0 && !s.turnedOn.IsZero():
		s.onSeconds.Update(time.Since(s.turnedOn).Seconds())
		s.turnedOn = time.Time{}
	}
}

// runLedgerCleanup periodically prunes old transition entries.
func (s *LoopService) runLedgerCleanup(ctx context.Context) {
	retention := ledgerRetention(s.cfg)

	ticker := time.NewTicker(s.cfg.Ledger.CleanupInterval.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
