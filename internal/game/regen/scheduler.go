// Package regen runs the periodic passive regeneration process: one
// coarse poll loop driving independent HP and Energy sweep timers.
package regen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/ledger"
)

// Config holds the regeneration tuning knobs. Poll is the loop tick;
// the intervals are the logical per-stat timers it advances.
type Config struct {
	Poll           time.Duration
	HPRate         int
	HPInterval     time.Duration
	EnergyRate     int
	EnergyInterval time.Duration
}

// Scheduler accumulates real elapsed wall time into one accumulator
// per stat and runs a full sweep whenever an accumulator reaches its
// interval. A sweep is one ledger transaction over every tracked
// player.
//
// Tick is not safe for concurrent use; Run is the single driver.
type Scheduler struct {
	ledger *ledger.Ledger
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	last      time.Time
	hpAcc     time.Duration
	energyAcc time.Duration
}

// New builds a Scheduler under the system clock.
//
// Precondition: every interval and rate in cfg is positive.
func New(l *ledger.Ledger, cfg Config, logger *zap.Logger) *Scheduler {
	return NewWithClock(l, cfg, logger, time.Now)
}

// NewWithClock builds a Scheduler with an injected clock.
func NewWithClock(l *ledger.Ledger, cfg Config, logger *zap.Logger, now func() time.Time) *Scheduler {
	if cfg.Poll <= 0 || cfg.HPInterval <= 0 || cfg.EnergyInterval <= 0 {
		panic("regen: intervals must be positive")
	}
	if cfg.HPRate <= 0 || cfg.EnergyRate <= 0 {
		panic("regen: rates must be positive")
	}
	return &Scheduler{
		ledger: l,
		cfg:    cfg,
		logger: logger,
		now:    now,
		last:   now(),
	}
}

// Run drives the poll loop until ctx is cancelled. Firings are never
// skipped or batched: slow persistence delays the next tick by real
// elapsed time, which the accumulators absorb.
func (s *Scheduler) Run(ctx context.Context) error {
	s.last = s.now()
	ticker := time.NewTicker(s.cfg.Poll)
	defer ticker.Stop()

	s.logger.Info("regeneration scheduler started",
		zap.Duration("poll", s.cfg.Poll),
		zap.Duration("hp_interval", s.cfg.HPInterval),
		zap.Duration("energy_interval", s.cfg.EnergyInterval),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("regeneration scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				// The missed heal is retried when the stat's interval
				// next elapses.
				s.logger.Error("regeneration sweep failed", zap.Error(err))
			}
		}
	}
}

// Tick advances both accumulators by the real elapsed wall time since
// the previous tick and runs any sweep that came due, resetting that
// accumulator to zero.
func (s *Scheduler) Tick() error {
	now := s.now()
	elapsed := now.Sub(s.last)
	s.last = now
	if elapsed < 0 {
		// Clock went backward; hold the accumulators rather than
		// rewind them.
		elapsed = 0
	}
	s.hpAcc += elapsed
	s.energyAcc += elapsed

	caps := s.ledger.Caps()
	var sweepErr error
	if s.hpAcc >= s.cfg.HPInterval {
		s.hpAcc = 0
		if err := s.sweep(ledger.StatHP, s.cfg.HPRate, caps.MaxHP); err != nil {
			sweepErr = err
		}
	}
	if s.energyAcc >= s.cfg.EnergyInterval {
		s.energyAcc = 0
		if err := s.sweep(ledger.StatEnergy, s.cfg.EnergyRate, caps.MaxEnergy); err != nil && sweepErr == nil {
			sweepErr = err
		}
	}
	return sweepErr
}

// sweep restores rate points of stat, up to limit, for every player
// below it, as one transaction. A sweep that finds nobody below the
// limit leaves the store untouched.
func (s *Scheduler) sweep(stat string, rate, limit int) error {
	healed := 0
	err := s.ledger.Atomic(func(t *ledger.Txn) error {
		for _, p := range t.Players() {
			var current int
			switch stat {
			case ledger.StatHP:
				current = p.HP
			case ledger.StatEnergy:
				current = p.Energy
			}
			if current >= limit {
				continue
			}
			if _, err := t.UpdateStat(p.ID, stat, current+rate); err != nil {
				return err
			}
			healed++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if healed > 0 {
		s.logger.Debug("regeneration sweep",
			zap.String("stat", stat),
			zap.Int("players_healed", healed),
		)
	}
	return nil
}
