// Package progress implements character advancement: cooldown-gated
// exercise, bounded EXP grants, and full restores.
package progress

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/game/chance"
	"github.com/mortemhouse/mortem/internal/game/cooldown"
	"github.com/mortemhouse/mortem/internal/ledger"
)

// ActionExercise is the cooldown key for training.
const ActionExercise = "exercise"

// ErrNonPositiveAmount reports a grant of zero or negative EXP.
var ErrNonPositiveAmount = errors.New("amount must be positive")

// Config holds the progression tuning knobs.
type Config struct {
	ExerciseCooldown time.Duration
	MaxEXPGrant      int
}

// Manager runs the progression operations, each as one ledger
// transaction.
type Manager struct {
	ledger *ledger.Ledger
	table  *chance.Table
	src    chance.Source
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewManager builds a Manager under the system clock. table holds the
// level-indexed exercise EXP outcomes.
func NewManager(l *ledger.Ledger, table *chance.Table, src chance.Source, cfg Config, logger *zap.Logger) *Manager {
	return NewManagerWithClock(l, table, src, cfg, logger, time.Now)
}

// NewManagerWithClock builds a Manager with an injected clock.
func NewManagerWithClock(l *ledger.Ledger, table *chance.Table, src chance.Source, cfg Config, logger *zap.Logger, now func() time.Time) *Manager {
	return &Manager{
		ledger: l,
		table:  table,
		src:    src,
		cfg:    cfg,
		logger: logger,
		now:    now,
	}
}

// ExerciseResult reports one training session.
type ExerciseResult struct {
	EXPGained int
	EXPAfter  int
	Level     int
	LeveledUp bool
}

// Exercise runs a cooldown-gated training session. The cooldown is
// committed before the draw, the gained EXP comes from the tier for
// the player's level at the start of the session, and the stored level
// is recomputed from the new total.
//
// A session inside the cooldown window fails with
// *cooldown.ActiveError and mutates nothing.
func (m *Manager) Exercise(playerID string) (ExerciseResult, error) {
	var res ExerciseResult
	err := m.ledger.Atomic(func(t *ledger.Txn) error {
		player := t.GetOrCreate(playerID)
		now := m.now()

		st := cooldown.Evaluate(t.Cooldown(playerID, ActionExercise), m.cfg.ExerciseCooldown, now)
		if st.OnCooldown {
			return &cooldown.ActiveError{Action: ActionExercise, Remaining: st.Remaining}
		}
		t.SetCooldown(playerID, ActionExercise, now.Unix())

		gained := m.table.Resolve(player.Level, m.src)
		rec, err := t.UpdateStat(playerID, ledger.StatEXP, player.EXP+gained)
		if err != nil {
			return err
		}
		res = ExerciseResult{
			EXPGained: gained,
			EXPAfter:  rec.EXP,
			Level:     rec.Level,
			LeveledUp: rec.Level > player.Level,
		}
		return nil
	})
	if err != nil {
		return ExerciseResult{}, err
	}

	m.logger.Debug("exercise resolved",
		zap.String("player", playerID),
		zap.Int("exp_gained", res.EXPGained),
		zap.Int("level", res.Level),
		zap.Bool("leveled_up", res.LeveledUp),
	)
	return res, nil
}

// GrantResult reports one EXP grant.
type GrantResult struct {
	Granted   int
	EXPAfter  int
	Level     int
	LeveledUp bool
}

// GrantEXP credits amount EXP to the player. The amount must be
// positive; anything above the configured per-call ceiling is clamped
// to it, and Granted reports the credited value.
func (m *Manager) GrantEXP(playerID string, amount int) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, fmt.Errorf("%w: %d", ErrNonPositiveAmount, amount)
	}
	if amount > m.cfg.MaxEXPGrant {
		amount = m.cfg.MaxEXPGrant
	}

	var res GrantResult
	err := m.ledger.Atomic(func(t *ledger.Txn) error {
		player := t.GetOrCreate(playerID)
		rec, err := t.UpdateStat(playerID, ledger.StatEXP, player.EXP+amount)
		if err != nil {
			return err
		}
		res = GrantResult{
			Granted:   amount,
			EXPAfter:  rec.EXP,
			Level:     rec.Level,
			LeveledUp: rec.Level > player.Level,
		}
		return nil
	})
	if err != nil {
		return GrantResult{}, err
	}

	m.logger.Info("exp granted",
		zap.String("player", playerID),
		zap.Int("amount", res.Granted),
		zap.Int("level", res.Level),
	)
	return res, nil
}

// Heal restores the player's hp and energy to their caps and returns
// the record afterward.
func (m *Manager) Heal(playerID string) (ledger.PlayerRecord, error) {
	caps := m.ledger.Caps()

	var rec ledger.PlayerRecord
	err := m.ledger.Atomic(func(t *ledger.Txn) error {
		if _, err := t.UpdateStat(playerID, ledger.StatHP, caps.MaxHP); err != nil {
			return err
		}
		r, err := t.UpdateStat(playerID, ledger.StatEnergy, caps.MaxEnergy)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return ledger.PlayerRecord{}, err
	}

	m.logger.Info("player healed", zap.String("player", playerID))
	return rec, nil
}
