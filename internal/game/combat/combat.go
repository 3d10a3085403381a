// Package combat resolves single attack exchanges between two players:
// one damage draw, one optional block draw, energy costs and the HP
// deduction, committed as one ledger transaction.
package combat

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/game/chance"
	"github.com/mortemhouse/mortem/internal/ledger"
)

// ErrSelfTarget reports an attack aimed at the attacker themselves.
var ErrSelfTarget = errors.New("attacker cannot target self")

// ErrInsufficientEnergy reports an attack refused because the attacker
// lacks the energy cost.
var ErrInsufficientEnergy = errors.New("insufficient energy to attack")

// Costs holds the energy prices of one exchange.
type Costs struct {
	Attack  int
	Defense int
}

// AttackOutcome reports one resolved exchange.
type AttackOutcome struct {
	AttackerID          string
	DefenderID          string
	RawDamage           int
	Block               int
	FinalDamage         int
	AttackerEnergyAfter int
	DefenderHPAfter     int
}

// Resolver computes attack exchanges against the ledger using the
// attack and defense probability tables.
type Resolver struct {
	ledger  *ledger.Ledger
	attack  *chance.Table
	defense *chance.Table
	src     chance.Source
	costs   Costs
	logger  *zap.Logger
}

// NewResolver builds a Resolver.
//
// Precondition: all references are non-nil and costs are non-negative.
func NewResolver(l *ledger.Ledger, attack, defense *chance.Table, src chance.Source, costs Costs, logger *zap.Logger) *Resolver {
	return &Resolver{
		ledger:  l,
		attack:  attack,
		defense: defense,
		src:     src,
		costs:   costs,
		logger:  logger,
	}
}

// ResolveAttack runs one exchange from attackerID against defenderID as
// a single ledger transaction.
//
// The attacker pays the attack energy cost; the defender blocks, and
// pays the defense cost, only while holding at least that much energy;
// final damage is raw damage minus block, floored at 0, and comes off
// the defender's HP, floored at 0. Draw order is attack then block, so
// a seeded source reproduces exact outcomes.
//
// Fails with ErrSelfTarget when attackerID == defenderID and with
// ErrInsufficientEnergy when the attacker cannot pay; neither path
// mutates any state.
func (r *Resolver) ResolveAttack(attackerID, defenderID string) (AttackOutcome, error) {
	if attackerID == defenderID {
		return AttackOutcome{}, ErrSelfTarget
	}

	var out AttackOutcome
	err := r.ledger.Atomic(func(t *ledger.Txn) error {
		attacker := t.GetOrCreate(attackerID)
		defender := t.GetOrCreate(defenderID)

		if attacker.Energy < r.costs.Attack {
			return ErrInsufficientEnergy
		}

		raw := r.attack.Resolve(attacker.Level, r.src)

		block := 0
		if defender.Energy >= r.costs.Defense {
			block = r.defense.Resolve(defender.Level, r.src)
			if _, err := t.UpdateStat(defenderID, ledger.StatEnergy, defender.Energy-r.costs.Defense); err != nil {
				return err
			}
		}

		final := raw - block
		if final < 0 {
			final = 0
		}

		attackerAfter, err := t.UpdateStat(attackerID, ledger.StatEnergy, attacker.Energy-r.costs.Attack)
		if err != nil {
			return err
		}
		defenderAfter, err := t.UpdateStat(defenderID, ledger.StatHP, defender.HP-final)
		if err != nil {
			return err
		}

		out = AttackOutcome{
			AttackerID:          attackerID,
			DefenderID:          defenderID,
			RawDamage:           raw,
			Block:               block,
			FinalDamage:         final,
			AttackerEnergyAfter: attackerAfter.Energy,
			DefenderHPAfter:     defenderAfter.HP,
		}
		return nil
	})
	if err != nil {
		return AttackOutcome{}, err
	}

	r.logger.Debug("attack resolved",
		zap.String("attacker", out.AttackerID),
		zap.String("defender", out.DefenderID),
		zap.Int("raw_damage", out.RawDamage),
		zap.Int("block", out.Block),
		zap.Int("final_damage", out.FinalDamage),
		zap.Int("attacker_energy_after", out.AttackerEnergyAfter),
		zap.Int("defender_hp_after", out.DefenderHPAfter),
	)
	return out, nil
}
