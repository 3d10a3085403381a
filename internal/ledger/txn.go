package ledger

import (
	"fmt"

	"go.uber.org/zap"
)

// Txn is one logical operation's view of the store, valid only inside
// the Atomic callback that created it. Its operations mutate in memory
// without persisting; the enclosing Atomic persists once at commit.
type Txn struct {
	l     *Ledger
	dirty bool
}

// ensure returns the record for id, creating it with defaults on first
// reference.
func (t *Txn) ensure(id string) *PlayerRecord {
	if p, ok := t.l.players[id]; ok {
		return p
	}
	p := &PlayerRecord{
		ID:     id,
		HP:     t.l.caps.MaxHP,
		Energy: t.l.caps.MaxEnergy,
		EXP:    0,
		Level:  t.l.levels.LevelFor(0),
		Coins:  0,
	}
	t.l.players[id] = p
	t.l.inventories[id] = make(Inventory)
	t.l.cooldowns[id] = make(map[string]int64)
	t.dirty = true
	t.l.logger.Debug("player record created", zap.String("player", id))
	return p
}

// GetOrCreate returns a copy of id's record, creating it on first
// reference.
func (t *Txn) GetOrCreate(id string) PlayerRecord {
	return *t.ensure(id)
}

// UpdateStat sets a single stat on id's record, clamping to the stat's
// legal domain. An exp write recomputes the level projection. Fails
// with ErrInvalidStat for an unrecognized stat key.
func (t *Txn) UpdateStat(id, stat string, value int) (PlayerRecord, error) {
	p := t.ensure(id)
	switch stat {
	case StatHP:
		p.HP = clamp(value, 0, t.l.caps.MaxHP)
	case StatEnergy:
		p.Energy = clamp(value, 0, t.l.caps.MaxEnergy)
	case StatEXP:
		if value < 0 {
			value = 0
		}
		p.EXP = value
		p.Level = t.l.levels.LevelFor(value)
	case StatLevel:
		if value < 1 {
			value = 1
		}
		p.Level = value
	case StatCoins:
		if value < 0 {
			value = 0
		}
		p.Coins = value
	default:
		return PlayerRecord{}, fmt.Errorf("%w: %q", ErrInvalidStat, stat)
	}
	t.dirty = true
	return *p, nil
}

// Inventory returns a copy of id's inventory, creating the player on
// first reference.
func (t *Txn) Inventory(id string) Inventory {
	t.ensure(id)
	inv := t.l.inventories[id]
	out := make(Inventory, len(inv))
	for item, qty := range inv {
		out[item] = qty
	}
	return out
}

// AddItem adds qty of item to id's inventory.
//
// Precondition: qty >= 1.
func (t *Txn) AddItem(id, item string, qty int) {
	t.ensure(id)
	t.l.inventories[id][item] += qty
	t.dirty = true
}

// RemoveItem removes qty of item from id's inventory. Returns false,
// with no mutation, when the held quantity is insufficient. A quantity
// reaching 0 deletes the entry.
//
// Precondition: qty >= 1.
func (t *Txn) RemoveItem(id, item string, qty int) bool {
	t.ensure(id)
	inv := t.l.inventories[id]
	held := inv[item]
	if held < qty {
		return false
	}
	if held == qty {
		delete(inv, item)
	} else {
		inv[item] = held - qty
	}
	t.dirty = true
	return true
}

// SetCooldown records the last-used timestamp for (id, action).
func (t *Txn) SetCooldown(id, action string, ts int64) {
	t.ensure(id)
	t.l.cooldowns[id][action] = ts
	t.dirty = true
}

// Cooldown returns the last-used timestamp for (id, action), 0 when the
// action has never been used.
func (t *Txn) Cooldown(id, action string) int64 {
	t.ensure(id)
	return t.l.cooldowns[id][action]
}

// AddCoins credits amount and returns the new balance.
//
// Precondition: amount >= 0.
func (t *Txn) AddCoins(id string, amount int) int {
	p := t.ensure(id)
	p.Coins += amount
	t.dirty = true
	return p.Coins
}

// RemoveCoins debits amount. Returns false, with no mutation, when the
// balance is insufficient.
//
// Precondition: amount >= 0.
func (t *Txn) RemoveCoins(id string, amount int) bool {
	p := t.ensure(id)
	if p.Coins < amount {
		return false
	}
	p.Coins -= amount
	t.dirty = true
	return true
}

// Players returns a copy of every tracked record in ascending ID order.
// Does not create records.
func (t *Txn) Players() []PlayerRecord {
	ids := t.l.sortedIDsLocked()
	out := make([]PlayerRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.l.players[id])
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
