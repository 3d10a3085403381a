// Package ledger implements the durable player-state store: records,
// inventories and cooldown timestamps guarded by one writer lock, with
// the whole store persisted before any mutating call returns.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/game/ruleset"
	"github.com/mortemhouse/mortem/internal/storage/snapshot"
)

// Stat names accepted by UpdateStat.
const (
	StatHP     = "hp"
	StatEnergy = "energy"
	StatEXP    = "exp"
	StatLevel  = "level"
	StatCoins  = "coins"
)

// ErrInvalidStat reports an unrecognized stat key passed to UpdateStat.
var ErrInvalidStat = errors.New("invalid stat")

// ErrPersistence reports a failed durable write. The in-memory mutation
// it follows is kept, not rolled back.
var ErrPersistence = errors.New("persistence failure")

// Caps bounds the clamped stats.
type Caps struct {
	MaxHP     int
	MaxEnergy int
}

// PlayerRecord is one player's stats. Level is a projection of EXP via
// the level table, recomputed whenever EXP is written.
type PlayerRecord struct {
	ID     string
	HP     int
	Energy int
	EXP    int
	Level  int
	Coins  int
}

// Inventory maps item IDs to held quantities.
//
// Invariant: quantities are always > 0; an entry reaching 0 is deleted.
type Inventory map[string]int

// Stats summarises store contents for operational logging.
type Stats struct {
	Players          int
	InventoryEntries int
	CooldownEntries  int
}

// Ledger is the single mutable store for all player state. One mutex
// serializes every logical operation, commands and scheduler sweeps
// alike; persistence happens inside the critical section so no two
// operations can interleave between mutation and save.
type Ledger struct {
	store  *snapshot.Store
	levels *ruleset.Levels
	caps   Caps
	logger *zap.Logger

	mu          sync.Mutex
	players     map[string]*PlayerRecord
	inventories map[string]Inventory
	cooldowns   map[string]map[string]int64
}

// Open builds a Ledger over store, loading any existing snapshot.
//
// A missing snapshot initialises an empty store and persists it
// immediately. An unreadable, corrupt or newer-versioned snapshot is
// logged at error level and replaced by an empty store, so dead state
// never blocks startup. Open fails only when caps are non-positive or
// the initial persist of an empty store fails.
func Open(store *snapshot.Store, levels *ruleset.Levels, caps Caps, logger *zap.Logger) (*Ledger, error) {
	if caps.MaxHP < 1 || caps.MaxEnergy < 1 {
		return nil, fmt.Errorf("ledger: caps must be positive, got MaxHP=%d MaxEnergy=%d", caps.MaxHP, caps.MaxEnergy)
	}
	l := &Ledger{
		store:       store,
		levels:      levels,
		caps:        caps,
		logger:      logger,
		players:     make(map[string]*PlayerRecord),
		inventories: make(map[string]Inventory),
		cooldowns:   make(map[string]map[string]int64),
	}

	snap, err := store.Load()
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		logger.Info("no snapshot found, starting empty", zap.String("path", store.Path()))
		if perr := l.persistLocked(); perr != nil {
			return nil, perr
		}
	case err != nil:
		logger.Error("snapshot unreadable, starting empty", zap.String("path", store.Path()), zap.Error(err))
		if perr := l.persistLocked(); perr != nil {
			return nil, perr
		}
	default:
		l.restore(snap)
		logger.Info("snapshot loaded",
			zap.String("path", store.Path()),
			zap.String("save_id", snap.SaveID),
			zap.Int("players", len(l.players)),
		)
	}
	return l, nil
}

// restore copies a loaded snapshot into the in-memory maps, backfilling
// the per-player inventory and cooldown entries older files may lack.
func (l *Ledger) restore(snap *snapshot.Snapshot) {
	for id, p := range snap.Players {
		l.players[id] = &PlayerRecord{
			ID:     id,
			HP:     p.HP,
			Energy: p.Energy,
			EXP:    p.EXP,
			Level:  p.Level,
			Coins:  p.Coins,
		}
		l.inventories[id] = make(Inventory)
		l.cooldowns[id] = make(map[string]int64)
	}
	for id, inv := range snap.Inventories {
		target := l.inventories[id]
		if target == nil {
			target = make(Inventory)
			l.inventories[id] = target
		}
		for item, qty := range inv {
			target[item] = qty
		}
	}
	for id, cds := range snap.Cooldowns {
		target := l.cooldowns[id]
		if target == nil {
			target = make(map[string]int64)
			l.cooldowns[id] = target
		}
		for action, ts := range cds {
			target[action] = ts
		}
	}
}

// Caps returns the configured stat bounds.
func (l *Ledger) Caps() Caps {
	return l.caps
}

// Atomic runs fn as one logical operation under the writer lock,
// persisting once after fn succeeds. When fn returns an error the
// in-memory store is restored to its pre-transaction state, so a failed
// precondition leaves no partial mutation. A persist failure after fn
// succeeds keeps the in-memory mutation and returns ErrPersistence
// wrapped with the cause. Read-only transactions skip the persist.
//
// Precondition: fn must not call back into the Ledger's public methods;
// all access inside fn goes through the Txn.
func (l *Ledger) Atomic(fn func(*Txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	players, inventories, cooldowns := l.copyStateLocked()
	txn := &Txn{l: l}
	if err := fn(txn); err != nil {
		l.players, l.inventories, l.cooldowns = players, inventories, cooldowns
		return err
	}
	if !txn.dirty {
		return nil
	}
	return l.persistLocked()
}

// copyStateLocked deep-copies the three maps for transaction rollback.
func (l *Ledger) copyStateLocked() (map[string]*PlayerRecord, map[string]Inventory, map[string]map[string]int64) {
	players := make(map[string]*PlayerRecord, len(l.players))
	for id, p := range l.players {
		cp := *p
		players[id] = &cp
	}
	inventories := make(map[string]Inventory, len(l.inventories))
	for id, inv := range l.inventories {
		cp := make(Inventory, len(inv))
		for item, qty := range inv {
			cp[item] = qty
		}
		inventories[id] = cp
	}
	cooldowns := make(map[string]map[string]int64, len(l.cooldowns))
	for id, cds := range l.cooldowns {
		cp := make(map[string]int64, len(cds))
		for action, ts := range cds {
			cp[action] = ts
		}
		cooldowns[id] = cp
	}
	return players, inventories, cooldowns
}

// persistLocked serializes the entire store and writes it through the
// snapshot store. Called with the writer lock held.
func (l *Ledger) persistLocked() error {
	snap := snapshot.New()
	for id, p := range l.players {
		snap.Players[id] = snapshot.Player{
			HP:     p.HP,
			Energy: p.Energy,
			EXP:    p.EXP,
			Level:  p.Level,
			Coins:  p.Coins,
		}
	}
	for id, inv := range l.inventories {
		cp := make(map[string]int, len(inv))
		for item, qty := range inv {
			cp[item] = qty
		}
		snap.Inventories[id] = cp
	}
	for id, cds := range l.cooldowns {
		cp := make(map[string]int64, len(cds))
		for action, ts := range cds {
			cp[action] = ts
		}
		snap.Cooldowns[id] = cp
	}

	if err := l.store.Save(snap); err != nil {
		l.logger.Error("persisting store failed",
			zap.String("path", l.store.Path()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// GetOrCreate returns the record for id, creating and persisting a
// default one on first reference.
//
// Postcondition: the returned record has hp=MaxHP, energy=MaxEnergy,
// exp=0 and the lowest table level when newly created; repeat calls
// return the stored record unchanged.
func (l *Ledger) GetOrCreate(id string) (PlayerRecord, error) {
	var rec PlayerRecord
	err := l.Atomic(func(t *Txn) error {
		rec = t.GetOrCreate(id)
		return nil
	})
	return rec, err
}

// UpdateStat sets a single stat and persists.
//
// Fails with ErrInvalidStat for an unrecognized stat key. Writes clamp
// to the stat's legal domain and an exp write recomputes the level
// projection.
func (l *Ledger) UpdateStat(id, stat string, value int) (PlayerRecord, error) {
	var rec PlayerRecord
	err := l.Atomic(func(t *Txn) error {
		r, err := t.UpdateStat(id, stat, value)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

// Inventory returns a copy of id's inventory, lazily creating the
// player on first reference.
func (l *Ledger) Inventory(id string) (Inventory, error) {
	var inv Inventory
	err := l.Atomic(func(t *Txn) error {
		inv = t.Inventory(id)
		return nil
	})
	return inv, err
}

// AddItem adds qty of item to id's inventory and returns the updated
// inventory copy.
//
// Precondition: qty >= 1.
func (l *Ledger) AddItem(id, item string, qty int) (Inventory, error) {
	if qty < 1 {
		return nil, fmt.Errorf("ledger: AddItem quantity %d must be >= 1", qty)
	}
	var inv Inventory
	err := l.Atomic(func(t *Txn) error {
		t.AddItem(id, item, qty)
		inv = t.Inventory(id)
		return nil
	})
	return inv, err
}

// RemoveItem removes qty of item from id's inventory. Returns false,
// with no mutation, when the held quantity is insufficient; a quantity
// reaching 0 deletes the entry.
//
// Precondition: qty >= 1.
func (l *Ledger) RemoveItem(id, item string, qty int) (bool, error) {
	if qty < 1 {
		return false, fmt.Errorf("ledger: RemoveItem quantity %d must be >= 1", qty)
	}
	var ok bool
	err := l.Atomic(func(t *Txn) error {
		ok = t.RemoveItem(id, item, qty)
		return nil
	})
	return ok, err
}

// SetCooldown records the last-used timestamp for (id, action).
//
// Precondition: ts >= 0 (Unix seconds).
func (l *Ledger) SetCooldown(id, action string, ts int64) error {
	if ts < 0 {
		return fmt.Errorf("ledger: SetCooldown timestamp %d must be >= 0", ts)
	}
	return l.Atomic(func(t *Txn) error {
		t.SetCooldown(id, action, ts)
		return nil
	})
}

// Cooldown returns the last-used timestamp for (id, action), 0 when the
// action has never been used. The player is lazily created on first
// reference.
func (l *Ledger) Cooldown(id, action string) (int64, error) {
	var ts int64
	err := l.Atomic(func(t *Txn) error {
		ts = t.Cooldown(id, action)
		return nil
	})
	return ts, err
}

// AddCoins credits amount to id's balance and returns the new balance.
//
// Precondition: amount >= 0.
func (l *Ledger) AddCoins(id string, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("ledger: AddCoins amount %d must be >= 0", amount)
	}
	var balance int
	err := l.Atomic(func(t *Txn) error {
		balance = t.AddCoins(id, amount)
		return nil
	})
	return balance, err
}

// RemoveCoins debits amount from id's balance. Returns false, with no
// mutation, when the balance is insufficient.
//
// Precondition: amount >= 0.
func (l *Ledger) RemoveCoins(id string, amount int) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("ledger: RemoveCoins amount %d must be >= 0", amount)
	}
	var ok bool
	err := l.Atomic(func(t *Txn) error {
		ok = t.RemoveCoins(id, amount)
		return nil
	})
	return ok, err
}

// SnapshotAllPlayers returns a copy of every tracked record keyed by ID.
// A pure read: no records are created and nothing is persisted.
func (l *Ledger) SnapshotAllPlayers() map[string]PlayerRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]PlayerRecord, len(l.players))
	for id, p := range l.players {
		out[id] = *p
	}
	return out
}

// Stats reports store contents for operational logging.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{Players: len(l.players)}
	for _, inv := range l.inventories {
		s.InventoryEntries += len(inv)
	}
	for _, cds := range l.cooldowns {
		s.CooldownEntries += len(cds)
	}
	return s
}

// sortedIDsLocked returns all player IDs in ascending order for
// deterministic iteration.
func (l *Ledger) sortedIDsLocked() []string {
	ids := make([]string, 0, len(l.players))
	for id := range l.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
