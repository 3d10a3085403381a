// Package economy implements the coin and item operations built on the
// ledger: gacha draws, cooldown-gated coin searching, and item
// consumption with capped stat restores.
package economy

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/game/chance"
	"github.com/mortemhouse/mortem/internal/game/cooldown"
	"github.com/mortemhouse/mortem/internal/game/ruleset"
	"github.com/mortemhouse/mortem/internal/ledger"
)

// ActionSearch is the cooldown key for coin searching.
const ActionSearch = "search"

// ErrUnknownItem reports an item name or ID with no catalog definition.
var ErrUnknownItem = errors.New("unknown item")

// ErrInsufficientCoins reports a purchase refused for lack of balance.
var ErrInsufficientCoins = errors.New("insufficient coins")

// ErrItemNotOwned reports a consumption refused because the player
// holds none of the item.
var ErrItemNotOwned = errors.New("item not owned")

// ErrNoEffect reports an item whose effects touch no consumable stat;
// the item is not consumed.
var ErrNoEffect = errors.New("item has no usable effect")

// ErrEmptyCatalog reports a gacha draw against an empty item catalog.
var ErrEmptyCatalog = errors.New("item catalog is empty")

// Config holds the economy tuning knobs.
type Config struct {
	GachaCost      int
	SearchCooldown time.Duration
	SearchChance   float64
	SearchMinCoins int
	SearchMaxCoins int
}

// Manager runs the economy operations, each as one ledger transaction.
type Manager struct {
	ledger  *ledger.Ledger
	catalog *ruleset.Catalog
	src     chance.Source
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager builds a Manager under the system clock.
//
// Precondition: all references are non-nil and cfg has been validated.
func NewManager(l *ledger.Ledger, catalog *ruleset.Catalog, src chance.Source, cfg Config, logger *zap.Logger) *Manager {
	return NewManagerWithClock(l, catalog, src, cfg, logger, time.Now)
}

// NewManagerWithClock builds a Manager with an injected clock.
func NewManagerWithClock(l *ledger.Ledger, catalog *ruleset.Catalog, src chance.Source, cfg Config, logger *zap.Logger, now func() time.Time) *Manager {
	return &Manager{
		ledger:  l,
		catalog: catalog,
		src:     src,
		cfg:     cfg,
		logger:  logger,
		now:     now,
	}
}

// GachaResult reports one gacha draw.
type GachaResult struct {
	Item       *ruleset.ItemDef
	Cost       int
	CoinsAfter int
}

// Gacha deducts the roll cost and awards one item drawn uniformly from
// the catalog, as one transaction.
//
// Fails with ErrInsufficientCoins, leaving the balance untouched, when
// the player cannot pay.
func (m *Manager) Gacha(playerID string) (GachaResult, error) {
	if m.catalog.Len() == 0 {
		return GachaResult{}, ErrEmptyCatalog
	}

	var res GachaResult
	err := m.ledger.Atomic(func(t *ledger.Txn) error {
		player := t.GetOrCreate(playerID)
		if player.Coins < m.cfg.GachaCost {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientCoins, player.Coins, m.cfg.GachaCost)
		}
		t.RemoveCoins(playerID, m.cfg.GachaCost)

		ids := m.catalog.IDs()
		id := ids[m.src.Intn(len(ids))]
		item, _ := m.catalog.Item(id)
		t.AddItem(playerID, id, 1)

		res = GachaResult{
			Item:       item,
			Cost:       m.cfg.GachaCost,
			CoinsAfter: t.GetOrCreate(playerID).Coins,
		}
		return nil
	})
	if err != nil {
		return GachaResult{}, err
	}

	m.logger.Debug("gacha draw",
		zap.String("player", playerID),
		zap.String("item", res.Item.ID),
		zap.Int("coins_after", res.CoinsAfter),
	)
	return res, nil
}

// SearchResult reports one search attempt.
type SearchResult struct {
	Found      bool
	CoinsFound int
	Balance    int
}

// Search attempts a cooldown-gated coin search. The cooldown is
// committed before the roll, so a search that finds nothing still
// consumes it. On success a uniform coin amount within the configured
// range is credited.
//
// A search inside the cooldown window fails with *cooldown.ActiveError
// and mutates nothing.
func (m *Manager) Search(playerID string) (SearchResult, error) {
	var res SearchResult
	err := m.ledger.Atomic(func(t *ledger.Txn) error {
		t.GetOrCreate(playerID)
		now := m.now()

		st := cooldown.Evaluate(t.Cooldown(playerID, ActionSearch), m.cfg.SearchCooldown, now)
		if st.OnCooldown {
			return &cooldown.ActiveError{Action: ActionSearch, Remaining: st.Remaining}
		}
		t.SetCooldown(playerID, ActionSearch, now.Unix())

		if m.src.Float64() < m.cfg.SearchChance {
			found := m.cfg.SearchMinCoins
			if spread := m.cfg.SearchMaxCoins - m.cfg.SearchMinCoins; spread > 0 {
				found += m.src.Intn(spread + 1)
			}
			res = SearchResult{
				Found:      true,
				CoinsFound: found,
				Balance:    t.AddCoins(playerID, found),
			}
			return nil
		}
		res = SearchResult{Balance: t.GetOrCreate(playerID).Coins}
		return nil
	})
	if err != nil {
		return SearchResult{}, err
	}

	m.logger.Debug("search resolved",
		zap.String("player", playerID),
		zap.Bool("found", res.Found),
		zap.Int("coins_found", res.CoinsFound),
	)
	return res, nil
}

// UseResult reports one consumed item.
type UseResult struct {
	Item    *ruleset.ItemDef
	Applied map[string]int
	Player  ledger.PlayerRecord
}

// UseItem consumes one of the named item, applying its stat effects as
// capped restores. The item is looked up by display name,
// case-insensitively. Applied reports the real per-stat change after
// clamping, which can be 0 for a stat already at its cap. Effects on
// stats that are not consumable (anything besides hp and energy) are
// skipped; an item with only such effects fails with ErrNoEffect and is
// not consumed.
func (m *Manager) UseItem(playerID, name string) (UseResult, error) {
	item, ok := m.catalog.ByName(name)
	if !ok {
		return UseResult{}, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}

	var res UseResult
	err := m.ledger.Atomic(func(t *ledger.Txn) error {
		if t.Inventory(playerID)[item.ID] < 1 {
			return fmt.Errorf("%w: %s", ErrItemNotOwned, item.ID)
		}
		player := t.GetOrCreate(playerID)

		stats := make([]string, 0, len(item.Effects))
		for stat := range item.Effects {
			stats = append(stats, stat)
		}
		sort.Strings(stats)

		applied := make(map[string]int)
		for _, stat := range stats {
			delta := item.Effects[stat]
			var before int
			switch stat {
			case ledger.StatHP:
				before = player.HP
			case ledger.StatEnergy:
				before = player.Energy
			default:
				continue
			}
			rec, err := t.UpdateStat(playerID, stat, before+delta)
			if err != nil {
				return err
			}
			switch stat {
			case ledger.StatHP:
				applied[stat] = rec.HP - before
			case ledger.StatEnergy:
				applied[stat] = rec.Energy - before
			}
			player = rec
		}
		if len(applied) == 0 {
			return fmt.Errorf("%w: %s", ErrNoEffect, item.ID)
		}

		t.RemoveItem(playerID, item.ID, 1)
		res = UseResult{Item: item, Applied: applied, Player: player}
		return nil
	})
	if err != nil {
		return UseResult{}, err
	}

	m.logger.Debug("item used",
		zap.String("player", playerID),
		zap.String("item", res.Item.ID),
	)
	return res, nil
}
