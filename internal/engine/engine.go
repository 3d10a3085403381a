// Package engine wires the persistent-state core together: storage,
// content, policy, and the gameplay managers, built from one config.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/config"
	"github.com/mortemhouse/mortem/internal/game/access"
	"github.com/mortemhouse/mortem/internal/game/chance"
	"github.com/mortemhouse/mortem/internal/game/combat"
	"github.com/mortemhouse/mortem/internal/game/cooldown"
	"github.com/mortemhouse/mortem/internal/game/economy"
	"github.com/mortemhouse/mortem/internal/game/progress"
	"github.com/mortemhouse/mortem/internal/game/regen"
	"github.com/mortemhouse/mortem/internal/game/ruleset"
	"github.com/mortemhouse/mortem/internal/ledger"
	"github.com/mortemhouse/mortem/internal/storage/snapshot"
)

// Table IDs the content directory must provide.
const (
	TableAttack   = "attack"
	TableDefense  = "defense"
	TableExercise = "exercise"
)

// Content names the declarative ruleset locations.
type Content struct {
	LevelsFile string
	TablesDir  string
	ItemsDir   string
}

// Engine is the assembled core. Fields are the live components; the
// embedding caller passes them to its own dispatch layer.
type Engine struct {
	Config   config.Config
	Logger   *zap.Logger
	Ledger   *ledger.Ledger
	Levels   *ruleset.Levels
	Catalog  *ruleset.Catalog
	Policy   *access.Store
	Gate     *cooldown.Gate
	Combat   *combat.Resolver
	Economy  *economy.Manager
	Progress *progress.Manager
	Regen    *regen.Scheduler
}

// New builds the engine with the default crypto-backed randomness,
// draw-logged at debug level.
//
// Precondition: cfg has passed Validate.
func New(cfg config.Config, content Content, logger *zap.Logger) (*Engine, error) {
	return NewWithSource(cfg, content, chance.NewLoggedSource(chance.NewCryptoSource(), logger), logger)
}

// NewWithSource builds the engine with an injected randomness source.
func NewWithSource(cfg config.Config, content Content, src chance.Source, logger *zap.Logger) (*Engine, error) {
	levels, err := ruleset.LoadLevels(content.LevelsFile)
	if err != nil {
		return nil, fmt.Errorf("loading levels: %w", err)
	}
	tables, err := chance.LoadTables(content.TablesDir)
	if err != nil {
		return nil, fmt.Errorf("loading tables: %w", err)
	}
	for _, id := range []string{TableAttack, TableDefense, TableExercise} {
		if _, ok := tables[id]; !ok {
			return nil, fmt.Errorf("table %q missing from %s", id, content.TablesDir)
		}
	}
	catalog, err := ruleset.BuildCatalog(content.ItemsDir)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}

	store := snapshot.NewStore(cfg.Storage.Path)
	caps := ledger.Caps{MaxHP: cfg.Stats.MaxHP, MaxEnergy: cfg.Stats.MaxEnergy}
	l, err := ledger.Open(store, levels, caps, logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	policy, err := access.Open(cfg.Storage.PolicyPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening policy store: %w", err)
	}

	e := &Engine{
		Config:  cfg,
		Logger:  logger,
		Ledger:  l,
		Levels:  levels,
		Catalog: catalog,
		Policy:  policy,
		Gate:    cooldown.NewGate(l),
		Combat: combat.NewResolver(l, tables[TableAttack], tables[TableDefense], src, combat.Costs{
			Attack:  cfg.Combat.AttackEnergyCost,
			Defense: cfg.Combat.DefenseEnergyCost,
		}, logger),
		Economy: economy.NewManager(l, catalog, src, economy.Config{
			GachaCost:      cfg.Economy.GachaCost,
			SearchCooldown: cfg.Economy.SearchCooldown,
			SearchChance:   cfg.Economy.SearchChance,
			SearchMinCoins: cfg.Economy.SearchMinCoins,
			SearchMaxCoins: cfg.Economy.SearchMaxCoins,
		}, logger),
		Progress: progress.NewManager(l, tables[TableExercise], src, progress.Config{
			ExerciseCooldown: cfg.Progression.ExerciseCooldown,
			MaxEXPGrant:      cfg.Progression.MaxEXPGrant,
		}, logger),
		Regen: regen.New(l, regen.Config{
			Poll:           cfg.Regen.PollInterval,
			HPRate:         cfg.Regen.HPRate,
			HPInterval:     cfg.Regen.HPInterval,
			EnergyRate:     cfg.Regen.EnergyRate,
			EnergyInterval: cfg.Regen.EnergyInterval,
		}, logger),
	}

	logger.Info("engine assembled",
		zap.Int("levels", len(levels.Thresholds())),
		zap.Int("tables", len(tables)),
		zap.Int("items", catalog.Len()),
	)
	return e, nil
}
