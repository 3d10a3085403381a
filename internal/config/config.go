// Package config provides Viper-based configuration loading for the engine.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageConfig holds the durable file locations.
type StorageConfig struct {
	// Path is the player store blob location.
	Path string `mapstructure:"path"`
	// PolicyPath is the access-policy file location.
	PolicyPath string `mapstructure:"policy_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// StatsConfig holds the resource caps every player record is clamped to.
type StatsConfig struct {
	MaxHP     int `mapstructure:"max_hp"`
	MaxEnergy int `mapstructure:"max_energy"`
}

// CombatConfig holds the energy prices of an attack exchange.
type CombatConfig struct {
	// AttackEnergyCost is deducted from the attacker on every resolved attack.
	AttackEnergyCost int `mapstructure:"attack_energy_cost"`
	// DefenseEnergyCost is deducted from the defender when a block is rolled.
	DefenseEnergyCost int `mapstructure:"defense_energy_cost"`
}

// RegenConfig holds the passive regeneration timers.
type RegenConfig struct {
	// PollInterval is the scheduler loop tick.
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	HPRate         int           `mapstructure:"hp_rate"`
	HPInterval     time.Duration `mapstructure:"hp_interval"`
	EnergyRate     int           `mapstructure:"energy_rate"`
	EnergyInterval time.Duration `mapstructure:"energy_interval"`
}

// EconomyConfig holds the gacha and search tuning.
type EconomyConfig struct {
	GachaCost      int           `mapstructure:"gacha_cost"`
	SearchCooldown time.Duration `mapstructure:"search_cooldown"`
	// SearchChance is the success probability of one search, in [0, 1].
	SearchChance   float64 `mapstructure:"search_chance"`
	SearchMinCoins int     `mapstructure:"search_min_coins"`
	SearchMaxCoins int     `mapstructure:"search_max_coins"`
}

// ProgressionConfig holds the training and grant limits.
type ProgressionConfig struct {
	ExerciseCooldown time.Duration `mapstructure:"exercise_cooldown"`
	MaxEXPGrant      int           `mapstructure:"max_exp_grant"`
}

// Config is the top-level application configuration.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Combat      CombatConfig      `mapstructure:"combat"`
	Regen       RegenConfig       `mapstructure:"regen"`
	Economy     EconomyConfig     `mapstructure:"economy"`
	Progression ProgressionConfig `mapstructure:"progression"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStats(c.Stats); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRegen(c.Regen); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEconomy(c.Economy); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateProgression(c.Progression); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	var errs []string
	if s.Path == "" {
		errs = append(errs, "storage.path must not be empty")
	}
	if s.PolicyPath == "" {
		errs = append(errs, "storage.policy_path must not be empty")
	}
	if s.Path != "" && s.Path == s.PolicyPath {
		errs = append(errs, "storage.path and storage.policy_path must differ")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateStats(s StatsConfig) error {
	var errs []string
	if s.MaxHP < 1 {
		errs = append(errs, fmt.Sprintf("stats.max_hp must be >= 1, got %d", s.MaxHP))
	}
	if s.MaxEnergy < 1 {
		errs = append(errs, fmt.Sprintf("stats.max_energy must be >= 1, got %d", s.MaxEnergy))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.AttackEnergyCost < 0 {
		errs = append(errs, fmt.Sprintf("combat.attack_energy_cost must be >= 0, got %d", c.AttackEnergyCost))
	}
	if c.DefenseEnergyCost < 0 {
		errs = append(errs, fmt.Sprintf("combat.defense_energy_cost must be >= 0, got %d", c.DefenseEnergyCost))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRegen(r RegenConfig) error {
	var errs []string
	if r.PollInterval <= 0 {
		errs = append(errs, "regen.poll_interval must be positive")
	}
	if r.HPRate < 1 {
		errs = append(errs, fmt.Sprintf("regen.hp_rate must be >= 1, got %d", r.HPRate))
	}
	if r.HPInterval <= 0 {
		errs = append(errs, "regen.hp_interval must be positive")
	}
	if r.EnergyRate < 1 {
		errs = append(errs, fmt.Sprintf("regen.energy_rate must be >= 1, got %d", r.EnergyRate))
	}
	if r.EnergyInterval <= 0 {
		errs = append(errs, "regen.energy_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEconomy(e EconomyConfig) error {
	var errs []string
	if e.GachaCost < 0 {
		errs = append(errs, fmt.Sprintf("economy.gacha_cost must be >= 0, got %d", e.GachaCost))
	}
	if e.SearchCooldown < 0 {
		errs = append(errs, "economy.search_cooldown must not be negative")
	}
	if e.SearchChance < 0 || e.SearchChance > 1 {
		errs = append(errs, fmt.Sprintf("economy.search_chance must be in [0, 1], got %g", e.SearchChance))
	}
	if e.SearchMinCoins < 0 {
		errs = append(errs, fmt.Sprintf("economy.search_min_coins must be >= 0, got %d", e.SearchMinCoins))
	}
	if e.SearchMaxCoins < e.SearchMinCoins {
		errs = append(errs, "economy.search_max_coins must not be below economy.search_min_coins")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateProgression(p ProgressionConfig) error {
	var errs []string
	if p.ExerciseCooldown < 0 {
		errs = append(errs, "progression.exercise_cooldown must not be negative")
	}
	if p.MaxEXPGrant < 1 {
		errs = append(errs, fmt.Sprintf("progression.max_exp_grant must be >= 1, got %d", p.MaxEXPGrant))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MORTEM_ prefix
	v.SetEnvPrefix("MORTEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "data/mortem.yaml")
	v.SetDefault("storage.policy_path", "data/policy.yaml")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("stats.max_hp", 100)
	v.SetDefault("stats.max_energy", 100)

	v.SetDefault("combat.attack_energy_cost", 10)
	v.SetDefault("combat.defense_energy_cost", 5)

	v.SetDefault("regen.poll_interval", "60s")
	v.SetDefault("regen.hp_rate", 2)
	v.SetDefault("regen.hp_interval", "5m")
	v.SetDefault("regen.energy_rate", 2)
	v.SetDefault("regen.energy_interval", "3m")

	v.SetDefault("economy.gacha_cost", 10)
	v.SetDefault("economy.search_cooldown", "2h")
	v.SetDefault("economy.search_chance", 0.8)
	v.SetDefault("economy.search_min_coins", 5)
	v.SetDefault("economy.search_max_coins", 10)

	v.SetDefault("progression.exercise_cooldown", "24h")
	v.SetDefault("progression.max_exp_grant", 10000)
}
