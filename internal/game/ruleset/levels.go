// Package ruleset holds the static game content loaded at startup: the
// level threshold table and the item catalog. Everything here is
// immutable once loaded.
package ruleset

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// LevelThreshold maps a level to the minimum total experience that
// level requires.
type LevelThreshold struct {
	Level int `yaml:"level"`
	EXP   int `yaml:"exp"`
}

// Levels derives a player level from total experience.
//
// Invariant: thresholds are sorted by ascending EXP and levels rise with
// their thresholds, so LevelFor is non-decreasing in exp.
type Levels struct {
	thresholds []LevelThreshold
}

// levelsFile is the YAML shape of a level table file.
type levelsFile struct {
	Thresholds []LevelThreshold `yaml:"thresholds"`
}

// NewLevels builds a validated level table.
//
// Postcondition: thresholds are sorted by ascending EXP, levels are
// unique and strictly increase along that order, and the lowest
// threshold level is >= 1.
func NewLevels(thresholds []LevelThreshold) (*Levels, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("level table has no thresholds")
	}
	ts := make([]LevelThreshold, len(thresholds))
	copy(ts, thresholds)
	sort.Slice(ts, func(i, j int) bool { return ts[i].EXP < ts[j].EXP })
	for i, t := range ts {
		if t.Level < 1 {
			return nil, fmt.Errorf("level table: level %d must be >= 1", t.Level)
		}
		if t.EXP < 0 {
			return nil, fmt.Errorf("level table: level %d threshold %d must be >= 0", t.Level, t.EXP)
		}
		if i > 0 {
			prev := ts[i-1]
			if t.EXP == prev.EXP {
				return nil, fmt.Errorf("level table: levels %d and %d share threshold %d", prev.Level, t.Level, t.EXP)
			}
			if t.Level <= prev.Level {
				return nil, fmt.Errorf("level table: level %d at threshold %d does not exceed level %d at threshold %d",
					t.Level, t.EXP, prev.Level, prev.EXP)
			}
		}
	}
	return &Levels{thresholds: ts}, nil
}

// LoadLevels reads a level table from a YAML file.
func LoadLevels(path string) (*Levels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var f levelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing level table file %s: %w", path, err)
	}
	levels, err := NewLevels(f.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("validating level table file %s: %w", path, err)
	}
	return levels, nil
}

// LevelFor returns the level whose threshold is the largest value <= exp,
// or the lowest defined level when exp is below every threshold.
//
// Postcondition: the result is a pure function of exp and the table.
func (l *Levels) LevelFor(exp int) int {
	level := l.thresholds[0].Level
	for _, t := range l.thresholds {
		if t.EXP > exp {
			break
		}
		level = t.Level
	}
	return level
}

// Threshold returns the experience floor configured for level, with
// ok=false when the level has no entry.
func (l *Levels) Threshold(level int) (int, bool) {
	for _, t := range l.thresholds {
		if t.Level == level {
			return t.EXP, true
		}
	}
	return 0, false
}

// Thresholds returns a copy of the table in ascending EXP order.
func (l *Levels) Thresholds() []LevelThreshold {
	out := make([]LevelThreshold, len(l.thresholds))
	copy(out, l.thresholds)
	return out
}
