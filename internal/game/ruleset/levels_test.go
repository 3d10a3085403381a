package ruleset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mortemhouse/mortem/internal/game/ruleset"
)

func standardLevels(t *testing.T) *ruleset.Levels {
	t.Helper()
	levels, err := ruleset.NewLevels([]ruleset.LevelThreshold{
		{Level: 1, EXP: 0},
		{Level: 5, EXP: 500},
		{Level: 10, EXP: 1000},
		{Level: 15, EXP: 1500},
		{Level: 100, EXP: 10000},
	})
	require.NoError(t, err)
	return levels
}

// TestLevels_LevelFor walks the threshold boundaries of the standard table.
func TestLevels_LevelFor(t *testing.T) {
	levels := standardLevels(t)

	cases := []struct {
		exp  int
		want int
	}{
		{0, 1},
		{1, 1},
		{499, 1},
		{500, 5},
		{600, 5},
		{999, 5},
		{1000, 10},
		{1499, 10},
		{1500, 15},
		{9999, 15},
		{10000, 100},
		{123456, 100},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, levels.LevelFor(tc.exp), "exp %d", tc.exp)
	}
}

// TestLevels_LevelFor_BelowAllThresholds verifies fallback to the lowest
// defined level when no threshold qualifies.
func TestLevels_LevelFor_BelowAllThresholds(t *testing.T) {
	levels, err := ruleset.NewLevels([]ruleset.LevelThreshold{
		{Level: 3, EXP: 100},
		{Level: 7, EXP: 700},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, levels.LevelFor(0))
	assert.Equal(t, 3, levels.LevelFor(99))
}

func TestNewLevels_Validation(t *testing.T) {
	cases := []struct {
		name       string
		thresholds []ruleset.LevelThreshold
	}{
		{"empty", nil},
		{"level below one", []ruleset.LevelThreshold{{Level: 0, EXP: 0}}},
		{"negative threshold", []ruleset.LevelThreshold{{Level: 1, EXP: -1}}},
		{"duplicate threshold", []ruleset.LevelThreshold{
			{Level: 1, EXP: 0}, {Level: 2, EXP: 0},
		}},
		{"level order inverted against exp order", []ruleset.LevelThreshold{
			{Level: 5, EXP: 0}, {Level: 1, EXP: 500},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ruleset.NewLevels(tc.thresholds)
			assert.Error(t, err)
		})
	}
}

func TestLevels_Threshold(t *testing.T) {
	levels := standardLevels(t)

	exp, ok := levels.Threshold(10)
	require.True(t, ok)
	assert.Equal(t, 1000, exp)

	_, ok = levels.Threshold(42)
	assert.False(t, ok)
}

// TestLevels_Property_LevelForNonDecreasing verifies monotonicity over
// arbitrary experience pairs.
func TestLevels_Property_LevelForNonDecreasing(t *testing.T) {
	levels := standardLevels(t)

	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.IntRange(0, 20000).Draw(rt, "a")
		b := rapid.IntRange(0, 20000).Draw(rt, "b")
		if a > b {
			a, b = b, a
		}
		assert.LessOrEqual(rt, levels.LevelFor(a), levels.LevelFor(b),
			"LevelFor must be non-decreasing in exp")
	})
}

// TestLevels_Property_ThresholdRoundTrip verifies LevelFor(threshold(L)) == L
// for every configured level.
func TestLevels_Property_ThresholdRoundTrip(t *testing.T) {
	levels := standardLevels(t)

	for _, th := range levels.Thresholds() {
		assert.Equalf(t, th.Level, levels.LevelFor(th.EXP),
			"level %d at threshold %d", th.Level, th.EXP)
	}
}

func TestLoadLevels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levels.yaml")
	content := `thresholds:
  - { level: 1, exp: 0 }
  - { level: 5, exp: 500 }
  - { level: 10, exp: 1000 }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	levels, err := ruleset.LoadLevels(path)
	require.NoError(t, err)
	assert.Equal(t, 5, levels.LevelFor(700))

	t.Run("missing file", func(t *testing.T) {
		_, err := ruleset.LoadLevels(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid table", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("thresholds: []\n"), 0o644))
		_, err := ruleset.LoadLevels(bad)
		assert.Error(t, err)
	})
}
