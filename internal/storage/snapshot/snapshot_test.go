package snapshot_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mortemhouse/mortem/internal/storage/snapshot"
)

func tempStore(t *testing.T) *snapshot.Store {
	t.Helper()
	return snapshot.NewStore(filepath.Join(t.TempDir(), "mortem.yaml"))
}

// TestStore_SaveAndLoad_RoundTrip verifies the three maps survive a full
// save/load cycle content-equal, and that save metadata is stamped.
func TestStore_SaveAndLoad_RoundTrip(t *testing.T) {
	store := tempStore(t)

	snap := snapshot.New()
	snap.Players["p1"] = snapshot.Player{HP: 80, Energy: 55, EXP: 600, Level: 5, Coins: 12}
	snap.Players["p2"] = snapshot.Player{HP: 100, Energy: 100}
	snap.Inventories["p1"] = map[string]int{"energy_drink": 2}
	snap.Cooldowns["p1"] = map[string]int64{"search": 1700000000}

	require.NoError(t, store.Save(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, snap.Players, loaded.Players)
	assert.Equal(t, snap.Inventories, loaded.Inventories)
	assert.Equal(t, snap.Cooldowns, loaded.Cooldowns)

	assert.Equal(t, snapshot.SchemaVersion, loaded.Version)
	_, err = uuid.Parse(loaded.SaveID)
	assert.NoError(t, err, "SaveID must be a valid UUID")
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestStore_Load_MissingFile(t *testing.T) {
	store := tempStore(t)
	_, err := store.Load()
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestStore_Load_Corrupt(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{{{ not yaml"), 0644))

	_, err := store.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, snapshot.ErrNotFound)
}

func TestStore_Load_NewerVersionRejected(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("version: 99\n"), 0644))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

// TestStore_Save_AtomicReplace verifies repeated saves replace the file
// in place and leave no temp files behind.
func TestStore_Save_AtomicReplace(t *testing.T) {
	store := tempStore(t)

	first := snapshot.New()
	first.Players["p1"] = snapshot.Player{HP: 10}
	require.NoError(t, store.Save(first))

	second := snapshot.New()
	second.Players["p1"] = snapshot.Player{HP: 90}
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 90, loaded.Players["p1"].HP)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Falsef(t, strings.Contains(e.Name(), ".tmp-"), "temp file %s left behind", e.Name())
	}
	assert.Len(t, entries, 1)
}

func TestStore_SaveAndLoad_Empty(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, store.Save(snapshot.New()))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.NotNil(t, loaded.Players)
	assert.NotNil(t, loaded.Inventories)
	assert.NotNil(t, loaded.Cooldowns)
	assert.Empty(t, loaded.Players)
}

func TestWriteAtomic_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.yaml")
	require.NoError(t, snapshot.WriteAtomic(path, []byte("version: 1\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

// TestStore_Property_RoundTrip verifies content equality across a
// save/load cycle for arbitrary player state.
func TestStore_Property_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := snapshot.NewStore(filepath.Join(t.TempDir(), "state.yaml"))

		snap := snapshot.New()
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z0-9]{1,12}`), 0, 5, rapid.ID[string]).Draw(rt, "ids")
		for _, id := range ids {
			snap.Players[id] = snapshot.Player{
				HP:     rapid.IntRange(0, 100).Draw(rt, "hp"),
				Energy: rapid.IntRange(0, 100).Draw(rt, "energy"),
				EXP:    rapid.IntRange(0, 100000).Draw(rt, "exp"),
				Level:  rapid.IntRange(1, 100).Draw(rt, "level"),
				Coins:  rapid.IntRange(0, 10000).Draw(rt, "coins"),
			}
			if rapid.Bool().Draw(rt, "hasCooldown") {
				snap.Cooldowns[id] = map[string]int64{
					"search": rapid.Int64Range(0, 1<<40).Draw(rt, "ts"),
				}
			}
		}

		require.NoError(rt, store.Save(snap))
		loaded, err := store.Load()
		require.NoError(rt, err)
		assert.Equal(rt, snap.Players, loaded.Players)
		assert.Equal(rt, snap.Cooldowns, loaded.Cooldowns)
	})
}
