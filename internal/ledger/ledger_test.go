package ledger_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/mortemhouse/mortem/internal/game/ruleset"
	"github.com/mortemhouse/mortem/internal/ledger"
	"github.com/mortemhouse/mortem/internal/storage/snapshot"
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

func openLedger(t *testing.T, store *snapshot.Store) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(store, standardLevels(t), ledger.Caps{MaxHP: 100, MaxEnergy: 100}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return l
}

func newLedger(t *testing.T) (*ledger.Ledger, *snapshot.Store) {
	t.Helper()
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "mortem.yaml"))
	return openLedger(t, store), store
}

// TestOpen_PersistsEmptyStoreImmediately verifies a missing snapshot is
// created on startup rather than on first mutation.
func TestOpen_PersistsEmptyStoreImmediately(t *testing.T) {
	_, store := newLedger(t)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Players)
}

// TestOpen_CorruptSnapshotFallsBackEmpty verifies the loud-fallback
// policy: a corrupt file never blocks startup.
func TestOpen_CorruptSnapshotFallsBackEmpty(t *testing.T) {
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "mortem.yaml"))
	require.NoError(t, os.WriteFile(store.Path(), []byte("%%% not yaml"), 0644))

	l := openLedger(t, store)
	assert.Empty(t, l.SnapshotAllPlayers())

	snap, err := store.Load()
	require.NoError(t, err, "the corrupt file must have been replaced by a valid empty store")
	assert.Empty(t, snap.Players)
}

func TestOpen_RejectsNonPositiveCaps(t *testing.T) {
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "mortem.yaml"))
	_, err := ledger.Open(store, standardLevels(t), ledger.Caps{MaxHP: 0, MaxEnergy: 100}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

// TestLedger_GetOrCreate_Defaults verifies the default record shape and
// that the creation is durable before the call returns.
func TestLedger_GetOrCreate_Defaults(t *testing.T) {
	l, store := newLedger(t)

	rec, err := l.GetOrCreate("p1")
	require.NoError(t, err)
	assert.Equal(t, ledger.PlayerRecord{ID: "p1", HP: 100, Energy: 100, EXP: 0, Level: 1, Coins: 0}, rec)

	snap, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, snap.Players, "p1")
	assert.Equal(t, snapshot.Player{HP: 100, Energy: 100, EXP: 0, Level: 1, Coins: 0}, snap.Players["p1"])
	assert.Contains(t, snap.Inventories, "p1", "creation materialises an empty inventory entry")
	assert.Contains(t, snap.Cooldowns, "p1", "creation materialises an empty cooldown entry")
}

// TestLedger_GetOrCreate_Idempotent verifies repeat calls return the
// stored record unchanged.
func TestLedger_GetOrCreate_Idempotent(t *testing.T) {
	l, _ := newLedger(t)

	first, err := l.GetOrCreate("p1")
	require.NoError(t, err)

	_, err = l.UpdateStat("p1", ledger.StatHP, 40)
	require.NoError(t, err)

	second, err := l.GetOrCreate("p1")
	require.NoError(t, err)
	third, err := l.GetOrCreate("p1")
	require.NoError(t, err)

	assert.Equal(t, 40, second.HP, "GetOrCreate must not reset an existing record")
	assert.Equal(t, second, third)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, l.SnapshotAllPlayers(), 1)
}

func TestLedger_UpdateStat_ClampsToDomain(t *testing.T) {
	cases := []struct {
		name  string
		stat  string
		value int
		check func(t *testing.T, rec ledger.PlayerRecord)
	}{
		{"hp above max", ledger.StatHP, 150, func(t *testing.T, r ledger.PlayerRecord) { assert.Equal(t, 100, r.HP) }},
		{"hp below zero", ledger.StatHP, -5, func(t *testing.T, r ledger.PlayerRecord) { assert.Equal(t, 0, r.HP) }},
		{"energy above max", ledger.StatEnergy, 999, func(t *testing.T, r ledger.PlayerRecord) { assert.Equal(t, 100, r.Energy) }},
		{"energy below zero", ledger.StatEnergy, -1, func(t *testing.T, r ledger.PlayerRecord) { assert.Equal(t, 0, r.Energy) }},
		{"exp below zero", ledger.StatEXP, -10, func(t *testing.T, r ledger.PlayerRecord) { assert.Equal(t, 0, r.EXP) }},
		{"coins below zero", ledger.StatCoins, -10, func(t *testing.T, r ledger.PlayerRecord) { assert.Equal(t, 0, r.Coins) }},
		{"level below one", ledger.StatLevel, 0, func(t *testing.T, r ledger.PlayerRecord) { assert.Equal(t, 1, r.Level) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newLedger(t)
			rec, err := l.UpdateStat("p1", tc.stat, tc.value)
			require.NoError(t, err)
			tc.check(t, rec)
		})
	}
}

// TestLedger_UpdateStat_EXPRecomputesLevel verifies the level field is a
// projection of EXP.
func TestLedger_UpdateStat_EXPRecomputesLevel(t *testing.T) {
	l, _ := newLedger(t)

	rec, err := l.UpdateStat("p1", ledger.StatEXP, 600)
	require.NoError(t, err)
	assert.Equal(t, 600, rec.EXP)
	assert.Equal(t, 5, rec.Level)

	rec, err = l.UpdateStat("p1", ledger.StatEXP, 10000)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Level)
}

// TestLedger_UpdateStat_UnknownStat verifies the typed error and that a
// failed update on an unseen ID does not leak a created record.
func TestLedger_UpdateStat_UnknownStat(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.UpdateStat("ghost", "mana", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInvalidStat)
	assert.NotContains(t, l.SnapshotAllPlayers(), "ghost",
		"a rejected update must not create the player")
}

func TestLedger_Items(t *testing.T) {
	l, _ := newLedger(t)

	inv, err := l.AddItem("p1", "energy_drink", 2)
	require.NoError(t, err)
	assert.Equal(t, ledger.Inventory{"energy_drink": 2}, inv)

	ok, err := l.RemoveItem("p1", "energy_drink", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("removing the last one deletes the key", func(t *testing.T) {
		ok, err := l.RemoveItem("p1", "energy_drink", 1)
		require.NoError(t, err)
		assert.True(t, ok)

		inv, err := l.Inventory("p1")
		require.NoError(t, err)
		assert.NotContains(t, inv, "energy_drink")
	})

	t.Run("insufficient quantity refuses without mutation", func(t *testing.T) {
		_, err := l.AddItem("p1", "first_aid_kit", 1)
		require.NoError(t, err)

		ok, err := l.RemoveItem("p1", "first_aid_kit", 3)
		require.NoError(t, err)
		assert.False(t, ok)

		inv, err := l.Inventory("p1")
		require.NoError(t, err)
		assert.Equal(t, 1, inv["first_aid_kit"])
	})

	t.Run("absent item refuses", func(t *testing.T) {
		ok, err := l.RemoveItem("p1", "void", 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non-positive quantities rejected", func(t *testing.T) {
		_, err := l.AddItem("p1", "x", 0)
		assert.Error(t, err)
		_, err = l.RemoveItem("p1", "x", -1)
		assert.Error(t, err)
	})
}

// TestLedger_Items_Property_QuantityNeverNegative drives random
// add/remove sequences against a model map.
func TestLedger_Items_Property_QuantityNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := snapshot.NewStore(filepath.Join(t.TempDir(), "mortem.yaml"))
		l, err := ledger.Open(store, standardLevels(t), ledger.Caps{MaxHP: 100, MaxEnergy: 100}, zaptest.NewLogger(t))
		require.NoError(rt, err)

		model := 0
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			qty := rapid.IntRange(1, 5).Draw(rt, "qty")
			if rapid.Bool().Draw(rt, "add") {
				_, err := l.AddItem("p1", "relic", qty)
				require.NoError(rt, err)
				model += qty
			} else {
				ok, err := l.RemoveItem("p1", "relic", qty)
				require.NoError(rt, err)
				if model >= qty {
					assert.True(rt, ok)
					model -= qty
				} else {
					assert.False(rt, ok, "removal past the held quantity must refuse")
				}
			}

			inv, err := l.Inventory("p1")
			require.NoError(rt, err)
			if model == 0 {
				assert.NotContains(rt, inv, "relic")
			} else {
				assert.Equal(rt, model, inv["relic"])
			}
		}
	})
}

func TestLedger_Cooldowns(t *testing.T) {
	l, _ := newLedger(t)

	ts, err := l.Cooldown("p1", "search")
	require.NoError(t, err)
	assert.Zero(t, ts, "an unset cooldown reads as 0")
	assert.Contains(t, l.SnapshotAllPlayers(), "p1", "reading a cooldown lazily creates the player")

	require.NoError(t, l.SetCooldown("p1", "search", 1700000000))
	ts, err = l.Cooldown("p1", "search")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)

	assert.Error(t, l.SetCooldown("p1", "search", -1))
}

func TestLedger_Coins(t *testing.T) {
	l, _ := newLedger(t)

	balance, err := l.AddCoins("p1", 8)
	require.NoError(t, err)
	assert.Equal(t, 8, balance)

	t.Run("insufficient balance refuses without mutation", func(t *testing.T) {
		ok, err := l.RemoveCoins("p1", 10)
		require.NoError(t, err)
		assert.False(t, ok)

		rec, err := l.GetOrCreate("p1")
		require.NoError(t, err)
		assert.Equal(t, 8, rec.Coins, "coins must stay at 8 after a refused removal")
	})

	t.Run("exact balance drains to zero", func(t *testing.T) {
		ok, err := l.RemoveCoins("p1", 8)
		require.NoError(t, err)
		assert.True(t, ok)

		rec, err := l.GetOrCreate("p1")
		require.NoError(t, err)
		assert.Zero(t, rec.Coins)
	})

	t.Run("negative amounts rejected", func(t *testing.T) {
		_, err := l.AddCoins("p1", -1)
		assert.Error(t, err)
		_, err = l.RemoveCoins("p1", -1)
		assert.Error(t, err)
	})
}

// TestLedger_PersistsAcrossReopen verifies full state survives a
// restart content-equal.
func TestLedger_PersistsAcrossReopen(t *testing.T) {
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "mortem.yaml"))
	l := openLedger(t, store)

	_, err := l.UpdateStat("p1", ledger.StatEXP, 600)
	require.NoError(t, err)
	_, err = l.UpdateStat("p1", ledger.StatHP, 73)
	require.NoError(t, err)
	_, err = l.AddCoins("p1", 42)
	require.NoError(t, err)
	_, err = l.AddItem("p1", "energy_drink", 3)
	require.NoError(t, err)
	require.NoError(t, l.SetCooldown("p1", "exercise", 1700000000))
	_, err = l.GetOrCreate("p2")
	require.NoError(t, err)

	reopened := openLedger(t, store)

	assert.Equal(t, l.SnapshotAllPlayers(), reopened.SnapshotAllPlayers())

	inv, err := reopened.Inventory("p1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Inventory{"energy_drink": 3}, inv)

	ts, err := reopened.Cooldown("p1", "exercise")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)

	rec, err := reopened.GetOrCreate("p1")
	require.NoError(t, err)
	assert.Equal(t, ledger.PlayerRecord{ID: "p1", HP: 73, Energy: 100, EXP: 600, Level: 5, Coins: 42}, rec)
}

// TestLedger_Atomic_RollsBackOnError verifies all-or-nothing semantics
// for multi-step transactions.
func TestLedger_Atomic_RollsBackOnError(t *testing.T) {
	l, store := newLedger(t)

	_, err := l.AddCoins("p1", 5)
	require.NoError(t, err)

	boom := assert.AnError
	err = l.Atomic(func(txn *ledger.Txn) error {
		txn.AddCoins("p1", 100)
		txn.GetOrCreate("p2")
		txn.AddItem("p2", "relic", 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	players := l.SnapshotAllPlayers()
	assert.NotContains(t, players, "p2", "records created inside a failed transaction must vanish")
	assert.Equal(t, 5, players["p1"].Coins, "mutations inside a failed transaction must vanish")

	snap, err := store.Load()
	require.NoError(t, err)
	assert.NotContains(t, snap.Players, "p2")
	assert.Equal(t, 5, snap.Players["p1"].Coins)
}

// TestLedger_Atomic_ReadOnlySkipsPersist verifies a transaction that
// mutates nothing does not rewrite the store file.
func TestLedger_Atomic_ReadOnlySkipsPersist(t *testing.T) {
	l, store := newLedger(t)

	_, err := l.GetOrCreate("p1")
	require.NoError(t, err)

	before, err := store.Load()
	require.NoError(t, err)

	_, err = l.GetOrCreate("p1")
	require.NoError(t, err)
	_, err = l.Inventory("p1")
	require.NoError(t, err)
	_, err = l.Cooldown("p1", "search")
	require.NoError(t, err)

	after, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, before.SaveID, after.SaveID, "pure reads must not produce a new save")
}

// TestLedger_ConcurrentMutations hammers one record from several
// goroutines; the single writer lock must keep every increment.
func TestLedger_ConcurrentMutations(t *testing.T) {
	l, _ := newLedger(t)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := l.AddCoins("shared", 1)
				assert.NoError(t, err)
				_, err = l.GetOrCreate("shared")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	rec, err := l.GetOrCreate("shared")
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, rec.Coins)
	assert.Len(t, l.SnapshotAllPlayers(), 1)
}

func TestLedger_Stats(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.AddItem("p1", "energy_drink", 2)
	require.NoError(t, err)
	_, err = l.AddItem("p1", "first_aid_kit", 1)
	require.NoError(t, err)
	require.NoError(t, l.SetCooldown("p1", "search", 100))
	_, err = l.GetOrCreate("p2")
	require.NoError(t, err)

	s := l.Stats()
	assert.Equal(t, 2, s.Players)
	assert.Equal(t, 2, s.InventoryEntries)
	assert.Equal(t, 1, s.CooldownEntries)
}
