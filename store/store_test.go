package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacekeeper/pacekeeper/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pacekeeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PragmasApplyToEveryConnection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Pin two pooled connections at once so the second cannot be the one
	// that ran the schema setup.
	first, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for name, conn := range map[string]*sql.Conn{"first": first, "second": second} {
		var fk int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk, "%s connection must enforce foreign keys", name)

		var synchronous int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&synchronous))
		assert.Equal(t, 1, synchronous, "%s connection must run synchronous NORMAL", name)
	}
}

func TestStore_SaveAndGetState(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveState("energy_level", 7))

	v, err := s.GetState("energy_level", 5)
	require.NoError(t, err)
	assert.EqualValues(t, 7, v.(float64)) // JSON decode yields float64

	// Missing key returns the supplied default.
	v, err = s.GetState("does_not_exist", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	// Last write wins.
	require.NoError(t, s.SaveState("energy_level", 3))
	v, _ = s.GetState("energy_level", 5)
	assert.EqualValues(t, 3, v.(float64))
}

func TestStore_GetStateDecodeFailureDegradesToDefault(t *testing.T) {
	s := openTestStore(t)

	// Corrupt the stored value behind the encoder's back.
	_, err := s.ExecWrite(
		"INSERT OR REPLACE INTO user_state (key, value, updated_at) VALUES (?, ?, ?)",
		"broken", "{not json", Timestamp(),
	)
	require.NoError(t, err)

	v, err := s.GetState("broken", 42)
	require.NoError(t, err, "decode failure must not propagate as an error")
	assert.Equal(t, 42, v)
}

func TestStore_CategoryMultiplier(t *testing.T) {
	s := openTestStore(t)

	// Fewer than three qualifying samples: no data.
	require.NoError(t, s.LogTaskCompletion("email", 10, 20, 5, false))
	require.NoError(t, s.LogTaskCompletion("email", 10, 20, 5, false))
	_, err := s.CategoryMultiplier("email", 20)
	assert.ErrorIs(t, err, core.ErrNoData)

	// Zero estimates are stored but never qualify.
	require.NoError(t, s.LogTaskCompletion("email", 0, 45, 5, false))
	_, err = s.CategoryMultiplier("email", 20)
	assert.ErrorIs(t, err, core.ErrNoData)

	require.NoError(t, s.LogTaskCompletion("email", 10, 20, 5, false))
	mult, err := s.CategoryMultiplier("email", 20)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mult, 1e-9)

	// Other categories remain independent.
	_, err = s.CategoryMultiplier("writing", 20)
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestStore_CategoryMultiplierLimit(t *testing.T) {
	s := openTestStore(t)

	// Three old records at 3.0x, then three recent records at 1.0x.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.LogTaskCompletion("deep_work", 10, 30, 5, true))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.LogTaskCompletion("deep_work", 10, 10, 5, true))
	}

	mult, err := s.CategoryMultiplier("deep_work", 3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mult, 1e-9, "limit must restrict to the most recent records")
}

func TestStore_RecentHistoryOrder(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.LogTaskCompletion(fmt.Sprintf("cat%d", i), 10, 10+i, 5, false))
	}

	recent, err := s.RecentHistory(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "cat5", recent[0].Category, "most recent first")
	assert.Equal(t, "cat3", recent[2].Category)
}

func TestStore_PlanCache(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CachedPlan("deadbeef")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.CachePlan("deadbeef", "write tests", `{"steps":[]}`, 6))
	plan, err := s.CachedPlan("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "write tests", plan.Description)
	assert.Equal(t, 6, plan.EnergyLevel)

	// Re-store overwrites, not versions.
	require.NoError(t, s.CachePlan("deadbeef", "write tests", `{"steps":["a"]}`, 3))
	plan, err = s.CachedPlan("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, `{"steps":["a"]}`, plan.PlanJSON)
	assert.Equal(t, 3, plan.EnergyLevel)

	require.NoError(t, s.CachePlan("cafe", "review budget", `{}`, 5))
	descs, err := s.AllCachedDescriptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"write tests", "review budget"}, descs, "insertion order")
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := openTestStore(t)

	const writers = 8
	const writesPerWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writesPerWriter; i++ {
				key := fmt.Sprintf("w%d_k%d", w, i)
				if err := s.SaveState(key, i); err != nil {
					t.Errorf("SaveState(%s): %v", key, err)
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		for i := 0; i < writesPerWriter; i++ {
			v, err := s.GetState(fmt.Sprintf("w%d_k%d", w, i), nil)
			require.NoError(t, err)
			require.EqualValues(t, i, v.(float64))
		}
	}
}

func TestStore_AtomicUpdateNoLostUpdates(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ExecWrite(
		"INSERT INTO sessions (id, user_id, app_name, created_at, last_updated_at, state_json) VALUES (?, ?, ?, ?, ?, ?)",
		"sess-1", "u1", "pacekeeper", Timestamp(), Timestamp(), `{"counter":0}`,
	)
	require.NoError(t, err)

	increment := func() error {
		return s.AtomicUpdate(
			"SELECT state_json FROM sessions WHERE id = ?", []any{"sess-1"},
			"UPDATE sessions SET state_json = ? WHERE id = ?",
			func(current string) ([]any, error) {
				var state map[string]any
				if err := json.Unmarshal([]byte(current), &state); err != nil {
					return nil, err
				}
				state["counter"] = state["counter"].(float64) + 1
				updated, err := json.Marshal(state)
				if err != nil {
					return nil, err
				}
				return []any{string(updated), "sess-1"}, nil
			},
		)
	}

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := increment(); err != nil {
				t.Errorf("atomic update: %v", err)
			}
		}()
	}
	wg.Wait()

	var stateJSON string
	require.NoError(t, s.db.QueryRow("SELECT state_json FROM sessions WHERE id = ?", "sess-1").Scan(&stateJSON))
	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(stateJSON), &state))
	assert.EqualValues(t, callers, state["counter"], "every increment must be reflected")
}

func TestStore_AtomicUpdateMissingRow(t *testing.T) {
	s := openTestStore(t)

	err := s.AtomicUpdate(
		"SELECT state_json FROM sessions WHERE id = ?", []any{"ghost"},
		"UPDATE sessions SET state_json = ? WHERE id = ?",
		func(string) ([]any, error) {
			t.Fatal("transform must not run when the read finds nothing")
			return nil, nil
		},
	)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Interface compliance (compile-time assertions)
var (
	_ core.StateStore   = (*Store)(nil)
	_ core.HistoryStore = (*Store)(nil)
	_ core.PlanStore    = (*Store)(nil)
)
