package dashboard

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/internal/testutil"
	"github.com/pacekeeper/pacekeeper/multiplier"
	"github.com/pacekeeper/pacekeeper/session"
	"github.com/pacekeeper/pacekeeper/store"
)

func newTestReader(t *testing.T, now time.Time) (*Reader, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine := multiplier.New(st, st, func(o *multiplier.Options) {
		o.Now = func() time.Time { return now }
	})
	return NewReader(st, engine, session.NewService(st)), st
}

func TestStatsDefaults(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.Local)
	r, _ := newTestReader(t, now)

	stats, err := r.Stats()
	require.NoError(t, err)

	// Nothing recorded yet: energy defaults to 5, no completions, off-peak
	// because no dose is logged.
	assert.Equal(t, 5, stats.EnergyLevel)
	assert.Equal(t, 0, stats.TasksCompletedToday)
	assert.Empty(t, stats.CurrentTask)
	assert.False(t, stats.PeakWindow.Active)
	assert.Equal(t, "no_medication_logged", stats.PeakWindow.Reason)
	// base 1.5 + mid energy 0.2 + off-peak 0.3 at 10:00.
	assert.Equal(t, 2.0, stats.Multiplier)
}

func TestStatsReflectsStoredState(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.Local)
	r, st := newTestReader(t, now)

	require.NoError(t, st.SaveState(core.KeyEnergyLevel, 8))
	require.NoError(t, st.SaveState(core.KeyCurrentTask, "write report"))
	require.NoError(t, st.SaveState(core.KeyMedicationTime, now.Add(-2*time.Hour).Format(store.TimeFormat)))
	require.NoError(t, testutil.SeedHistory(st, "writing", 1, 30, 45))

	stats, err := r.Stats()
	require.NoError(t, err)

	assert.Equal(t, 8, stats.EnergyLevel)
	assert.Equal(t, 1, stats.TasksCompletedToday)
	assert.Equal(t, "write report", stats.CurrentTask)
	assert.True(t, stats.PeakWindow.Active)
	assert.InDelta(t, 180, stats.PeakWindow.MinutesRemaining, 1)
	// base 1.5 - high energy 0.1, in peak, morning.
	assert.Equal(t, 1.4, stats.Multiplier)
}

func TestHistoryPagination(t *testing.T) {
	r, st := newTestReader(t, time.Now())

	for i := 0; i < 5; i++ {
		require.NoError(t, st.LogTaskCompletion("coding", 30+i, 40+i, 6, false))
	}

	first, err := r.History(2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	// Most recent first: the last insert leads.
	assert.Equal(t, 34, first[0].EstimatedMinutes)

	second, err := r.History(2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 32, second[0].EstimatedMinutes)

	// Defaults kick in for non-positive limits.
	all, err := r.History(0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRecentSessions(t *testing.T) {
	r, st := newTestReader(t, time.Now())
	svc := session.NewService(st)

	_, err := svc.Create("pacekeeper", "u1", "s1", nil)
	require.NoError(t, err)
	_, err = svc.Create("pacekeeper", "u1", "s2", nil)
	require.NoError(t, err)

	infos, err := r.RecentSessions("u1", 10)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}
