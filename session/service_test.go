package session

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/internal/testutil"
	"github.com/pacekeeper/pacekeeper/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st)
}

func TestCreateGeneratesID(t *testing.T) {
	svc := newTestService(t)

	sess, err := svc.Create("pacekeeper", "u1", "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "pacekeeper", sess.AppName)
	assert.NotNil(t, sess.State)
	assert.False(t, sess.Created.IsZero())

	// Explicit ids are honored.
	sess2, err := svc.Create("pacekeeper", "u1", "sess-fixed", map[string]any{"energy_level": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, "sess-fixed", sess2.ID)

	got, err := svc.Get("sess-fixed")
	require.NoError(t, err)
	assert.Equal(t, float64(7), got.State["energy_level"])
}

func TestGetUnknownSession(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get("ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestAppendEventAndGetOrder(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create("pacekeeper", "u1", "s1", nil)
	require.NoError(t, err)

	for _, typ := range []string{"task_started", "checkin_due", "task_completed"} {
		err := svc.AppendEvent("s1", core.NewSessionEvent(typ, map[string]any{"task": "report"}))
		require.NoError(t, err)
	}

	got, err := svc.Get("s1")
	require.NoError(t, err)
	require.Len(t, got.Events, 3)
	assert.Equal(t, "task_started", got.Events[0].Type)
	assert.Equal(t, "checkin_due", got.Events[1].Type)
	assert.Equal(t, "task_completed", got.Events[2].Type)
	assert.Equal(t, "report", got.Events[2].Data["task"])
}

func TestAppendEventUnknownSession(t *testing.T) {
	svc := newTestService(t)

	err := svc.AppendEvent("ghost", core.NewSessionEvent("task_started", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestListMostRecentFirst(t *testing.T) {
	svc := newTestService(t)

	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := svc.Create("pacekeeper", "u1", id, nil)
		require.NoError(t, err)
	}
	_, err := svc.Create("pacekeeper", "other", "s-other", nil)
	require.NoError(t, err)

	// Touch s1 so it becomes the most recently active.
	require.NoError(t, svc.AppendEvent("s1", core.NewSessionEvent("energy_updated", nil)))

	infos, err := svc.List("u1", 0)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "s1", infos[0].ID)

	limited, err := svc.List("u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteRemovesEvents(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create("pacekeeper", "u1", "s1", nil)
	require.NoError(t, err)
	require.NoError(t, svc.AppendEvent("s1", core.NewSessionEvent("task_started", nil)))

	require.NoError(t, svc.Delete("s1"))

	_, err = svc.Get("s1")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	// Unknown ids are a no-op.
	assert.NoError(t, svc.Delete("never-existed"))
}

func TestApplyStatePatchMerges(t *testing.T) {
	svc := newTestService(t)

	sess := testutil.NewSessionBuilder().
		ID("s1").
		User("u1").
		State("energy_level", float64(5)).
		State("current_task", "report").
		Build()
	_, err := svc.Create(sess.AppName, sess.UserID, sess.ID, sess.State)
	require.NoError(t, err)

	err = svc.ApplyStatePatch("s1", map[string]any{"energy_level": float64(3)})
	require.NoError(t, err)

	got, err := svc.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, float64(3), got.State["energy_level"])
	assert.Equal(t, "report", got.State["current_task"])
}

func TestApplyStatePatchUnknownSession(t *testing.T) {
	svc := newTestService(t)

	err := svc.ApplyStatePatch("ghost", map[string]any{"k": "v"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestConcurrentPatchesLoseNothing(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create("pacekeeper", "u1", "s1", nil)
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			assert.NoError(t, svc.ApplyStatePatch("s1", map[string]any{key: float64(n)}))
		}(i)
	}
	wg.Wait()

	got, err := svc.Get("s1")
	require.NoError(t, err)
	require.Len(t, got.State, writers)
	for i := 0; i < writers; i++ {
		assert.Equal(t, float64(i), got.State[string(rune('a'+i))])
	}
}
