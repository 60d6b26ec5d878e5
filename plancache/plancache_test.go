package plancache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacekeeper/pacekeeper/core"
)

// memPlans is an in-memory PlanStore preserving insertion order.
type memPlans struct {
	plans map[string]*core.CachedPlan
	order []string
}

func newMemPlans() *memPlans {
	return &memPlans{plans: map[string]*core.CachedPlan{}}
}

func (m *memPlans) CachePlan(hash, description, planJSON string, energyLevel int) error {
	if _, exists := m.plans[hash]; !exists {
		m.order = append(m.order, hash)
	}
	m.plans[hash] = &core.CachedPlan{Hash: hash, Description: description, PlanJSON: planJSON, EnergyLevel: energyLevel}
	return nil
}

func (m *memPlans) CachedPlan(hash string) (*core.CachedPlan, error) {
	if p, ok := m.plans[hash]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, core.ErrNotFound
}

func (m *memPlans) AllCachedDescriptions() ([]string, error) {
	out := make([]string, 0, len(m.order))
	for _, h := range m.order {
		out = append(out, m.plans[h].Description)
	}
	return out, nil
}

func TestHashKey_Deterministic(t *testing.T) {
	a := HashKey("write tests")
	b := HashKey("write tests")
	assert.Equal(t, a, b)
	assert.Len(t, a, HashLen)
	assert.NotEqual(t, a, HashKey("write docs"))
}

func TestHashKey_NormalizationEquivalence(t *testing.T) {
	assert.Equal(t, HashKey("write tests"), HashKey("  Write Tests  "))
}

func TestCache_StoreAndGet(t *testing.T) {
	c := New(newMemPlans())

	_, err := c.Get("write tests")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, c.Store("Write Tests", `{"steps":[1,2]}`, 7))

	// Normalization-equivalent queries hit the same entry.
	plan, err := c.Get("  write tests ")
	require.NoError(t, err)
	assert.Equal(t, `{"steps":[1,2]}`, plan.PlanJSON)
	assert.Equal(t, 7, plan.EnergyLevel)

	// Energy mismatch does not invalidate: a hash hit always returns.
	plan, err = c.Get("write tests")
	require.NoError(t, err)
	assert.NotNil(t, plan)
}

func TestCache_SimilarTasks(t *testing.T) {
	c := New(newMemPlans())
	require.NoError(t, c.Store("write unit tests", `{}`, 5))
	require.NoError(t, c.Store("write integration tests", `{}`, 5))
	require.NoError(t, c.Store("review budget spreadsheet", `{}`, 5))
	require.NoError(t, c.Store("plan holiday", `{}`, 5))

	got, err := c.SimilarTasks("write some tests", 10)
	require.NoError(t, err)
	// Both overlap on {write, tests}; tie broken by insertion order.
	assert.Equal(t, []string{"write unit tests", "write integration tests"}, got)

	// Zero-overlap entries are never returned.
	assert.NotContains(t, got, "review budget spreadsheet")
	assert.NotContains(t, got, "plan holiday")
}

func TestCache_SimilarTasksLimit(t *testing.T) {
	c := New(newMemPlans())
	require.NoError(t, c.Store("write unit tests", `{}`, 5))
	require.NoError(t, c.Store("write integration tests", `{}`, 5))
	require.NoError(t, c.Store("write release notes", `{}`, 5))

	got, err := c.SimilarTasks("write", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2, "never more than limit results")

	got, err = c.SimilarTasks("completely unrelated", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCache_SimilarTasksRanking(t *testing.T) {
	c := New(newMemPlans())
	require.NoError(t, c.Store("reply to emails", `{}`, 5))
	require.NoError(t, c.Store("reply to urgent work emails", `{}`, 5))

	got, err := c.SimilarTasks("reply to urgent emails", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "reply to urgent work emails", got[0], "higher overlap ranks first")
}
