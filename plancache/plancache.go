package plancache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
)

// HashLen is the length of the truncated hex cache key. Collisions at this
// length are a documented tolerance, not an impossibility: at the data
// volumes this system targets the risk is negligible, and the key is not a
// guaranteed-unique identifier.
const HashLen = 12

// Normalize lowercases and trims a task description so spelling-identical
// tasks share a cache entry. No stemming or embedding-based matching; that
// is an acknowledged future upgrade, not a bug.
func Normalize(task string) string {
	return strings.ToLower(strings.TrimSpace(task))
}

// HashKey returns the truncated content hash of the normalized description.
// Deterministic: identical normalized input always yields the identical key.
func HashKey(task string) string {
	sum := sha256.Sum256([]byte(Normalize(task)))
	return hex.EncodeToString(sum[:])[:HashLen]
}

// Match is one similarity-search hit.
type Match struct {
	Description string
	Overlap     int
}

// Cache layers hash-keyed lookup and keyword-overlap similarity search over
// a core.PlanStore. It holds no state of its own; the store is the single
// source of truth.
type Cache struct {
	plans  core.PlanStore
	logger logging.Logger
}

// Options configures a Cache.
type Options struct {
	Logger logging.Logger
}

// New constructs a plan cache over the given store.
func New(plans core.PlanStore, optFns ...func(o *Options)) *Cache {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Cache{plans: plans, logger: opts.Logger}
}

// Store caches a serialized decomposition plan for task, recording the
// energy level at creation time. Re-storing the same normalized description
// overwrites the previous plan.
func (c *Cache) Store(task, planJSON string, energyLevel int) error {
	hash := HashKey(task)
	if err := c.plans.CachePlan(hash, Normalize(task), planJSON, energyLevel); err != nil {
		return fmt.Errorf("store plan: %w", err)
	}
	c.logger.Debug("Cached decomposition", "hash", hash, "task", Normalize(task))
	return nil
}

// Get returns the cached plan for task, or core.ErrNotFound on a miss.
//
// The stored energy level is returned but never used to invalidate: a hash
// hit always returns the plan, and any energy-appropriateness decision is
// the caller's.
func (c *Cache) Get(task string) (*core.CachedPlan, error) {
	return c.plans.CachedPlan(HashKey(task))
}

// SimilarTasks returns up to limit cached descriptions ranked by word
// overlap with task, descending, ties broken by insertion order.
// Zero-overlap descriptions are excluded.
func (c *Cache) SimilarTasks(task string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	descriptions, err := c.plans.AllCachedDescriptions()
	if err != nil {
		return nil, fmt.Errorf("similar tasks: %w", err)
	}

	query := tokenize(task)
	matches := make([]Match, 0, len(descriptions))
	for _, desc := range descriptions {
		overlap := overlapCount(query, tokenize(desc))
		if overlap > 0 {
			matches = append(matches, Match{Description: desc, Overlap: overlap})
		}
	}

	// Stable sort preserves insertion order between equal overlaps.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Overlap > matches[j].Overlap })

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Description
	}
	return out, nil
}

// tokenize splits a normalized description into its word set.
func tokenize(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(s)) {
		set[w] = struct{}{}
	}
	return set
}

func overlapCount(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
