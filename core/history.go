package core

import "time"

// StateEntry is one key/value pair in the durable user-state table. Last
// write wins; there is no versioning.
type StateEntry struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskHistoryRecord is one immutable task-completion sample used to calibrate
// future time estimates. Records are append-only.
type TaskHistoryRecord struct {
	ID               int64     `json:"id"`
	Category         string    `json:"category"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	ActualMinutes    int       `json:"actual_minutes"`
	EnergyLevel      int       `json:"energy_level"`
	InPeakWindow     bool      `json:"in_peak_window"`
	Timestamp        time.Time `json:"timestamp"`
}

// Ratio returns actual/estimated, or 0 when the estimate is zero. Zero
// estimates are accepted on write and excluded from multiplier math.
func (r TaskHistoryRecord) Ratio() float64 {
	if r.EstimatedMinutes <= 0 {
		return 0
	}
	return float64(r.ActualMinutes) / float64(r.EstimatedMinutes)
}

// CachedPlan is a stored task decomposition keyed by the hash of its
// normalized description. Re-storing the same normalized description
// overwrites; plans are not versioned. The energy level at creation time is
// recorded but deliberately not used to invalidate on read: energy
// appropriateness is the caller's decision.
type CachedPlan struct {
	Hash        string    `json:"hash"`
	Description string    `json:"task_description"`
	PlanJSON    string    `json:"plan_json"`
	EnergyLevel int       `json:"energy_level"`
	CreatedAt   time.Time `json:"created_at"`
}

// StateStore is the durable key/value state surface.
type StateStore interface {
	// SaveState upserts a JSON-serializable value under key.
	SaveState(key string, value any) error
	// GetState returns the decoded value or def when the key is absent. A
	// value that fails to decode is treated as absent (and logged), never
	// propagated as a fatal error.
	GetState(key string, def any) (any, error)
}

// HistoryStore records task completions and derives learned corrections.
type HistoryStore interface {
	// LogTaskCompletion appends one immutable record. A zero estimate is
	// accepted and simply excluded from multiplier math downstream.
	LogTaskCompletion(category string, estimatedMinutes, actualMinutes, energyLevel int, inPeakWindow bool) error
	// CategoryMultiplier returns the mean actual/estimated ratio over the
	// most recent limit records with a positive estimate, or ErrNoData when
	// fewer than MinCategorySamples qualify.
	CategoryMultiplier(category string, limit int) (float64, error)
	// RecentHistory returns the most recent limit records, newest first.
	RecentHistory(limit int) ([]TaskHistoryRecord, error)
}

// PlanStore persists cached decomposition plans.
type PlanStore interface {
	// CachePlan upserts a plan keyed by hash.
	CachePlan(hash, description, planJSON string, energyLevel int) error
	// CachedPlan returns the plan for hash or ErrNotFound on a miss.
	CachedPlan(hash string) (*CachedPlan, error)
	// AllCachedDescriptions returns every stored description in insertion
	// order. Intentionally unindexed; fine at the volumes this system sees.
	AllCachedDescriptions() ([]string, error)
}
