package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pacekeeper/pacekeeper/core"
)

// CachePlan upserts a decomposition plan keyed by hash. Re-storing the same
// hash overwrites the previous plan; plans are not versioned.
func (s *Store) CachePlan(hash, description, planJSON string, energyLevel int) error {
	_, err := s.ExecWrite(
		`INSERT OR REPLACE INTO task_cache (hash, task_description, plan_json, energy_level, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		hash, description, planJSON, energyLevel, Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("cache plan: %w", err)
	}
	return nil
}

// CachedPlan returns the plan stored under hash, or core.ErrNotFound on a
// miss. A miss is a normal outcome, not a failure.
func (s *Store) CachedPlan(hash string) (*core.CachedPlan, error) {
	var plan core.CachedPlan
	var created string
	err := s.db.QueryRow(
		`SELECT hash, task_description, plan_json, energy_level, created_at
		 FROM task_cache WHERE hash = ?`,
		hash,
	).Scan(&plan.Hash, &plan.Description, &plan.PlanJSON, &plan.EnergyLevel, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cached plan: %w", err)
	}
	plan.CreatedAt = ParseTimestamp(created)
	return &plan, nil
}

// AllCachedDescriptions returns every stored task description in insertion
// order. The similarity search scans these linearly; no index is kept on
// purpose, which is acceptable at the data volumes this system targets.
func (s *Store) AllCachedDescriptions() ([]string, error) {
	rows, err := s.db.Query("SELECT task_description FROM task_cache ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("cached descriptions: %w", err)
	}
	defer rows.Close()

	descriptions := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("cached descriptions scan: %w", err)
		}
		descriptions = append(descriptions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cached descriptions rows: %w", err)
	}
	return descriptions, nil
}
