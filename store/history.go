package store

import (
	"fmt"

	"github.com/pacekeeper/pacekeeper/core"
)

// LogTaskCompletion appends one immutable history record. A zero estimate is
// accepted (side effect only, no validation); such records are excluded from
// multiplier math by the qualifying filter in CategoryMultiplier.
func (s *Store) LogTaskCompletion(category string, estimatedMinutes, actualMinutes, energyLevel int, inPeakWindow bool) error {
	_, err := s.ExecWrite(
		`INSERT INTO task_history
		 (category, estimated_minutes, actual_minutes, energy_level, in_peak_window, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		category, estimatedMinutes, actualMinutes, energyLevel, inPeakWindow, Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("log task completion: %w", err)
	}
	return nil
}

// CategoryMultiplier returns the mean of actual/estimated over the most
// recent limit records for category, restricted to records with a positive
// estimate. Fewer than core.MinCategorySamples qualifying records yields
// core.ErrNoData so a single noisy sample cannot skew calibration.
func (s *Store) CategoryMultiplier(category string, limit int) (float64, error) {
	rows, err := s.db.Query(
		`SELECT estimated_minutes, actual_minutes
		 FROM task_history
		 WHERE category = ? AND estimated_minutes > 0
		 ORDER BY id DESC LIMIT ?`,
		category, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("category multiplier query: %w", err)
	}
	defer rows.Close()

	var sum float64
	var n int
	for rows.Next() {
		var estimated, actual int
		if err := rows.Scan(&estimated, &actual); err != nil {
			return 0, fmt.Errorf("category multiplier scan: %w", err)
		}
		sum += float64(actual) / float64(estimated)
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("category multiplier rows: %w", err)
	}
	if n < core.MinCategorySamples {
		return 0, core.ErrNoData
	}
	return sum / float64(n), nil
}

// RecentHistory returns the most recent limit records, newest first.
func (s *Store) RecentHistory(limit int) ([]core.TaskHistoryRecord, error) {
	return s.queryHistory(
		`SELECT id, category, estimated_minutes, actual_minutes, energy_level, in_peak_window, timestamp
		 FROM task_history ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

// HistoryPage returns one page of records, newest first. Used by the
// dashboard's paginated read projection.
func (s *Store) HistoryPage(limit, offset int) ([]core.TaskHistoryRecord, error) {
	return s.queryHistory(
		`SELECT id, category, estimated_minutes, actual_minutes, energy_level, in_peak_window, timestamp
		 FROM task_history ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

func (s *Store) queryHistory(query string, args ...any) ([]core.TaskHistoryRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	records := []core.TaskHistoryRecord{}
	for rows.Next() {
		var rec core.TaskHistoryRecord
		var ts string
		if err := rows.Scan(&rec.ID, &rec.Category, &rec.EstimatedMinutes, &rec.ActualMinutes, &rec.EnergyLevel, &rec.InPeakWindow, &ts); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		rec.Timestamp = ParseTimestamp(ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return records, nil
}

// TasksCompletedToday counts history records stamped with the local calendar
// date. Used by the dashboard stats projection.
func (s *Store) TasksCompletedToday() (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM task_history
		 WHERE date(timestamp, 'localtime') = date('now', 'localtime')`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("tasks completed today: %w", err)
	}
	return count, nil
}
