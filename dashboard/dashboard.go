package dashboard

import (
	"fmt"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
	"github.com/pacekeeper/pacekeeper/multiplier"
	"github.com/pacekeeper/pacekeeper/store"
)

// Stats is the at-a-glance block shown at the top of the dashboard.
type Stats struct {
	EnergyLevel         int                         `json:"energy_level"`
	Multiplier          float64                     `json:"multiplier"`
	TasksCompletedToday int                         `json:"tasks_completed_today"`
	CurrentTask         string                      `json:"current_task,omitempty"`
	PeakWindow          multiplier.PeakWindowStatus `json:"peak_window"`
}

// Reader assembles dashboard projections from the store and the multiplier
// engine.
type Reader struct {
	store    *store.Store
	engine   *multiplier.Engine
	sessions core.SessionStore
	logger   logging.Logger
}

// Options configure a Reader.
type Options struct {
	Logger logging.Logger
}

// NewReader wires a dashboard reader.
func NewReader(st *store.Store, engine *multiplier.Engine, sessions core.SessionStore, optFns ...func(o *Options)) *Reader {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reader{store: st, engine: engine, sessions: sessions, logger: opts.Logger}
}

// Stats snapshots the current state: energy, the multiplier it implies,
// today's completions and the peak window position.
func (r *Reader) Stats() (Stats, error) {
	inputs := r.engine.CurrentInputs()

	completed, err := r.store.TasksCompletedToday()
	if err != nil {
		return Stats{}, fmt.Errorf("count today's completions: %w", err)
	}

	task := ""
	if v, err := r.store.GetState(core.KeyCurrentTask, ""); err == nil {
		if s, ok := v.(string); ok {
			task = s
		}
	}

	return Stats{
		EnergyLevel:         inputs.Energy,
		Multiplier:          multiplier.Dynamic(inputs),
		TasksCompletedToday: completed,
		CurrentTask:         task,
		PeakWindow:          multiplier.PeakWindow(inputs.MedicationTime, inputs.Now),
	}, nil
}

// History returns one page of task completions, most recent first.
func (r *Reader) History(limit, offset int) ([]core.TaskHistoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return r.store.HistoryPage(limit, offset)
}

// RecentSessions lists the user's sessions, most recently active first.
func (r *Reader) RecentSessions(userID string, limit int) ([]core.SessionInfo, error) {
	return r.sessions.List(userID, limit)
}
