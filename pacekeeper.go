// Package pacekeeper provides a high-level façade over the session engine:
// the SQLite store, the event bus, the two timer machines, the multiplier
// engine and the plan cache, wired together once at construction. Most
// applications interact with this package by:
//  1. Creating a Pacekeeper via New() (or FromConfig)
//  2. Recording state (energy, medication, task completions)
//  3. Driving focus blocks through StartFocus/PauseFocus/EndFocus
//  4. Observing progress through bus subscriptions and the dashboard reader
//
// Nothing here is global: every collaborator is owned by the Pacekeeper value
// and torn down by Close.
package pacekeeper

import (
	"fmt"
	"time"

	"github.com/pacekeeper/pacekeeper/bus"
	"github.com/pacekeeper/pacekeeper/config"
	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/dashboard"
	"github.com/pacekeeper/pacekeeper/logging"
	"github.com/pacekeeper/pacekeeper/machine"
	"github.com/pacekeeper/pacekeeper/multiplier"
	"github.com/pacekeeper/pacekeeper/plancache"
	"github.com/pacekeeper/pacekeeper/session"
	"github.com/pacekeeper/pacekeeper/store"
)

// RecalibrationThreshold is the actual/estimated ratio above which a
// completed task triggers a PatternDetected event suggesting the category
// multiplier needs more headroom.
const RecalibrationThreshold = 1.5

// Options configures a Pacekeeper instance.
type Options struct {
	// DBPath is the SQLite database file. Defaults to
	// ~/.pacekeeper/pacekeeper.db.
	DBPath string

	// AppName tags sessions created through this instance.
	AppName string

	// UserID is the default session owner.
	UserID string

	// BusRingSize bounds the bus's recent-events buffer.
	BusRingSize int

	// TickScale is the wall-clock length of one scheduling minute for both
	// timer machines. Demos compress it; production leaves the default.
	TickScale time.Duration

	// BaseMultiplier seeds the stored base multiplier on first run. Stored
	// state wins on subsequent runs.
	BaseMultiplier float64

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Pacekeeper aggregates the engine's services behind one handle.
type Pacekeeper struct {
	opts Options

	store          *store.Store
	bus            *bus.Bus
	engine         *multiplier.Engine
	plans          *plancache.Cache
	accountability *machine.Accountability
	guardrail      *machine.Guardrail
	sessions       *session.Service
	dashboard      *dashboard.Reader
	logger         logging.Logger
}

// New opens the store and wires every service. Any unset option falls back
// to a safe default.
func New(optFns ...func(o *Options)) (*Pacekeeper, error) {
	opts := Options{
		DBPath:         config.DefaultDBPath(),
		AppName:        "pacekeeper",
		UserID:         "default",
		BusRingSize:    bus.DefaultRingSize,
		TickScale:      machine.DefaultTickScale,
		BaseMultiplier: multiplier.DefaultBase,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	st, err := store.Open(opts.DBPath, func(o *store.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Seed the base multiplier once; after that the stored value is
	// authoritative so tuning survives restarts.
	if v, err := st.GetState(core.KeyBaseMultiplier, nil); err == nil && v == nil {
		if err := st.SaveState(core.KeyBaseMultiplier, opts.BaseMultiplier); err != nil {
			st.Close()
			return nil, fmt.Errorf("seed base multiplier: %w", err)
		}
	}

	b := bus.New(func(o *bus.Options) {
		o.RingSize = opts.BusRingSize
		o.Logger = opts.Logger
	})

	engine := multiplier.New(st, st, func(o *multiplier.Options) {
		o.Logger = opts.Logger
	})

	machineOpts := []machine.Option{
		machine.WithLogger(opts.Logger),
		machine.WithTickScale(opts.TickScale),
	}

	svc := session.NewService(st, func(o *session.Options) {
		o.Logger = opts.Logger
	})

	p := &Pacekeeper{
		opts:           opts,
		store:          st,
		bus:            b,
		engine:         engine,
		plans:          plancache.New(st, func(o *plancache.Options) { o.Logger = opts.Logger }),
		accountability: machine.NewAccountability(b, machineOpts...),
		guardrail:      machine.NewGuardrail(b, machineOpts...),
		sessions:       svc,
		dashboard:      dashboard.NewReader(st, engine, svc, func(o *dashboard.Options) { o.Logger = opts.Logger }),
		logger:         opts.Logger,
	}

	p.bus.Subscribe(core.TaskCompleted, p.watchForRecalibration)

	return p, nil
}

// FromConfig builds a Pacekeeper from a resolved configuration.
func FromConfig(cfg *config.Config, logger logging.Logger) (*Pacekeeper, error) {
	return New(func(o *Options) {
		o.DBPath = cfg.DBPath
		o.AppName = cfg.AppName
		o.UserID = cfg.UserID
		o.BusRingSize = cfg.BusRingSize
		o.TickScale = cfg.TickScale
		o.BaseMultiplier = cfg.BaseMultiplier
		if logger != nil {
			o.Logger = logger
		}
	})
}

// Close releases the store and stops any armed or running timers.
func (p *Pacekeeper) Close() error {
	p.guardrail.Clear()
	if p.accountability.Status().State != machine.StateIdle {
		if _, err := p.accountability.End(false); err != nil {
			p.logger.Warn("Failed to end session during close", "error", err)
		}
	}
	return p.store.Close()
}

// Store exposes the underlying durable store.
func (p *Pacekeeper) Store() *store.Store { return p.store }

// Bus exposes the event bus for subscriptions.
func (p *Pacekeeper) Bus() core.Bus { return p.bus }

// Sessions exposes the durable session service.
func (p *Pacekeeper) Sessions() core.SessionStore { return p.sessions }

// Multiplier exposes the calibration engine.
func (p *Pacekeeper) Multiplier() *multiplier.Engine { return p.engine }

// Plans exposes the plan cache.
func (p *Pacekeeper) Plans() *plancache.Cache { return p.plans }

// Accountability exposes the focus-block machine.
func (p *Pacekeeper) Accountability() *machine.Accountability { return p.accountability }

// Guardrail exposes the hard-stop machine.
func (p *Pacekeeper) Guardrail() *machine.Guardrail { return p.guardrail }

// Dashboard exposes the read-only projection reader.
func (p *Pacekeeper) Dashboard() *dashboard.Reader { return p.dashboard }

// SetEnergy records the current energy level (clamped to 1-10) and announces
// the change on the bus.
func (p *Pacekeeper) SetEnergy(level int) error {
	if level < 1 {
		level = 1
	}
	if level > 10 {
		level = 10
	}
	if err := p.store.SaveState(core.KeyEnergyLevel, level); err != nil {
		return fmt.Errorf("save energy level: %w", err)
	}
	p.bus.Publish(core.EnergyUpdated, map[string]any{"energy_level": level})
	return nil
}

// LogMedication records a dose time, anchoring the peak focus window.
func (p *Pacekeeper) LogMedication(at time.Time) error {
	if err := p.store.SaveState(core.KeyMedicationTime, at.Format(store.TimeFormat)); err != nil {
		return fmt.Errorf("save medication time: %w", err)
	}
	return nil
}

// Calibrate converts a raw estimate into a calibrated block length.
func (p *Pacekeeper) Calibrate(estimatedMinutes int, category string) multiplier.Calibration {
	return p.engine.Calibrate(estimatedMinutes, category)
}

// StartFocus begins an accountability session and records the task as the
// current one.
func (p *Pacekeeper) StartFocus(task string, durationMinutes, checkinIntervalMinutes int) (machine.StartResult, error) {
	res, err := p.accountability.Start(task, durationMinutes, checkinIntervalMinutes)
	if err != nil {
		return machine.StartResult{}, err
	}
	if err := p.store.SaveState(core.KeyCurrentTask, task); err != nil {
		p.logger.Warn("Failed to record current task", "task", task, "error", err)
	}
	return res, nil
}

// PauseFocus suspends the running session.
func (p *Pacekeeper) PauseFocus(reason string) (machine.PauseResult, error) {
	return p.accountability.Pause(reason)
}

// EndFocus terminates the running session and clears the current task.
func (p *Pacekeeper) EndFocus(completed bool) (machine.EndResult, error) {
	res, err := p.accountability.End(completed)
	if err != nil {
		return machine.EndResult{}, err
	}
	if err := p.store.SaveState(core.KeyCurrentTask, ""); err != nil {
		p.logger.Warn("Failed to clear current task", "error", err)
	}
	return res, nil
}

// CompleteTask records a finished task in the history and announces it. The
// peak-window flag is derived from the recorded medication time.
func (p *Pacekeeper) CompleteTask(category string, estimatedMinutes, actualMinutes int) error {
	in := p.engine.CurrentInputs()
	inPeak := multiplier.InPeakWindow(in.MedicationTime, in.Now)

	if err := p.store.LogTaskCompletion(category, estimatedMinutes, actualMinutes, in.Energy, inPeak); err != nil {
		return fmt.Errorf("log task completion: %w", err)
	}

	payload := map[string]any{
		"category":          category,
		"estimated_minutes": estimatedMinutes,
		"actual_minutes":    actualMinutes,
		"energy_level":      in.Energy,
		"in_peak_window":    inPeak,
	}
	if estimatedMinutes > 0 {
		payload["ratio"] = float64(actualMinutes) / float64(estimatedMinutes)
	}
	p.bus.Publish(core.TaskCompleted, payload)
	return nil
}

// watchForRecalibration flags completions that ran far over their estimate,
// feeding the pattern channel the planner listens on.
func (p *Pacekeeper) watchForRecalibration(evt core.BusEvent) error {
	ratio, ok := evt.Payload["ratio"].(float64)
	if !ok || ratio <= RecalibrationThreshold {
		return nil
	}
	category, _ := evt.Payload["category"].(string)
	p.logger.Info("Task ran long, flagging for recalibration", "category", category, "ratio", ratio)
	p.bus.Publish(core.PatternDetected, map[string]any{
		"pattern":  "estimate_overrun",
		"category": category,
		"ratio":    ratio,
	})
	return nil
}
