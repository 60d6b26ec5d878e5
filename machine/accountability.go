package machine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
)

// State identifies where an accountability session is in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateActive     State = "active"
	StatePaused     State = "paused"
	StateCompleting State = "completing"
)

const (
	// DefaultCheckinInterval is used when Start is called with a
	// non-positive interval.
	DefaultCheckinInterval = 10

	// DefaultTickScale maps one scheduling minute to wall-clock time.
	DefaultTickScale = time.Minute

	// StatusCompleted and StatusAbandoned label how a session ended.
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// checkinPrompts rotate by check-in count so repeated nudges do not read
// identically.
var checkinPrompts = [3]string{
	"Quick check: still working on %q? (check-in %d of %d)",
	"How is %q going? No judgment if you drifted. (check-in %d of %d)",
	"Pulse check on %q: on track, stuck, or switched? (check-in %d of %d)",
}

// StartResult reports a freshly started session.
type StartResult struct {
	Task                   string
	DurationMinutes        int
	CheckinIntervalMinutes int
	TotalCheckins          int
	Message                string
}

// PauseResult reports a paused session.
type PauseResult struct {
	Task    string
	Reason  string
	Message string
}

// EndResult reports a finished session, whether completed or abandoned.
type EndResult struct {
	Status            string
	Task              string
	CheckinsCompleted int
	Message           string
}

// Status is a point-in-time snapshot of the machine.
type Status struct {
	State             State
	Task              string
	ElapsedMinutes    int
	RemainingMinutes  int
	CheckinsCompleted int
	TotalCheckins     int
}

// Accountability runs one focus block at a time: periodic check-in events
// while Active, a summary event when the block ends.
type Accountability struct {
	mu sync.Mutex

	state           State
	task            string
	durationMinutes int
	interval        int
	totalCheckins   int
	checkins        int
	started         time.Time

	cancel context.CancelFunc
	done   chan struct{}

	bus       core.Bus
	logger    logging.Logger
	tickScale time.Duration
	nowFn     func() time.Time
}

// Options configure an Accountability machine.
type Options struct {
	Logger    logging.Logger
	TickScale time.Duration
	Now       func() time.Time
}

// Option mutates Options.
type Option func(o *Options)

// WithLogger sets the machine logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithTickScale sets the wall-clock length of one scheduling minute.
func WithTickScale(d time.Duration) Option {
	return func(o *Options) { o.TickScale = d }
}

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// NewAccountability returns an Idle machine publishing on bus.
func NewAccountability(bus core.Bus, optFns ...Option) *Accountability {
	opts := Options{
		Logger:    logging.NoOpLogger{},
		TickScale: DefaultTickScale,
		Now:       time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Accountability{
		state:     StateIdle,
		bus:       bus,
		logger:    opts.Logger,
		tickScale: opts.TickScale,
		nowFn:     opts.Now,
	}
}

// Start begins a focus block. It fails with core.ErrSessionActive while a
// session is already running or paused; the error names the current task.
func (m *Accountability) Start(task string, durationMinutes, checkinIntervalMinutes int) (StartResult, error) {
	if checkinIntervalMinutes <= 0 {
		checkinIntervalMinutes = DefaultCheckinInterval
	}

	m.mu.Lock()
	if m.state != StateIdle {
		current := m.task
		m.mu.Unlock()
		return StartResult{}, fmt.Errorf("%w: %q is already in progress, end it before starting %q", core.ErrSessionActive, current, task)
	}

	total := durationMinutes / checkinIntervalMinutes

	m.state = StateActive
	m.task = task
	m.durationMinutes = durationMinutes
	m.interval = checkinIntervalMinutes
	m.totalCheckins = total
	m.checkins = 0
	m.started = m.nowFn()
	m.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("focus block started", "task", task, "duration_minutes", durationMinutes, "checkin_interval", checkinIntervalMinutes)
	m.publish(core.FocusBlockStarted, map[string]any{
		"task":             task,
		"duration_minutes": durationMinutes,
		"total_checkins":   total,
	})

	go m.run(ctx, total)

	return StartResult{
		Task:                   task,
		DurationMinutes:        durationMinutes,
		CheckinIntervalMinutes: checkinIntervalMinutes,
		TotalCheckins:          total,
		Message:                fmt.Sprintf("Focus block started: %q for %d minutes, check-in every %d.", task, durationMinutes, checkinIntervalMinutes),
	}, nil
}

// run drives the check-in schedule until cancellation or completion.
func (m *Accountability) run(ctx context.Context, total int) {
	interval := time.Duration(m.interval) * m.tickScale
	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if !m.fireCheckin() {
			return
		}
	}
	m.complete()
}

// fireCheckin publishes one check-in. It re-checks state under the mutex so
// a pause or end that raced the timer suppresses the firing.
func (m *Accountability) fireCheckin() bool {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return false
	}
	m.checkins++
	n := m.checkins
	total := m.totalCheckins
	task := m.task
	m.mu.Unlock()

	msg := fmt.Sprintf(checkinPrompts[n%len(checkinPrompts)], task, n, total)
	m.logger.Debug("check-in due", "task", task, "checkin", n, "total", total)
	m.publish(core.CheckinDue, map[string]any{
		"task":           task,
		"checkin_number": n,
		"total_checkins": total,
		"message":        msg,
	})
	return true
}

// complete is the natural end of the schedule after the final check-in.
func (m *Accountability) complete() {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.state = StateCompleting
	task := m.task
	checkins := m.checkins
	duration := m.durationMinutes
	done := m.done
	m.mu.Unlock()

	m.logger.Info("focus block completed", "task", task, "checkins", checkins)
	m.publish(core.FocusBlockEnded, map[string]any{
		"task":             task,
		"duration_minutes": duration,
		"checkins":         checkins,
		"status":           StatusCompleted,
	})

	m.mu.Lock()
	m.reset()
	m.mu.Unlock()
	close(done)
}

// Pause suspends the schedule. The session stays Paused until End.
func (m *Accountability) Pause(reason string) (PauseResult, error) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return PauseResult{}, fmt.Errorf("%w: nothing to pause", core.ErrNoActiveSession)
	}
	m.state = StatePaused
	task := m.task
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.logger.Info("focus block paused", "task", task, "reason", reason)

	return PauseResult{
		Task:    task,
		Reason:  reason,
		Message: fmt.Sprintf("Paused %q. Check-ins are off until you end or restart the block.", task),
	}, nil
}

// End terminates the session from any non-Idle state. completed=false marks
// the block abandoned.
func (m *Accountability) End(completed bool) (EndResult, error) {
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return EndResult{}, fmt.Errorf("%w: nothing to end", core.ErrNoActiveSession)
	}
	if m.state == StateCompleting {
		// Natural completion has claimed the shutdown: it publishes the
		// summary event and closes done. Report the completed block
		// without firing a second FocusBlockEnded.
		task := m.task
		checkins := m.checkins
		m.mu.Unlock()
		return EndResult{
			Status:            StatusCompleted,
			Task:              task,
			CheckinsCompleted: checkins,
			Message:           fmt.Sprintf("Ended %q (%s) after %d check-ins.", task, StatusCompleted, checkins),
		}, nil
	}
	task := m.task
	checkins := m.checkins
	duration := m.durationMinutes
	cancel := m.cancel
	done := m.done
	m.reset()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	status := StatusAbandoned
	if completed {
		status = StatusCompleted
	}

	m.logger.Info("focus block ended", "task", task, "status", status, "checkins", checkins)
	m.publish(core.FocusBlockEnded, map[string]any{
		"task":             task,
		"duration_minutes": duration,
		"checkins":         checkins,
		"status":           status,
	})
	if done != nil {
		close(done)
	}

	msg := fmt.Sprintf("Ended %q (%s) after %d check-ins.", task, status, checkins)
	return EndResult{
		Status:            status,
		Task:              task,
		CheckinsCompleted: checkins,
		Message:           msg,
	}, nil
}

// Status reports the machine without mutating it.
func (m *Accountability) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return Status{State: StateIdle}
	}

	elapsed := int(m.nowFn().Sub(m.started) / m.tickScale)
	remaining := m.durationMinutes - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		State:             m.state,
		Task:              m.task,
		ElapsedMinutes:    elapsed,
		RemainingMinutes:  remaining,
		CheckinsCompleted: m.checkins,
		TotalCheckins:     m.totalCheckins,
	}
}

// Done returns a channel closed when the current session finishes, whether
// by running its full schedule or via End. It returns nil when Idle.
func (m *Accountability) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// reset must be called with the mutex held.
func (m *Accountability) reset() {
	m.state = StateIdle
	m.task = ""
	m.durationMinutes = 0
	m.interval = 0
	m.totalCheckins = 0
	m.checkins = 0
	m.started = time.Time{}
	m.cancel = nil
	m.done = nil
}

func (m *Accountability) publish(kind core.EventKind, payload map[string]any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(kind, payload)
}
