package machine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
)

// warningOffsets are minutes before the stop time at which a warning fires.
// The zero offset is the stop itself.
var warningOffsets = [4]int{30, 10, 5, 0}

// HardStopResult reports an armed guardrail.
type HardStopResult struct {
	StopTime       time.Time
	Reason         string
	WarningMinutes []int
	Message        string
}

// GuardrailStatus is a point-in-time snapshot of the guardrail.
type GuardrailStatus struct {
	Armed            bool
	StopTime         time.Time
	Reason           string
	MinutesRemaining int
}

// Guardrail schedules escalating warnings ahead of a hard stop, the backstop
// against hyperfocus running past a real-world boundary. At most one stop is
// armed; arming again replaces the previous schedule.
type Guardrail struct {
	mu sync.Mutex

	stopTime time.Time
	reason   string
	cancel   context.CancelFunc

	bus       core.Bus
	logger    logging.Logger
	tickScale time.Duration
	nowFn     func() time.Time
}

// NewGuardrail returns a disarmed guardrail publishing on bus.
func NewGuardrail(bus core.Bus, optFns ...Option) *Guardrail {
	opts := Options{
		Logger:    logging.NoOpLogger{},
		TickScale: DefaultTickScale,
		Now:       time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Guardrail{
		bus:       bus,
		logger:    opts.Logger,
		tickScale: opts.TickScale,
		nowFn:     opts.Now,
	}
}

// SetHardStop arms a stop minutesFromNow in the future. Warnings at 30, 10
// and 5 minutes before the stop are scheduled only when their offset still
// lies ahead; the stop itself always fires.
func (g *Guardrail) SetHardStop(minutesFromNow int, reason string) (HardStopResult, error) {
	if minutesFromNow <= 0 {
		return HardStopResult{}, fmt.Errorf("hard stop must be in the future, got %d minutes", minutesFromNow)
	}

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}

	now := g.nowFn()
	stop := now.Add(time.Duration(minutesFromNow) * g.tickScale)
	g.stopTime = stop
	g.reason = reason

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.mu.Unlock()

	var scheduled []int
	for _, off := range warningOffsets {
		if minutesFromNow-off > 0 || off == 0 {
			scheduled = append(scheduled, off)
		}
	}

	g.logger.Info("hard stop armed", "stop_in_minutes", minutesFromNow, "reason", reason, "warnings", scheduled)
	go g.run(ctx, stop, reason, scheduled)

	return HardStopResult{
		StopTime:       stop,
		Reason:         reason,
		WarningMinutes: scheduled,
		Message:        fmt.Sprintf("Hard stop set for %d minutes from now: %s", minutesFromNow, reason),
	}, nil
}

// run fires each scheduled warning in order, then the stop itself. Fire
// times are absolute so a slow warning handler does not push later ones.
func (g *Guardrail) run(ctx context.Context, stop time.Time, reason string, offsets []int) {
	for _, off := range offsets {
		fireAt := stop.Add(-time.Duration(off) * g.tickScale)
		if wait := fireAt.Sub(g.nowFn()); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
		if !g.fire(stop, reason, off) {
			return
		}
	}
}

// fire publishes one warning. It re-checks under the mutex that this
// schedule is still the armed one, so Clear or a replacing SetHardStop
// suppresses a firing that raced the timer.
func (g *Guardrail) fire(stop time.Time, reason string, offsetMinutes int) bool {
	g.mu.Lock()
	if !g.stopTime.Equal(stop) {
		g.mu.Unlock()
		return false
	}
	final := offsetMinutes == 0
	if final {
		g.disarm()
	}
	g.mu.Unlock()

	var msg string
	switch offsetMinutes {
	case 30:
		msg = fmt.Sprintf("Heads up: hard stop in 30 minutes (%s). Good moment to find a stopping point.", reason)
	case 10:
		msg = fmt.Sprintf("Hard stop in 10 minutes (%s). Start wrapping up now.", reason)
	case 5:
		msg = fmt.Sprintf("Hard stop in 5 minutes (%s). Save your work.", reason)
	default:
		msg = fmt.Sprintf("HARD STOP: time is up. %s", reason)
	}

	g.logger.Info("hard stop warning", "minutes_remaining", offsetMinutes, "reason", reason)
	if g.bus == nil {
		return true
	}
	g.bus.Publish(core.CheckinDue, map[string]any{
		"warning":           "hard_stop",
		"minutes_remaining": offsetMinutes,
		"reason":            reason,
		"message":           msg,
		"final":             final,
	})
	return true
}

// Clear disarms the guardrail. Clearing an already disarmed guardrail is a
// no-op.
func (g *Guardrail) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel == nil && g.stopTime.IsZero() {
		return
	}
	g.disarm()
	g.logger.Info("hard stop cleared")
}

// Status reports the guardrail without mutating it.
func (g *Guardrail) Status() GuardrailStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopTime.IsZero() {
		return GuardrailStatus{}
	}
	remaining := int(g.stopTime.Sub(g.nowFn()) / g.tickScale)
	if remaining < 0 {
		remaining = 0
	}
	return GuardrailStatus{
		Armed:            true,
		StopTime:         g.stopTime,
		Reason:           g.reason,
		MinutesRemaining: remaining,
	}
}

// disarm must be called with the mutex held.
func (g *Guardrail) disarm() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.stopTime = time.Time{}
	g.reason = ""
}
