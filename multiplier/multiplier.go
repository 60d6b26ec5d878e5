package multiplier

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
)

// Defaults for the estimation heuristic.
const (
	// DefaultBase is the starting multiplier when none is stored.
	DefaultBase = 1.5
	// DefaultEnergy is assumed when no energy level is recorded.
	DefaultEnergy = 5
	// DefaultHistoryLimit bounds how many recent samples feed a learned
	// category multiplier.
	DefaultHistoryLimit = 20

	// PeakWindowStart and PeakWindowEnd bound the medication peak window
	// relative to the recorded medication time.
	PeakWindowStart = 1 * time.Hour
	PeakWindowEnd   = 5 * time.Hour
)

// Inputs captures everything the dynamic multiplier depends on. Dynamic is a
// pure function of these values; callers snapshot state once and pass it in.
type Inputs struct {
	// Base multiplier, normally from stored state. Zero means DefaultBase.
	Base float64
	// Energy is the current energy level (1-10).
	Energy int
	// MedicationTime is the last recorded dose; the zero value means no
	// dose is recorded, which keeps the off-peak penalty in force.
	MedicationTime time.Time
	// Now is the moment the estimate is being made, in local time.
	Now time.Time
}

// Dynamic derives the time-estimation correction factor from the inputs:
// base, then energy adjustment, then off-peak penalty, then time-of-day
// adjustment, clamped to a floor of 1.0 and rounded to two decimals. A
// calibrated estimate is never shorter than the raw one.
func Dynamic(in Inputs) float64 {
	mult := in.Base
	if mult == 0 {
		mult = DefaultBase
	}

	switch {
	case in.Energy <= 3:
		mult += 0.4
	case in.Energy <= 5:
		mult += 0.2
	case in.Energy >= 8:
		mult -= 0.1
	}

	if !InPeakWindow(in.MedicationTime, in.Now) {
		mult += 0.3
	}

	switch hour := in.Now.Hour(); {
	case hour >= 20:
		mult += 0.25
	case hour >= 15:
		mult += 0.15
	}

	return math.Round(math.Max(1.0, mult)*100) / 100
}

// InPeakWindow reports whether now falls inside the medication peak window
// [medicationTime+PeakWindowStart, medicationTime+PeakWindowEnd]. With no
// recorded dose the window is inactive.
func InPeakWindow(medicationTime, now time.Time) bool {
	if medicationTime.IsZero() {
		return false
	}
	start := medicationTime.Add(PeakWindowStart)
	end := medicationTime.Add(PeakWindowEnd)
	return !now.Before(start) && !now.After(end)
}

// PeakWindowStatus describes where now sits relative to the peak window.
type PeakWindowStatus struct {
	Active           bool   `json:"active"`
	Reason           string `json:"reason,omitempty"`
	MinutesUntil     int    `json:"minutes_until_peak,omitempty"`
	MinutesRemaining int    `json:"minutes_remaining,omitempty"`
}

// PeakWindow returns detailed peak window information for status displays.
func PeakWindow(medicationTime, now time.Time) PeakWindowStatus {
	if medicationTime.IsZero() {
		return PeakWindowStatus{Active: false, Reason: "no_medication_logged"}
	}
	start := medicationTime.Add(PeakWindowStart)
	end := medicationTime.Add(PeakWindowEnd)
	switch {
	case now.Before(start):
		return PeakWindowStatus{Active: false, Reason: "not_yet", MinutesUntil: int(start.Sub(now).Minutes())}
	case now.After(end):
		return PeakWindowStatus{Active: false, Reason: "ended"}
	default:
		return PeakWindowStatus{Active: true, MinutesRemaining: int(end.Sub(now).Minutes())}
	}
}

// Calibration is the result of converting a raw estimate.
type Calibration struct {
	OriginalMinutes   int      `json:"original_estimate"`
	CalibratedMinutes int      `json:"calibrated_estimate"`
	Multiplier        float64  `json:"multiplier_used"`
	Source            string   `json:"multiplier_source"` // "task_history" or "dynamic"
	Factors           []string `json:"factors,omitempty"`
}

// Engine converts raw time estimates into calibrated ones. It snapshots the
// relevant user state per call and defers the arithmetic to the pure Dynamic
// function, overriding with a learned category multiplier once enough
// history exists.
type Engine struct {
	state   core.StateStore
	history core.HistoryStore
	logger  logging.Logger
	nowFn   func() time.Time
}

// Options configures an Engine.
type Options struct {
	Logger logging.Logger
	// Now overrides the clock source, mainly for tests.
	Now func() time.Time
}

// New constructs a multiplier engine over the given state and history stores.
func New(state core.StateStore, history core.HistoryStore, optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{state: state, history: history, logger: opts.Logger, nowFn: opts.Now}
}

// CurrentInputs snapshots stored state into an Inputs value. Missing or
// undecodable fields fall back to defaults.
func (e *Engine) CurrentInputs() Inputs {
	in := Inputs{Base: DefaultBase, Energy: DefaultEnergy, Now: e.nowFn()}

	if v, err := e.state.GetState(core.KeyBaseMultiplier, DefaultBase); err == nil {
		if base, ok := toFloat(v); ok && base > 0 {
			in.Base = base
		}
	}
	if v, err := e.state.GetState(core.KeyEnergyLevel, DefaultEnergy); err == nil {
		if energy, ok := toFloat(v); ok {
			in.Energy = clampEnergy(int(energy))
		}
	}
	if v, err := e.state.GetState(core.KeyMedicationTime, nil); err == nil && v != nil {
		if raw, ok := v.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				in.MedicationTime = ts
			} else {
				e.logger.Warn("Stored medication time failed to parse", "value", raw, "error", err)
			}
		}
	}
	return in
}

// Dynamic computes the current dynamic multiplier from stored state.
func (e *Engine) Dynamic() float64 {
	return Dynamic(e.CurrentInputs())
}

// Calibrate converts estimatedMinutes into a calibrated block length. When a
// learned multiplier exists for category (at least core.MinCategorySamples
// qualifying records) it overrides the dynamic heuristic outright: the
// category signal is more reliable than the generic one once enough samples
// exist. The calibrated value floors the product, never rounds up.
func (e *Engine) Calibrate(estimatedMinutes int, category string) Calibration {
	in := e.CurrentInputs()

	cal := Calibration{OriginalMinutes: estimatedMinutes, Source: "dynamic"}
	cal.Multiplier = Dynamic(in)

	if category != "" {
		learned, err := e.history.CategoryMultiplier(category, DefaultHistoryLimit)
		switch {
		case err == nil:
			cal.Multiplier = math.Round(learned*100) / 100
			cal.Source = "task_history"
			cal.Factors = append(cal.Factors, fmt.Sprintf("historical data for %q", category))
		case errors.Is(err, core.ErrNoData):
			// Not enough samples yet; keep the dynamic heuristic.
		default:
			e.logger.Warn("Category multiplier lookup failed, using dynamic", "category", category, "error", err)
		}
	}

	if in.Energy <= 5 {
		cal.Factors = append(cal.Factors, fmt.Sprintf("low energy (%d/10)", in.Energy))
	}
	if !InPeakWindow(in.MedicationTime, in.Now) {
		cal.Factors = append(cal.Factors, "outside peak focus window")
	}

	cal.CalibratedMinutes = int(float64(estimatedMinutes) * cal.Multiplier)
	return cal
}

func clampEnergy(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
