package logic

import (
	"fmt"
	"time"
)

// PhaseCount is the number of steps in one traffic cycle.
const PhaseCount = 10

// Configurable phase indices.
const (
	PhaseRed    = 0
	PhaseYellow = 1
	PhaseGreen  = 2
)

// DefaultDurations is the compiled-in timing table.
var DefaultDurations = [PhaseCount]time.Duration{
	2000 * time.Millisecond, // red
	500 * time.Millisecond,  // yellow
	2000 * time.Millisecond, // green
	200 * time.Millisecond,  // green blink tail
	130 * time.Millisecond,
	200 * time.Millisecond,
	130 * time.Millisecond,
	200 * time.Millisecond,
	130 * time.Millisecond,
	500 * time.Millisecond, // yellow
}

// PhaseLevels returns the light intensities for a phase at the given brightness.
func PhaseLevels(phase, brightness int) Levels {
	var l Levels
	switch phase {
	case 0:
		l.Red = brightness
	case 1, 9:
		l.Yellow = brightness
	case 2, 3, 5, 7:
		l.Green = brightness
	}
	return l
}

// PhaseLabel returns the telemetry label for a phase in normal operation.
func PhaseLabel(phase int) Label {
	switch {
	case phase == 0:
		return LabelRed
	case phase == 1 || phase == 9:
		return LabelYellow
	case phase == 2:
		return LabelGreen
	}
	return LabelGreenBlink
}

// PhaseEngine advances the phase index on its duration table.
type PhaseEngine struct {
	durations  [PhaseCount]time.Duration
	index      int
	lastChange time.Time
	// stale is set when outputs must be re-driven without advancing.
	stale bool
}

// NewPhaseEngine starts at phase 0 with the given table. The first Tick
// drives phase 0 without advancing.
func NewPhaseEngine(durations [PhaseCount]time.Duration, start time.Time) *PhaseEngine {
	return &PhaseEngine{
		durations:  durations,
		lastChange: start,
		stale:      true,
	}
}

// Tick advances the phase by one if the current phase's duration has
// elapsed. It returns true when the caller must drive the outputs.
func (e *PhaseEngine) Tick(now time.Time) (changed bool) {
	if now.Sub(e.lastChange) >= e.durations[e.index] {
		e.lastChange = now
		e.index = (e.index + 1) % PhaseCount
		e.stale = false
		return true
	}
	if e.stale {
		e.stale = false
		return true
	}
	return false
}

// Invalidate makes the next Tick report a change so outputs get re-driven
// after an override released them.
func (e *PhaseEngine) Invalidate() {
	e.stale = true
}

// Index returns the current phase.
func (e *PhaseEngine) Index() int {
	return e.index
}

// Duration returns the configured duration of a phase.
func (e *PhaseEngine) Duration(phase int) time.Duration {
	return e.durations[phase]
}

// Durations returns a copy of the timing table.
func (e *PhaseEngine) Durations() [PhaseCount]time.Duration {
	return e.durations
}

// SetDuration changes one of the runtime-configurable phases (0-2).
// Values are not range checked.
func (e *PhaseEngine) SetDuration(phase int, d time.Duration) error {
	if phase < PhaseRed || phase > PhaseGreen {
		return fmt.Errorf("phase %d is not configurable", phase)
	}
	e.setDuration(phase, d)
	return nil
}

// setDuration is SetDuration for callers passing PhaseRed, PhaseYellow
// or PhaseGreen.
func (e *PhaseEngine) setDuration(phase int, d time.Duration) {
	e.durations[phase] = d
}
