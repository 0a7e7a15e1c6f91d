package logic

import "time"

// DefaultBlinkPeriod is the time between blink toggles.
const DefaultBlinkPeriod = 500 * time.Millisecond

// Blinker toggles all lights together.
type Blinker struct {
	period     time.Duration
	on         bool
	lastToggle time.Time
	started    bool
}

// NewBlinker creates a blinker with the given toggle period.
func NewBlinker(period time.Duration) *Blinker {
	return &Blinker{period: period}
}

// Reset restarts the toggle latch so the next Tick turns the lights on.
func (b *Blinker) Reset() {
	b.on = false
	b.started = false
}

// Tick toggles the latch once a full period has passed since the last
// toggle. It returns the levels to drive and whether a toggle happened.
func (b *Blinker) Tick(now time.Time, brightness int) (Levels, bool) {
	if b.started && now.Sub(b.lastToggle) < b.period {
		return b.levels(brightness), false
	}
	b.started = true
	b.on = !b.on
	b.lastToggle = now
	return b.levels(brightness), true
}

// On reports the latch state.
func (b *Blinker) On() bool {
	return b.on
}

func (b *Blinker) levels(brightness int) Levels {
	if !b.on {
		return Off
	}
	return Levels{Red: brightness, Yellow: brightness, Green: brightness}
}
