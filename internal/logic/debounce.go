package logic

import "time"

// DefaultDebounce is the minimum time between accepted transitions on one button.
const DefaultDebounce = 50 * time.Millisecond

// buttonState tracks debounce state for a single button.
type buttonState struct {
	// Latched is set from an accepted press until the release is seen.
	Latched bool
	// Time of the last accepted transition (press or release).
	LastAccepted time.Time
	// Whether any transition has been accepted yet.
	Seen bool
}

// Debouncer turns raw button samples into clean press edges.
// It never blocks: a held button is latched instead of waited on.
type Debouncer struct {
	window  time.Duration
	buttons [numButtons]buttonState
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Process takes a new sample and returns the buttons whose press edge was
// accepted, in Button order.
func (d *Debouncer) Process(pressed Buttons, now time.Time) []Button {
	var edges []Button
	for i := range d.buttons {
		if d.processButton(&d.buttons[i], pressed[i], now) {
			edges = append(edges, Button(i))
		}
	}
	return edges
}

// processButton handles one button. Returns true on an accepted press.
func (d *Debouncer) processButton(b *buttonState, pressed bool, now time.Time) bool {
	if !pressed {
		if b.Latched {
			b.Latched = false
			b.LastAccepted = now
		}
		return false
	}

	if b.Latched {
		// Still held from an earlier press
		return false
	}

	if b.Seen && now.Sub(b.LastAccepted) <= d.window {
		// Chatter: latch without an edge so the rest of this hold is
		// swallowed until a real release.
		b.Latched = true
		return false
	}

	b.Latched = true
	b.Seen = true
	b.LastAccepted = now
	return true
}

// Held reports whether the button is currently latched as pressed.
func (d *Debouncer) Held(b Button) bool {
	return d.buttons[b].Latched
}
