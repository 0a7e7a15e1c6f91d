package logic

// MaxBrightness is the top of the output intensity range.
const MaxBrightness = 255

// DefaultRawMax is the top of a 10-bit ADC.
const DefaultRawMax = 1023

// ScaleBrightness maps a raw analog reading from [0, rawMax] onto
// [0, MaxBrightness]. Out-of-range readings are clamped.
func ScaleBrightness(raw, rawMax int) int {
	if rawMax <= 0 {
		return MaxBrightness
	}
	if raw < 0 {
		raw = 0
	}
	if raw > rawMax {
		raw = rawMax
	}
	return raw * MaxBrightness / rawMax
}

// StateLabel derives the telemetry label from the flags and phase.
func StateLabel(f Flags, phase int) Label {
	switch {
	case !f.SystemOn:
		return LabelOff
	case f.Emergency:
		return LabelEmergency
	case f.Blinking:
		return LabelBlinking
	}
	return PhaseLabel(phase)
}

// Reporter emits state and brightness only when they change.
// The two latches are independent.
type Reporter struct {
	lastLabel      Label
	lastBrightness int
}

// NewReporter creates a reporter that has emitted nothing yet.
func NewReporter() *Reporter {
	return &Reporter{lastBrightness: -1}
}

// Report returns the messages to emit for the current label and brightness.
func (r *Reporter) Report(label Label, brightness int) []Message {
	var msgs []Message
	if label != r.lastLabel {
		msgs = append(msgs, Message{Kind: MessageState, Label: label, Text: string(label)})
		r.lastLabel = label
	}
	if brightness != r.lastBrightness {
		msgs = append(msgs, Message{Kind: MessageBrightness, Brightness: brightness})
		r.lastBrightness = brightness
	}
	return msgs
}

// LastLabel returns the last emitted label ("" before the first report).
func (r *Reporter) LastLabel() Label {
	return r.lastLabel
}

// LastBrightness returns the last emitted brightness, -1 if none.
func (r *Reporter) LastBrightness() int {
	return r.lastBrightness
}
