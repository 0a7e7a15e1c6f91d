// Package logic contains the pure traffic-light state model: debounce,
// mode flags, phase engine, blink driver and change-triggered telemetry.
// This package has NO external dependencies (no GPIO, serial, MQTT or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"strconv"
	"time"
)

// Button identifies one of the three physical override buttons.
type Button int

const (
	ButtonEmergency Button = iota
	ButtonBlinking
	ButtonPower

	numButtons
)

func (b Button) String() string {
	switch b {
	case ButtonEmergency:
		return "emergency"
	case ButtonBlinking:
		return "blinking"
	case ButtonPower:
		return "power"
	}
	return "button" + strconv.Itoa(int(b))
}

// Buttons holds the pressed state of every button, indexed by Button.
// true = pressed (already inverted from the active-low line).
type Buttons [numButtons]bool

// Levels are output intensities for the three lights, 0-255.
type Levels struct {
	Red    int
	Yellow int
	Green  int
}

// Off is the all-dark output.
var Off = Levels{}

// Label is the state token reported on the telemetry channel.
type Label string

const (
	LabelOff        Label = "OFF"
	LabelEmergency  Label = "EMERGENCY"
	LabelBlinking   Label = "BLINKING"
	LabelRed        Label = "RED"
	LabelYellow     Label = "YELLOW"
	LabelGreen      Label = "GREEN"
	LabelGreenBlink Label = "GREEN_BLINK"
)

// Mode is the operating mode requested by a MODE command.
type Mode string

const (
	ModeOff       Mode = "OFF"
	ModeEmergency Mode = "EMERGENCY"
	ModeBlinking  Mode = "BLINKING"
	ModeNormal    Mode = "NORMAL"
)

// ParseMode maps a mode token to a Mode. Tokens are case-sensitive.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeOff, ModeEmergency, ModeBlinking, ModeNormal:
		return m, true
	}
	return "", false
}

// Flags are the three mode switches. Emergency and Blinking are kept
// mutually exclusive by MODE commands only; button toggles leave the
// other flag alone.
type Flags struct {
	SystemOn  bool
	Emergency bool
	Blinking  bool
}

// Mode collapses the flags into the effective operating mode.
func (f Flags) Mode() Mode {
	switch {
	case !f.SystemOn:
		return ModeOff
	case f.Emergency:
		return ModeEmergency
	case f.Blinking:
		return ModeBlinking
	}
	return ModeNormal
}

// MessageKind classifies an outbound message.
type MessageKind string

const (
	MessageState      MessageKind = "state"
	MessageBrightness MessageKind = "brightness"
	MessageAck        MessageKind = "ack"
	MessageNotice     MessageKind = "notice"
)

// Message is one outbound telemetry or acknowledgement message.
type Message struct {
	Kind       MessageKind
	Label      Label // MessageState only
	Brightness int   // MessageBrightness only
	Text       string
}

// CommandKind identifies an inbound command.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandSetAll
	CommandSetRed
	CommandSetYellow
	CommandSetGreen
	CommandMode
)

// Command is a parsed inbound command. Values are milliseconds.
type Command struct {
	Kind   CommandKind
	Red    int
	Yellow int
	Green  int
	Value  int
	Mode   Mode
	Raw    string
}

// Input is one poll of the hardware.
type Input struct {
	Buttons Buttons
	// Raw is the latest analog dial reading; RawOK is false when the
	// read failed and the previous reading should be kept.
	Raw   int
	RawOK bool
	Time  time.Time
}

// Output is what the caller must do after a rig step.
type Output struct {
	// Lights is non-nil when the outputs must be driven.
	Lights   *Levels
	Messages []Message
}

func (o *Output) drive(l Levels) {
	o.Lights = &l
}

func (o *Output) say(m Message) {
	o.Messages = append(o.Messages, m)
}

// Empty reports whether the output requires no action.
func (o Output) Empty() bool {
	return o.Lights == nil && len(o.Messages) == 0
}

// Counters track activity since startup.
type Counters struct {
	PhaseAdvances int
	Cycles        int
	ModeChanges   int
	Commands      int
	ButtonPresses int
}
