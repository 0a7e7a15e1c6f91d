package logic

import (
	"time"

	"github.com/sweeney/traffic-light/internal/scheduler"
)

// Task names as registered with the scheduler.
const (
	TaskPhase     = "phase"
	TaskEmergency = "emergency"
	TaskBlink     = "blink"
	TaskTelemetry = "telemetry"
)

// Acknowledgement and notice texts.
const (
	AckTimings         = "Timings Updated"
	AckRed             = "Red Timing Updated"
	AckYellow          = "Yellow Timing Updated"
	AckGreen           = "Green Timing Updated"
	AckIgnoredBlink    = "Ignored: Blinking Mode Active"
	ackModePrefix      = "Mode Set: "
	NoticeEmergencyOn  = "Emergency Mode Enabled"
	NoticeEmergencyOff = "Emergency Mode Disabled"
	NoticeBlinkingOn   = "Blinking Mode Enabled"
	NoticeBlinkingOff  = "Blinking Mode Disabled"
)

// Config holds the rig's timing parameters.
type Config struct {
	Debounce          time.Duration
	BlinkPeriod       time.Duration
	RawMax            int
	Durations         [PhaseCount]time.Duration
	PhaseInterval     time.Duration
	EmergencyInterval time.Duration
	BlinkInterval     time.Duration
	TelemetryInterval time.Duration
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		Debounce:          DefaultDebounce,
		BlinkPeriod:       DefaultBlinkPeriod,
		RawMax:            DefaultRawMax,
		Durations:         DefaultDurations,
		PhaseInterval:     100 * time.Millisecond,
		EmergencyInterval: 100 * time.Millisecond,
		BlinkInterval:     500 * time.Millisecond,
		TelemetryInterval: 500 * time.Millisecond,
	}
}

// Rig is the whole controller state. It is owned by a single goroutine;
// every mutation goes through Step or Command.
type Rig struct {
	cfg      Config
	flags    Flags
	phase    *PhaseEngine
	blink    *Blinker
	reporter *Reporter
	debounce *Debouncer
	sched    *scheduler.Scheduler

	phaseTask     *scheduler.Task
	emergencyTask *scheduler.Task
	blinkTask     *scheduler.Task
	telemetryTask *scheduler.Task

	raw        int
	brightness int
	counters   Counters

	// out collects the effects of the current Step or Command.
	out Output
}

// NewRig creates a rig that is on, in normal mode, at phase 0.
func NewRig(cfg Config, start time.Time) *Rig {
	r := &Rig{
		cfg:        cfg,
		flags:      Flags{SystemOn: true},
		phase:      NewPhaseEngine(cfg.Durations, start),
		blink:      NewBlinker(cfg.BlinkPeriod),
		reporter:   NewReporter(),
		debounce:   NewDebouncer(cfg.Debounce),
		sched:      scheduler.New(),
		raw:        cfg.RawMax,
		brightness: MaxBrightness,
	}

	r.phaseTask = r.sched.Add(TaskPhase, cfg.PhaseInterval, r.runPhase)
	r.emergencyTask = r.sched.Add(TaskEmergency, cfg.EmergencyInterval, r.runEmergency)
	r.blinkTask = r.sched.Add(TaskBlink, cfg.BlinkInterval, r.runBlink)
	r.telemetryTask = r.sched.Add(TaskTelemetry, cfg.TelemetryInterval, r.runTelemetry)

	r.phaseTask.Enable()
	r.telemetryTask.Enable()
	return r
}

// Step processes one hardware poll: button edges first, then the
// scheduler if the system is on.
func (r *Rig) Step(in Input) Output {
	r.out = Output{}
	before := r.flags.Mode()

	if in.RawOK {
		r.raw = in.Raw
	}

	for _, b := range r.debounce.Process(in.Buttons, in.Time) {
		r.counters.ButtonPresses++
		r.handleButton(b)
	}

	if r.flags.SystemOn {
		r.sched.Execute(in.Time)
	}

	r.countMode(before)
	return r.take()
}

// Command applies an inbound command.
func (r *Rig) Command(cmd Command, now time.Time) Output {
	r.out = Output{}
	before := r.flags.Mode()

	switch cmd.Kind {
	case CommandSetAll:
		if r.flags.Blinking {
			r.ack(AckIgnoredBlink)
			break
		}
		r.phase.setDuration(PhaseRed, ms(cmd.Red))
		r.phase.setDuration(PhaseYellow, ms(cmd.Yellow))
		r.phase.setDuration(PhaseGreen, ms(cmd.Green))
		r.counters.Commands++
		r.ack(AckTimings)
	case CommandSetRed:
		r.phase.setDuration(PhaseRed, ms(cmd.Value))
		r.counters.Commands++
		r.ack(AckRed)
	case CommandSetYellow:
		r.phase.setDuration(PhaseYellow, ms(cmd.Value))
		r.counters.Commands++
		r.ack(AckYellow)
	case CommandSetGreen:
		r.phase.setDuration(PhaseGreen, ms(cmd.Value))
		r.counters.Commands++
		r.ack(AckGreen)
	case CommandMode:
		r.applyMode(cmd.Mode)
		r.counters.Commands++
		r.ack(ackModePrefix + string(cmd.Mode))
	default:
		if r.flags.Blinking {
			r.ack(AckIgnoredBlink)
		}
	}

	r.countMode(before)
	return r.take()
}

func (r *Rig) handleButton(b Button) {
	switch b {
	case ButtonEmergency:
		r.toggleEmergency()
	case ButtonBlinking:
		r.toggleBlinking()
	case ButtonPower:
		if r.flags.SystemOn {
			r.powerOff()
		} else {
			r.powerOn()
		}
	}
}

// toggleEmergency flips the emergency flag. The blinking flag is left as is.
func (r *Rig) toggleEmergency() {
	if !r.flags.Emergency {
		r.flags.Emergency = true
		r.emergencyTask.Enable()
		r.blinkTask.Disable()
		r.phaseTask.Disable()
		r.telemetryTask.Enable()
		r.notice(NoticeEmergencyOn)
		return
	}
	r.flags.Emergency = false
	r.emergencyTask.Disable()
	r.enablePhase()
	r.telemetryTask.Enable()
	r.notice(NoticeEmergencyOff)
}

// toggleBlinking flips the blinking flag. The emergency flag is left as is.
func (r *Rig) toggleBlinking() {
	if !r.flags.Blinking {
		r.flags.Blinking = true
		r.blink.Reset()
		r.blinkTask.Enable()
		r.phaseTask.Disable()
		r.notice(NoticeBlinkingOn)
		return
	}
	r.flags.Blinking = false
	r.blinkTask.Disable()
	r.enablePhase()
	r.notice(NoticeBlinkingOff)
}

// powerOn resumes whichever driver the surviving flags select.
func (r *Rig) powerOn() {
	r.flags.SystemOn = true
	switch {
	case r.flags.Emergency:
		r.emergencyTask.Enable()
	case r.flags.Blinking:
		r.blink.Reset()
		r.blinkTask.Enable()
	default:
		r.enablePhase()
	}
	r.telemetryTask.Enable()
}

func (r *Rig) powerOff() {
	r.flags.SystemOn = false
	r.sched.DisableAll()
	r.out.drive(Off)
	r.report()
}

func (r *Rig) applyMode(m Mode) {
	if m == ModeOff {
		r.powerOff()
		return
	}

	r.flags.SystemOn = true
	switch m {
	case ModeEmergency:
		r.flags.Blinking = false
		r.flags.Emergency = true
		r.blinkTask.Disable()
		r.phaseTask.Disable()
		r.emergencyTask.Enable()
	case ModeBlinking:
		r.flags.Emergency = false
		r.flags.Blinking = true
		r.emergencyTask.Disable()
		r.phaseTask.Disable()
		if !r.blinkTask.Enabled() {
			r.blink.Reset()
		}
		r.blinkTask.Enable()
	case ModeNormal:
		r.flags.Emergency = false
		r.flags.Blinking = false
		r.emergencyTask.Disable()
		r.blinkTask.Disable()
		r.enablePhase()
	}
	r.telemetryTask.Enable()
}

func (r *Rig) enablePhase() {
	r.phase.Invalidate()
	r.phaseTask.Enable()
}

func (r *Rig) runPhase(now time.Time) {
	r.sample()
	prev := r.phase.Index()
	if !r.phase.Tick(now) {
		return
	}
	if idx := r.phase.Index(); idx != prev {
		r.counters.PhaseAdvances++
		if idx == 0 {
			r.counters.Cycles++
		}
	}
	r.out.drive(PhaseLevels(r.phase.Index(), r.brightness))
}

func (r *Rig) runEmergency(time.Time) {
	r.sample()
	r.out.drive(Levels{Red: r.brightness})
}

func (r *Rig) runBlink(now time.Time) {
	if !r.flags.Blinking {
		return
	}
	r.sample()
	if l, toggled := r.blink.Tick(now, r.brightness); toggled {
		r.out.drive(l)
	}
	r.report()
}

func (r *Rig) runTelemetry(time.Time) {
	r.report()
}

func (r *Rig) sample() {
	r.brightness = ScaleBrightness(r.raw, r.cfg.RawMax)
}

func (r *Rig) report() {
	for _, m := range r.reporter.Report(StateLabel(r.flags, r.phase.Index()), r.brightness) {
		r.out.say(m)
	}
}

func (r *Rig) ack(text string) {
	r.out.say(Message{Kind: MessageAck, Text: text})
}

func (r *Rig) notice(text string) {
	r.out.say(Message{Kind: MessageNotice, Text: text})
}

func (r *Rig) countMode(before Mode) {
	if r.flags.Mode() != before {
		r.counters.ModeChanges++
	}
}

func (r *Rig) take() Output {
	out := r.out
	r.out = Output{}
	return out
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Flags returns the current mode flags.
func (r *Rig) Flags() Flags { return r.flags }

// Phase returns the current phase index.
func (r *Rig) Phase() int { return r.phase.Index() }

// Durations returns the current timing table.
func (r *Rig) Durations() [PhaseCount]time.Duration { return r.phase.Durations() }

// Brightness returns the last sampled brightness.
func (r *Rig) Brightness() int { return r.brightness }

// Label returns the label the current state maps to.
func (r *Rig) Label() Label { return StateLabel(r.flags, r.phase.Index()) }

// Counters returns activity counts since startup.
func (r *Rig) Counters() Counters { return r.counters }

// TaskEnabled reports whether the named scheduler task is enabled.
func (r *Rig) TaskEnabled(name string) bool {
	t := r.sched.Task(name)
	return t != nil && t.Enabled()
}

// EnabledTasks returns the names of the enabled tasks in registration order.
func (r *Rig) EnabledTasks() []string {
	var names []string
	for _, t := range r.sched.Tasks() {
		if t.Enabled() {
			names = append(names, t.Name())
		}
	}
	return names
}
