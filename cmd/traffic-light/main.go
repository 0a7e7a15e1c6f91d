// Command traffic-light drives a three-lamp traffic light from GPIO
// buttons and a serial command channel, mirroring its state to MQTT,
// Redis and an HTTP status page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logger"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/messaging"
	"github.com/sweeney/traffic-light/internal/metrics"
	"github.com/sweeney/traffic-light/internal/mqtt"
	"github.com/sweeney/traffic-light/internal/protocol"
	"github.com/sweeney/traffic-light/internal/serial"
	"github.com/sweeney/traffic-light/internal/status"
	"github.com/sweeney/traffic-light/internal/web"
)

// commandQueue bounds frames waiting for the loop across all sources.
const commandQueue = 64

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("config: %v", err)
	}

	l := logger.NewStd(os.Stderr, cfg.LogLevel)
	if err := run(cfg, l); err != nil {
		l.Fatalf("fatal: %v", err)
	}
}

// hardware groups the physical devices. dial is nil when no ADC is present.
type hardware struct {
	buttons gpio.Buttons
	lights  gpio.Lights
	dial    gpio.Analog
}

func openHardware(cfg config, l *logger.Logger) (*hardware, error) {
	if cfg.FakeHW {
		l.Infof("using fake hardware")
		return &hardware{
			buttons: gpio.NewFakeButtons([]logic.Buttons{{}}),
			lights:  gpio.NewFakeLights(),
			dial:    gpio.NewFakeAnalog(cfg.ADCMax),
		}, nil
	}

	buttons, err := gpio.NewRealButtons(cfg.Chip, cfg.Buttons)
	if err != nil {
		return nil, fmt.Errorf("init buttons: %w", err)
	}

	var lights gpio.Lights
	switch cfg.LightDriver {
	case driverPWM:
		lights, err = gpio.NewPWMLights(gpio.DefaultPWMRoot, cfg.PWMChip, cfg.PWMChannels, gpio.DefaultPWMPeriod)
	default:
		lights, err = gpio.NewRealLights(cfg.Chip, cfg.Lights)
	}
	if err != nil {
		buttons.Close()
		return nil, fmt.Errorf("init lights: %w", err)
	}

	h := &hardware{buttons: buttons, lights: lights}
	if cfg.ADCDevice != "" {
		adc, err := gpio.NewSysfsADC(gpio.DefaultIIORoot, cfg.ADCDevice, cfg.ADCChannel)
		if err != nil {
			l.Warnf("brightness dial unavailable, running at full brightness: %v", err)
		} else {
			h.dial = adc
		}
	}
	return h, nil
}

func (h *hardware) Close() error {
	return errors.Join(h.lights.Close(), h.buttons.Close())
}

func printState(w io.Writer, h *hardware, rawMax int) error {
	pressed, err := h.buttons.Read()
	if err != nil {
		return fmt.Errorf("read buttons: %w", err)
	}
	for b := logic.ButtonEmergency; b <= logic.ButtonPower; b++ {
		fmt.Fprintf(w, "%s: %s\n", b, pressedString(pressed[b]))
	}
	if h.dial == nil {
		fmt.Fprintln(w, "DIAL: absent")
		return nil
	}
	raw, err := h.dial.Read()
	if err != nil {
		return fmt.Errorf("read dial: %w", err)
	}
	fmt.Fprintf(w, "DIAL: %d (brightness %d)\n", raw, logic.ScaleBrightness(raw, rawMax))
	return nil
}

func pressedString(p bool) string {
	if p {
		return "PRESSED"
	}
	return "RELEASED"
}

func run(cfg config, l *logger.Logger) error {
	hw, err := openHardware(cfg, l.WithTag("gpio"))
	if err != nil {
		return err
	}
	defer hw.Close()

	if cfg.PrintState {
		return printState(os.Stdout, hw, cfg.ADCMax)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := uuid.NewString()
	commands := make(chan string, commandQueue)

	tracker := status.NewTracker(time.Now(), instance, status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		Redis:       cfg.Redis,
		Serial:      cfg.Serial,
		HTTPAddr:    cfg.HTTP,
		LightDriver: cfg.LightDriver,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	m := metrics.New(tracker)

	lp := &loop{
		rig:      logic.NewRig(cfg.rigConfig(), time.Now()),
		buttons:  hw.buttons,
		lights:   hw.lights,
		dial:     hw.dial,
		tracker:  tracker,
		metrics:  m,
		log:      l,
		now:      time.Now,
		commands: commands,
	}

	// Serial command channel
	if cfg.Serial != "" {
		port, err := serial.Open(cfg.Serial, cfg.Baud)
		if err != nil {
			return fmt.Errorf("open serial: %w", err)
		}
		defer port.Close()
		lp.port = port
		go func() {
			if err := serial.ReadFrames(ctx, port, commands); err != nil && !errors.Is(err, context.Canceled) {
				l.Errorf("serial: %v", err)
			}
		}()
		l.Infof("serial command channel on %s", cfg.Serial)
	}

	// MQTT
	if cfg.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:   cfg.Broker,
			ClientID: "traffic-light-" + instance[:8],
			Commands: commands,
			Logger:   l.WithTag("mqtt"),
		})
		if err != nil {
			l.Errorf("mqtt disabled: %v", err)
		} else {
			defer publisher.Close()
			lp.publisher = publisher
			lp.mqttStatus = publisher
		}
	}

	// Redis
	if cfg.Redis != "" {
		rc := messaging.NewRedisClient(cfg.Redis, l.WithTag("redis"), commands)
		if err := rc.Connect(); err != nil {
			l.Errorf("redis disabled: %v", err)
			rc.Close()
		} else {
			defer rc.Close()
			rc.StartListening()
			lp.mirror = rc
			tracker.SetRedisConnected(true)
		}
	}

	// Publish startup event with full status snapshot
	lp.syncConnections()
	lp.publishSystem("STARTUP", "", true)

	// HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				l.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		l.Infof("http status server listening on %s", cfg.HTTP)
	}

	l.Infof("started: instance=%s poll=%v debounce=%v lights=%s broker=%q redis=%q heartbeat=%v",
		instance, cfg.Poll, cfg.Debounce, cfg.LightDriver, cfg.Broker, cfg.Redis, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return lp.run(ticker.C, heartbeat, sigCh)
}

// bufferStatus is implemented by publishers that hold messages while offline.
type bufferStatus interface {
	Buffered() int
}

// loop owns the rig. Every field is touched only from run's goroutine;
// input sources reach it through commands.
type loop struct {
	rig     *logic.Rig
	buttons gpio.Buttons
	lights  gpio.Lights
	dial    gpio.Analog

	port       io.Writer
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	mirror     messaging.Mirror

	tracker *status.Tracker
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time

	commands <-chan string

	lastButtons    logic.Buttons
	buttonsFailing bool
	dialFailing    bool
}

func (lp *loop) run(tick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			lp.shutdown(s)
			return nil

		case <-tick:
			lp.poll()

		case frame := <-lp.commands:
			lp.command(frame)

		case <-heartbeat:
			lp.heartbeat()
		}
	}
}

func (lp *loop) poll() {
	t := lp.now()
	in := logic.Input{Time: t}

	pressed, err := lp.buttons.Read()
	if err != nil {
		lp.metrics.ReadFailed("buttons")
		if !lp.buttonsFailing {
			lp.log.Warnf("button read error: %v", err)
			lp.buttonsFailing = true
		}
		// A failed read repeats the last good sample, never a release.
		pressed = lp.lastButtons
	} else {
		if lp.buttonsFailing {
			lp.log.Infof("button reads recovered")
			lp.buttonsFailing = false
		}
		lp.lastButtons = pressed
	}
	in.Buttons = pressed

	if lp.dial != nil {
		raw, err := lp.dial.Read()
		if err != nil {
			lp.metrics.ReadFailed("dial")
			if !lp.dialFailing {
				lp.log.Warnf("dial read error, keeping last brightness: %v", err)
				lp.dialFailing = true
			}
		} else {
			lp.dialFailing = false
			in.Raw, in.RawOK = raw, true
		}
	}

	before := lp.rig.Flags()
	out := lp.rig.Step(in)
	if after := lp.rig.Flags(); after.SystemOn != before.SystemOn {
		lp.log.Infof("power %s", onOff(after.SystemOn))
	}
	lp.apply(out, t)
	lp.tracker.Update(status.LightFromRig(lp.rig))
	lp.syncConnections()
}

func (lp *loop) command(frame string) {
	t := lp.now()
	cmd, ok := protocol.Parse(frame)
	if !ok {
		lp.log.Debugf("unrecognised frame %q", frame)
	} else {
		lp.log.Infof("command: %s", frame)
		for _, v := range []int{cmd.Red, cmd.Yellow, cmd.Green, cmd.Value} {
			if v < 0 {
				lp.log.Warnf("negative duration in %q, applying as given", frame)
				break
			}
		}
	}

	out := lp.rig.Command(cmd, t)
	lp.apply(out, t)
	lp.tracker.Update(status.LightFromRig(lp.rig))
}

// apply drives the lights and fans messages out: everything goes to the
// serial port, telemetry also goes to MQTT and Redis.
func (lp *loop) apply(out logic.Output, t time.Time) {
	if out.Lights != nil {
		if err := lp.lights.Set(*out.Lights); err != nil {
			lp.log.Errorf("set lights %+v: %v", *out.Lights, err)
		}
	}
	if len(out.Messages) == 0 {
		return
	}

	if lp.port != nil {
		_, err := io.WriteString(lp.port, protocol.EncodeAll(out.Messages))
		lp.metrics.Published("serial", err)
		if err != nil {
			lp.log.Errorf("serial write: %v", err)
		}
	}

	telemetry := false
	for _, msg := range out.Messages {
		switch msg.Kind {
		case logic.MessageState:
			telemetry = true
			lp.log.Infof("state: %s", msg.Label)
			if lp.mirror != nil {
				err := lp.mirror.PublishState(messaging.State{
					Label: msg.Label,
					Phase: lp.rig.Phase(),
					Mode:  lp.rig.Flags().Mode(),
				})
				lp.mirrored(err)
			}
		case logic.MessageBrightness:
			telemetry = true
			lp.log.Debugf("brightness: %d", msg.Brightness)
			if lp.mirror != nil {
				lp.mirrored(lp.mirror.PublishBrightness(msg.Brightness))
			}
		default:
			lp.log.Infof("%s: %s", msg.Kind, msg.Text)
		}
	}

	if telemetry && lp.publisher != nil {
		err := lp.publisher.PublishTelemetry(mqtt.TelemetryEvent{
			Timestamp:  t,
			State:      lp.rig.Label(),
			Brightness: lp.rig.Brightness(),
			Phase:      lp.rig.Phase(),
		})
		lp.metrics.Published("mqtt", err)
		if err != nil {
			lp.log.Warnf("telemetry publish error: %v", err)
		}
	}
}

func (lp *loop) mirrored(err error) {
	lp.metrics.Published("redis", err)
	if err != nil {
		lp.log.Warnf("redis mirror error: %v", err)
	}
}

func (lp *loop) heartbeat() {
	if net := readNetworkInfo(); net != nil {
		lp.tracker.SetNetwork(net)
	}
	lp.tracker.Update(status.LightFromRig(lp.rig))
	lp.syncConnections()
	c := lp.rig.Counters()
	lp.log.Infof("heartbeat: mode=%s state=%s cycles=%d commands=%d presses=%d",
		lp.rig.Flags().Mode(), lp.rig.Label(), c.Cycles, c.Commands, c.ButtonPresses)
	lp.publishSystem("HEARTBEAT", "", false)
}

func (lp *loop) shutdown(s os.Signal) {
	lp.log.Infof("received %v, shutting down", s)
	if err := lp.lights.Set(logic.Off); err != nil {
		lp.log.Errorf("lights off: %v", err)
	}
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	lp.syncConnections()
	lp.publishSystem("SHUTDOWN", signalName, true)
}

func (lp *loop) publishSystem(event, reason string, retained bool) {
	if lp.publisher == nil {
		return
	}
	snap := lp.tracker.Snapshot()
	err := lp.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	lp.metrics.Published("mqtt", err)
	if err != nil {
		lp.log.Warnf("failed to publish %s event: %v", event, err)
	} else {
		lp.log.Infof("published %s event", event)
	}
}

func (lp *loop) syncConnections() {
	if lp.mqttStatus == nil {
		return
	}
	buffered := 0
	if b, ok := lp.publisher.(bufferStatus); ok {
		buffered = b.Buffered()
	}
	lp.tracker.SetMQTT(lp.mqttStatus.IsConnected(), buffered)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType     = "NETWORK_TYPE"
	envNetworkIP       = "NETWORK_IP"
	envNetworkStatus   = "NETWORK_STATUS"
	envNetworkGateway  = "NETWORK_GATEWAY"
	envNetworkWifiSSID = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:    os.Getenv(envNetworkType),
		IP:      os.Getenv(envNetworkIP),
		Status:  s,
		Gateway: os.Getenv(envNetworkGateway),
		SSID:    os.Getenv(envNetworkWifiSSID),
	}
}
