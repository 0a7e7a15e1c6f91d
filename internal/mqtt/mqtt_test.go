package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"github.com/sweeney/traffic-light/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := TelemetryEvent{
		Timestamp:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		State:      logic.LabelGreenBlink,
		Brightness: 128,
		Phase:      4,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"light":{"timestamp":"2026-03-14T09:26:53Z","state":"GREEN_BLINK","brightness":128,"phase":4}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := TelemetryEvent{
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, loc),
		State:     logic.LabelRed,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Light.Timestamp != "2026-03-14T09:00:00Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Light.Timestamp)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "IGNORED", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestWillPayload(t *testing.T) {
	expected := `{"system":{"event":"OFFLINE"}}`
	if got := string(WillPayload()); got != expected {
		t.Errorf("got %s, want %s", got, expected)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "traffic/light/telemetry" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "traffic/light/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
	if TopicCommand != "traffic/light/command" {
		t.Errorf("unexpected command topic: %s", TopicCommand)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	ev := TelemetryEvent{Timestamp: time.Unix(0, 0), State: logic.LabelYellow, Brightness: 255, Phase: 1}
	if err := f.PublishTelemetry(ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Telemetry) != 1 || f.Telemetry[0] != ev {
		t.Errorf("telemetry not recorded: %+v", f.Telemetry)
	}
	if len(f.Payloads) != 1 || len(f.SystemPayloads) != 1 {
		t.Errorf("payloads not recorded: %d / %d", len(f.Payloads), len(f.SystemPayloads))
	}

	f.PublishError = errors.New("broker down")
	if err := f.PublishTelemetry(ev); err == nil {
		t.Error("expected error")
	}
	if len(f.Telemetry) != 1 {
		t.Error("failed publish should not be recorded")
	}

	f.Close()
	if !f.Closed {
		t.Error("expected Closed")
	}
	f.Reset()
	if f.Closed || f.PublishError != nil || len(f.Telemetry) != 0 {
		t.Errorf("reset incomplete: %+v", f)
	}
}

// fakeToken completes immediately with err.
type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                       { return true }
func (t fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t fakeToken) Error() error                     { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	open         bool
	publishErr   error
	published    []published
	publishCalls int
	subscribed   []string
	disconnected bool
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }
func (c *fakeClient) Connect() paho.Token    { return fakeToken{} }
func (c *fakeClient) Disconnect(uint)        { c.disconnected = true }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.publishCalls++
	if c.publishErr != nil {
		return fakeToken{err: c.publishErr}
	}
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	c.subscribed = append(c.subscribed, topic)
	return fakeToken{}
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, nil, 8, nil)

	if err := p.PublishTelemetry(TelemetryEvent{State: logic.LabelRed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.published) != 1 || c.published[0].topic != Topic || c.published[0].qos != 0 {
		t.Fatalf("unexpected publishes: %+v", c.published)
	}
	if p.Buffered() != 0 {
		t.Errorf("nothing should be buffered, got %d", p.Buffered())
	}
}

func TestRealPublisherBuffersWhileOfflineAndReplays(t *testing.T) {
	c := &fakeClient{open: false}
	p := newPublisher(c, nil, 8, nil)

	for _, l := range []logic.Label{logic.LabelRed, logic.LabelYellow, logic.LabelGreen} {
		if err := p.PublishTelemetry(TelemetryEvent{State: l}); err != nil {
			t.Fatalf("offline publish should buffer silently: %v", err)
		}
	}
	if c.publishCalls != 0 {
		t.Fatalf("client should not be used while offline")
	}
	if p.Buffered() != 3 {
		t.Fatalf("buffered: got %d, want 3", p.Buffered())
	}

	c.open = true
	p.connected()

	if p.Buffered() != 0 {
		t.Errorf("buffer not drained: %d", p.Buffered())
	}
	if len(c.published) != 3 {
		t.Fatalf("replayed %d, want 3", len(c.published))
	}
	var first Payload
	if err := json.Unmarshal(c.published[0].payload, &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first.Light.State != "RED" {
		t.Errorf("replay order: first state %s, want RED", first.Light.State)
	}
}

func TestRealPublisherSystemNotBuffered(t *testing.T) {
	c := &fakeClient{open: false}
	p := newPublisher(c, nil, 8, nil)

	err := p.PublishSystem(SystemEvent{Event: "HEARTBEAT"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if p.Buffered() != 0 {
		t.Errorf("system events must not be buffered")
	}

	c.open = true
	if err := p.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := c.published[0]
	if got.topic != TopicSystem || got.qos != 1 || !got.retained {
		t.Errorf("unexpected system publish: %+v", got)
	}
}

func TestRealPublisherBreakerOpens(t *testing.T) {
	c := &fakeClient{open: true, publishErr: errors.New("broker gone")}
	p := newPublisher(c, nil, 8, nil)

	for i := 0; i < 3; i++ {
		if err := p.PublishTelemetry(TelemetryEvent{}); err == nil {
			t.Fatalf("publish %d: expected error", i)
		}
	}
	if c.publishCalls != 3 {
		t.Fatalf("publish calls: got %d, want 3", c.publishCalls)
	}

	err := p.PublishTelemetry(TelemetryEvent{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open breaker, got %v", err)
	}
	if c.publishCalls != 3 {
		t.Errorf("open breaker should not reach the client, got %d calls", c.publishCalls)
	}
	if p.Buffered() != 4 {
		t.Errorf("failed telemetry should be buffered: got %d", p.Buffered())
	}
}

func TestRealPublisherSubscribesAndDelivers(t *testing.T) {
	commands := make(chan string, 2)
	c := &fakeClient{open: true}
	p := newPublisher(c, commands, 8, nil)

	p.connected()
	if len(c.subscribed) != 1 || c.subscribed[0] != TopicCommand {
		t.Fatalf("subscriptions: %v", c.subscribed)
	}

	// Third frame overflows the queue and is dropped
	p.deliver([]byte("<MODE:BLINKING><SET_RED:900><MODE:NORMAL>"))
	close(commands)

	var got []string
	for f := range commands {
		got = append(got, f)
	}
	if len(got) != 2 || got[0] != "<MODE:BLINKING" || got[1] != "<SET_RED:900" {
		t.Errorf("delivered frames: %q", got)
	}
}

func TestRealPublisherNoSubscribeWithoutCommands(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, nil, 8, nil)
	p.connected()
	if len(c.subscribed) != 0 {
		t.Errorf("unexpected subscription: %v", c.subscribed)
	}
	p.Close()
	if !c.disconnected {
		t.Error("Close should disconnect")
	}
}
