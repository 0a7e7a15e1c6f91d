package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"github.com/sweeney/traffic-light/internal/logger"
	"github.com/sweeney/traffic-light/internal/protocol"
)

// DefaultBufferSize is how many telemetry messages are kept while offline.
const DefaultBufferSize = 256

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned for unbuffered publishes while offline.
var ErrNotConnected = errors.New("mqtt: not connected")

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Config configures a RealPublisher.
type Config struct {
	Broker   string
	ClientID string
	// Commands receives frames from TopicCommand. Nil disables the subscription.
	Commands   chan<- string
	BufferSize int
	// ConnectRetries bounds the initial connect attempts.
	ConnectRetries int
	Logger         *logger.Logger
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client   client
	breaker  *gobreaker.CircuitBreaker
	commands chan<- string
	log      *logger.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

func newPublisher(c client, commands chan<- string, bufSize int, l *logger.Logger) *RealPublisher {
	if l == nil {
		l = logger.Discard()
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	p := &RealPublisher{
		client:   c,
		commands: commands,
		log:      l,
		buf:      newRingBuffer(bufSize, l),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mqtt-publish",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warnf("%s breaker %s -> %s", name, from, to)
		},
	})
	return p
}

// NewRealPublisher connects to the broker, retrying with exponential
// backoff, and subscribes to TopicCommand on every (re)connect.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	p := newPublisher(nil, cfg.Commands, cfg.BufferSize, cfg.Logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "traffic-light"
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warnf("connection lost: %v", err)
		})
	p.client = paho.NewClient(opts)

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 5
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute

	err := backoff.Retry(func() error {
		token := p.client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			p.log.Warnf("connect to %s: timeout", cfg.Broker)
			return fmt.Errorf("connection timeout")
		}
		if err := token.Error(); err != nil {
			p.log.Warnf("connect to %s: %v", cfg.Broker, err)
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(retries-1)))
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs on every successful (re)connect in a paho goroutine.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.connected()
}

func (p *RealPublisher) connected() {
	p.log.Infof("connected")
	if p.commands != nil {
		token := p.client.Subscribe(TopicCommand, 1, func(_ paho.Client, m paho.Message) {
			p.deliver(m.Payload())
		})
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			p.log.Errorf("subscribe %s: %v", TopicCommand, token.Error())
		}
	}
	p.replay()
}

// deliver splits a command payload into frames and hands them to the
// loop. Frames are dropped when the loop is not keeping up.
func (p *RealPublisher) deliver(payload []byte) {
	for _, frame := range protocol.Frames(string(payload)) {
		select {
		case p.commands <- frame:
		default:
			p.log.Warnf("command queue full, dropping %q", frame)
		}
	}
}

func (p *RealPublisher) replay() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warnf("replay: %v", err)
			p.mu.Lock()
			for _, rest := range pending[i:] {
				p.buf.push(rest)
			}
			p.mu.Unlock()
			return
		}
	}
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) {
			return nil, fmt.Errorf("publish timeout")
		}
		return nil, token.Error()
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// PublishTelemetry sends a light telemetry event. While the broker is
// unreachable the message is buffered for replay.
func (p *RealPublisher) PublishTelemetry(event TelemetryEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	msg := bufferedMsg{topic: Topic, payload: payload}

	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	if err := p.send(msg); err != nil {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

// PublishSystem sends a system lifecycle event. Lifecycle events are
// never buffered.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	// QoS 1 so shutdown events survive a flaky link
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns how many telemetry messages await replay.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
