// Package status provides a thread-safe status tracker for the
// traffic-light daemon. It is read by the HTTP handlers and lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
)

// NetworkInfo contains network state, as supplied by the host environment.
type NetworkInfo struct {
	Type    string
	IP      string
	Status  string
	Gateway string
	SSID    string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	Redis       string
	Serial      string
	HTTPAddr    string
	LightDriver string
}

// Light is the controller state copied out of the rig each poll.
type Light struct {
	Flags      logic.Flags
	Label      logic.Label
	Phase      int
	Brightness int
	Durations  [logic.PhaseCount]time.Duration
	Counters   logic.Counters
	Tasks      []string
}

// LightFromRig captures the rig's current state.
func LightFromRig(r *logic.Rig) Light {
	return Light{
		Flags:      r.Flags(),
		Label:      r.Label(),
		Phase:      r.Phase(),
		Brightness: r.Brightness(),
		Durations:  r.Durations(),
		Counters:   r.Counters(),
		Tasks:      r.EnabledTasks(),
	}
}

// Snapshot is a point-in-time view of daemon state. It is a value type
// and safe to use after the lock is released.
type Snapshot struct {
	Light          Light
	Updated        bool
	StartTime      time.Time
	Now            time.Time
	InstanceID     string
	MQTTConnected  bool
	MQTTBuffered   int
	RedisConnected bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, per-boot
// instance ID and config.
func NewTracker(startTime time.Time, instanceID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:  startTime,
			InstanceID: instanceID,
			Config:     cfg,
		},
		now: time.Now,
	}
}

// Update replaces the light state. Called from the run loop on every poll.
func (t *Tracker) Update(l Light) {
	t.mu.Lock()
	t.snap.Light = l
	t.snap.Updated = true
	t.mu.Unlock()
}

// SetMQTT sets the MQTT connection status and replay backlog.
func (t *Tracker) SetMQTT(connected bool, buffered int) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.snap.MQTTBuffered = buffered
	t.mu.Unlock()
}

func (t *Tracker) SetRedisConnected(connected bool) {
	t.mu.Lock()
	t.snap.RedisConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state with Now
// set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Light.Tasks = append([]string(nil), s.Light.Tasks...)
	s.Now = t.now()
	return s
}
