package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Instance      string       `json:"instance,omitempty"`
	Mode          string       `json:"mode"`
	State         string       `json:"state"`
	Phase         int          `json:"phase"`
	Brightness    int          `json:"brightness"`
	Tasks         []string     `json:"tasks"`
	Timings       TimingsJSON  `json:"timings"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Redis         RedisStatus  `json:"redis"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// TimingsJSON lists the three adjustable phase durations.
type TimingsJSON struct {
	RedMs    int64 `json:"red_ms"`
	YellowMs int64 `json:"yellow_ms"`
	GreenMs  int64 `json:"green_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
}

type RedisStatus struct {
	Connected bool   `json:"connected"`
	Addr      string `json:"addr"`
}

// CountsJSON is the JSON representation of the activity counters.
type CountsJSON struct {
	PhaseAdvances int `json:"phase_advances"`
	Cycles        int `json:"cycles"`
	ModeChanges   int `json:"mode_changes"`
	Commands      int `json:"commands"`
	ButtonPresses int `json:"button_presses"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type    string `json:"type"`
	IP      string `json:"ip"`
	Status  string `json:"status"`
	Gateway string `json:"gateway"`
	SSID    string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	Redis       string `json:"redis"`
	Serial      string `json:"serial"`
	HTTPAddr    string `json:"http_addr"`
	LightDriver string `json:"light_driver"`
}

func buildInner(snap Snapshot) StatusInner {
	l := snap.Light
	state := string(l.Label)
	if !snap.Updated {
		state = "UNKNOWN"
	}
	tasks := l.Tasks
	if tasks == nil {
		tasks = []string{}
	}

	return StatusInner{
		Instance:   snap.InstanceID,
		Mode:       string(l.Flags.Mode()),
		State:      state,
		Phase:      l.Phase,
		Brightness: l.Brightness,
		Tasks:      tasks,
		Timings: TimingsJSON{
			RedMs:    l.Durations[0].Milliseconds(),
			YellowMs: l.Durations[1].Milliseconds(),
			GreenMs:  l.Durations[2].Milliseconds(),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
		},
		Redis: RedisStatus{Connected: snap.RedisConnected, Addr: snap.Config.Redis},
		Counts: CountsJSON{
			PhaseAdvances: l.Counters.PhaseAdvances,
			Cycles:        l.Counters.Cycles,
			ModeChanges:   l.Counters.ModeChanges,
			Commands:      l.Counters.Commands,
			ButtonPresses: l.Counters.ButtonPresses,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			Redis:       snap.Config.Redis,
			Serial:      snap.Config.Serial,
			HTTPAddr:    snap.Config.HTTPAddr,
			LightDriver: snap.Config.LightDriver,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:    snap.Network.Type,
			IP:      snap.Network.IP,
			Status:  snap.Network.Status,
			Gateway: snap.Network.Gateway,
			SSID:    snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
