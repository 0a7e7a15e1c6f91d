package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
	"join": strings.Join,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Traffic Light</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.lamps { display: inline-block; background: #222; padding: 6px; border-radius: 8px; }
.lamp { width: 28px; height: 28px; border-radius: 50%; margin: 4px; background: #444; }
.lamp.red.lit { background: #e22; }
.lamp.yellow.lit { background: #eb2; }
.lamp.green.lit { background: #2c4; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Traffic Light</h1>

<div class="lamps" title="{{.State}}">
<div class="lamp red{{if .Red}} lit{{end}}"></div>
<div class="lamp yellow{{if .Yellow}} lit{{end}}"></div>
<div class="lamp green{{if .Green}} lit{{end}}"></div>
</div>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode">{{.Mode}}</td></tr>
<tr><th>State</th><td id="state">{{.State}}</td></tr>
<tr><th>Phase</th><td>{{.Light.Phase}}</td></tr>
<tr><th>Brightness</th><td>{{.Light.Brightness}}</td></tr>
<tr><th>Tasks</th><td>{{join .Light.Tasks ", "}}</td></tr>
</table>

<h2>Timings</h2>
<table>
<tr><th>Red</th><td>{{index .Light.Durations 0 | ms}}ms</td></tr>
<tr><th>Yellow</th><td>{{index .Light.Durations 1 | ms}}ms</td></tr>
<tr><th>Green</th><td>{{index .Light.Durations 2 | ms}}ms</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{if .MQTTBuffered}} ({{.MQTTBuffered}} buffered){{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Redis</th><td class="{{if .RedisConnected}}connected{{else}}disconnected{{end}}">{{if .Config.Redis}}{{.Config.Redis}}{{else}}disabled{{end}}</td></tr>
<tr><th>Serial</th><td>{{if .Config.Serial}}{{.Config.Serial}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Phase advances</th><td>{{.Light.Counters.PhaseAdvances}}</td></tr>
<tr><th>Cycles</th><td>{{.Light.Counters.Cycles}}</td></tr>
<tr><th>Mode changes</th><td>{{.Light.Counters.ModeChanges}}</td></tr>
<tr><th>Commands</th><td>{{.Light.Counters.Commands}}</td></tr>
<tr><th>Button presses</th><td>{{.Light.Counters.ButtonPresses}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Instance</th><td>{{.InstanceID}}</td></tr>
<tr><th>Lights</th><td>{{.Config.LightDriver}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	state := string(snap.Light.Label)
	if !snap.Updated {
		state = "UNKNOWN"
	}
	// Lamps follow the state label; blinking states show their lit half.
	l := snap.Light.Label
	data := struct {
		status.Snapshot
		Uptime             time.Duration
		Mode               logic.Mode
		State              string
		Red, Yellow, Green bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Mode:     snap.Light.Flags.Mode(),
		State:    state,
		Red:      snap.Updated && l == logic.LabelRed,
		Yellow:   snap.Updated && (l == logic.LabelYellow || l == logic.LabelEmergency || l == logic.LabelBlinking),
		Green:    snap.Updated && (l == logic.LabelGreen || l == logic.LabelGreenBlink),
	}
	indexTmpl.Execute(w, data)
}
