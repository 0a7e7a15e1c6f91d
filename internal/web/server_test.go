package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/status"
)

func newTestServer(t *testing.T, metrics http.Handler) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      10,
		DebounceMs:  50,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		Serial:      "/dev/ttyACM0",
		HTTPAddr:    ":8080",
		LightDriver: "gpio",
	}
	tr := status.NewTracker(start, "instance-1", cfg)
	srv := New(":0", tr, metrics)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(status.Light{
		Flags:      logic.Flags{SystemOn: true},
		Label:      logic.LabelGreen,
		Phase:      logic.PhaseGreen,
		Brightness: 180,
		Counters:   logic.Counters{Cycles: 3},
		Tasks:      []string{logic.TaskPhase, logic.TaskTelemetry},
	})
	tr.SetMQTT(true, 0)

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.State != "GREEN" || sj.Status.Mode != "NORMAL" {
		t.Errorf("state/mode: %s/%s", sj.Status.State, sj.Status.Mode)
	}
	if sj.Status.Phase != 2 || sj.Status.Brightness != 180 {
		t.Errorf("phase/brightness: %d/%d", sj.Status.Phase, sj.Status.Brightness)
	}
	if !sj.Status.MQTT.Connected || sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("mqtt: %+v", sj.Status.MQTT)
	}
	if sj.Status.Counts.Cycles != 3 {
		t.Errorf("cycles: got %d", sj.Status.Counts.Cycles)
	}
	if len(sj.Status.Tasks) != 2 {
		t.Errorf("tasks: %v", sj.Status.Tasks)
	}
	if sj.Status.Config.Serial != "/dev/ttyACM0" {
		t.Errorf("config: %+v", sj.Status.Config)
	}
}

func TestJSONUnknownStateBeforeFirstPoll(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.State != "UNKNOWN" {
		t.Errorf("state before first poll: got %q, want UNKNOWN", sj.Status.State)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(status.Light{
		Flags: logic.Flags{SystemOn: true},
		Label: logic.LabelRed,
		Tasks: []string{logic.TaskPhase},
	})

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		page := string(body)
		if !strings.Contains(page, `<td id="state">RED</td>`) {
			t.Errorf("%s: state missing", path)
		}
		if !strings.Contains(page, `lamp red lit`) || strings.Contains(page, `lamp green lit`) {
			t.Errorf("%s: wrong lamps lit", path)
		}
		if !strings.Contains(page, "instance-1") {
			t.Errorf("%s: instance missing", path)
		}
	}
}

func TestHTMLBlinkingLightsYellow(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(status.Light{
		Flags: logic.Flags{SystemOn: true, Blinking: true},
		Label: logic.LabelBlinking,
	})

	_, page := getBody(t, ts.URL+"/")
	if !strings.Contains(page, `<td id="mode">BLINKING</td>`) {
		t.Error("mode missing")
	}
	if !strings.Contains(page, "lamp yellow lit") {
		t.Error("yellow lamp should be lit")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	code, _ := getBody(t, ts.URL+"/nonexistent")
	if code != 404 {
		t.Errorf("status: got %d, want 404", code)
	}
}

func TestMetricsRouted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "traffic_light_phase 0\n")
	})
	ts, _ := newTestServer(t, metrics)

	code, body := getBody(t, ts.URL+"/metrics")
	if code != 200 || !strings.Contains(body, "traffic_light_phase") {
		t.Errorf("metrics: %d %q", code, body)
	}
}

func TestMetricsAbsentWithoutHandler(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	code, _ := getBody(t, ts.URL+"/metrics")
	if code != 404 {
		t.Errorf("status: got %d, want 404", code)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	if sj := getJSON(t, ts.URL+"/index.json"); sj.Status.MQTT.Connected {
		t.Error("expected MQTT disconnected initially")
	}

	tr.Update(status.Light{Label: logic.LabelOff})
	tr.SetMQTT(true, 0)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.State != "OFF" || sj.Status.Mode != "OFF" {
		t.Errorf("state/mode: %s/%s", sj.Status.State, sj.Status.Mode)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
