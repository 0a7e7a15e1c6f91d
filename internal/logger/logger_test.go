package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelWarning)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug") || strings.Contains(out, "info") {
		t.Errorf("lower levels leaked: %q", out)
	}
	if !strings.Contains(out, "WARN: warn 3") {
		t.Errorf("missing warning: %q", out)
	}
	if !strings.Contains(out, "ERROR: error 4") {
		t.Errorf("missing error: %q", out)
	}
}

func TestWithTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelInfo).WithTag("mqtt")

	l.Infof("connected")
	l.Warnf("slow")

	want := "[mqtt] connected\n[mqtt] WARN: slow\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"0": LogLevelNone, "error": LogLevelError, "WARN": LogLevelWarning,
		"info": LogLevelInfo, " 4 ": LogLevelDebug,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q): got %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Level() != LogLevelNone {
		t.Errorf("level: got %v", l.Level())
	}
	l.Errorf("nothing to see")
}
