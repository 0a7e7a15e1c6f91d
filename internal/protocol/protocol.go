// Package protocol implements the text command channel: '>'-terminated
// inbound frames and the outbound state, brightness and acknowledgement
// encoding.
package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/traffic-light/internal/logic"
)

// Delimiter terminates every inbound frame.
const Delimiter = '>'

// Frame prefixes.
const (
	prefixSetAll    = "<SET,"
	prefixSetRed    = "<SET_RED:"
	prefixSetYellow = "<SET_YELLOW:"
	prefixSetGreen  = "<SET_GREEN:"
	prefixMode      = "<MODE:"
)

// LineEnding follows acknowledgement and notice lines.
const LineEnding = "\r\n"

// ScanFrames is a bufio.SplitFunc that yields the text before each '>'.
// A trailing partial frame at EOF is returned as-is.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, Delimiter); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Frames splits a payload holding one or more frames. Used for message
// transports where the whole payload arrives at once.
func Frames(payload string) []string {
	var frames []string
	sc := bufio.NewScanner(strings.NewReader(payload))
	sc.Split(ScanFrames)
	for sc.Scan() {
		if f := strings.TrimSpace(sc.Text()); f != "" {
			frames = append(frames, f)
		}
	}
	return frames
}

// Parse decodes one frame (without its '>'). Frames that match no
// command come back as CommandUnknown with ok=false.
func Parse(frame string) (cmd logic.Command, ok bool) {
	frame = strings.TrimSpace(frame)
	cmd.Raw = frame

	switch {
	case strings.HasPrefix(frame, prefixSetAll):
		var r, y, g int
		if n, _ := fmt.Sscanf(frame, "<SET,R:%d,Y:%d,G:%d", &r, &y, &g); n == 3 {
			cmd.Kind = logic.CommandSetAll
			cmd.Red, cmd.Yellow, cmd.Green = r, y, g
			return cmd, true
		}
	case strings.HasPrefix(frame, prefixSetRed):
		return parseSetter(cmd, frame[len(prefixSetRed):], logic.CommandSetRed)
	case strings.HasPrefix(frame, prefixSetYellow):
		return parseSetter(cmd, frame[len(prefixSetYellow):], logic.CommandSetYellow)
	case strings.HasPrefix(frame, prefixSetGreen):
		return parseSetter(cmd, frame[len(prefixSetGreen):], logic.CommandSetGreen)
	case strings.HasPrefix(frame, prefixMode):
		if m, valid := logic.ParseMode(strings.TrimSpace(frame[len(prefixMode):])); valid {
			cmd.Kind = logic.CommandMode
			cmd.Mode = m
			return cmd, true
		}
	}

	cmd.Kind = logic.CommandUnknown
	return cmd, false
}

func parseSetter(cmd logic.Command, value string, kind logic.CommandKind) (logic.Command, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		cmd.Kind = logic.CommandUnknown
		return cmd, false
	}
	cmd.Kind = kind
	cmd.Value = v
	return cmd, true
}

// Encode renders an outbound message as it goes on the wire.
func Encode(m logic.Message) string {
	switch m.Kind {
	case logic.MessageState:
		return "<" + string(m.Label) + ">"
	case logic.MessageBrightness:
		return "[BRIGHTNESS:" + strconv.Itoa(m.Brightness) + "]"
	}
	return m.Text + LineEnding
}

// EncodeAll concatenates the wire form of several messages.
func EncodeAll(msgs []logic.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(Encode(m))
	}
	return b.String()
}
