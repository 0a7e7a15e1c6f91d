// Package serial carries the text command channel over a tty or stdio.
package serial

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sweeney/traffic-light/internal/protocol"
)

// DefaultDevice is the USB CDC port a console usually appears on.
const DefaultDevice = "/dev/ttyACM0"

// DefaultBaud matches the console side.
const DefaultBaud = 115200

// Stdio selects stdin/stdout instead of a tty.
const Stdio = "stdio"

// Open returns the command channel for the given device. "stdio" uses the
// process's stdin and stdout.
func Open(device string, baud int) (io.ReadWriteCloser, error) {
	if device == Stdio {
		return stdio{}, nil
	}
	f, err := openTTY(device, baud)
	if err != nil {
		return nil, err
	}
	return f, nil
}

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return nil }

// ReadFrames splits r on the frame delimiter and sends every non-empty
// frame to out. It returns when r is exhausted or fails, or ctx is done.
func ReadFrames(ctx context.Context, r io.Reader, out chan<- string) error {
	sc := bufio.NewScanner(r)
	sc.Split(protocol.ScanFrames)
	for sc.Scan() {
		frame := strings.TrimSpace(sc.Text())
		if frame == "" {
			continue
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read frames: %w", err)
	}
	return nil
}
