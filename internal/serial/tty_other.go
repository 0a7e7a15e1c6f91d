//go:build !linux

package serial

import (
	"errors"
	"os"
)

// openTTY is not implemented on non-Linux platforms; use stdio.
func openTTY(device string, baud int) (*os.File, error) {
	return nil, errors.New("serial: tty not supported on this platform (requires Linux)")
}
