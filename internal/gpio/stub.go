//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/traffic-light/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns an error on non-Linux platforms.
func NewRealButtons(chipName string, pins [3]int) (*RealButtons, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealButtons) Read() (logic.Buttons, error) {
	return logic.Buttons{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealButtons) Close() error {
	return nil
}

// RealLights is not available on non-Linux platforms.
type RealLights struct{}

// NewRealLights returns an error on non-Linux platforms.
func NewRealLights(chipName string, pins [3]int) (*RealLights, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (l *RealLights) Set(logic.Levels) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (l *RealLights) Close() error {
	return nil
}
