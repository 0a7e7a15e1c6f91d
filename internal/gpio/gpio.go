// Package gpio provides button input, light output and dial reading with
// hardware abstraction.
// The real implementations use the Linux GPIO character device and sysfs.
// The fake implementations allow testing without hardware.
package gpio

import "github.com/sweeney/traffic-light/internal/logic"

// Buttons reads the override buttons.
type Buttons interface {
	// Read returns the logical pressed state of every button.
	// The lines are active-low with pull-ups: raw low = pressed.
	Read() (logic.Buttons, error)

	// Close releases GPIO resources.
	Close() error
}

// Lights drives the three light outputs.
type Lights interface {
	// Set drives every output to the given level (0-255).
	Set(levels logic.Levels) error

	// Close turns the outputs off and releases them.
	Close() error
}

// Analog reads the brightness dial.
type Analog interface {
	// Read returns the raw ADC value.
	Read() (int, error)
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinEmergency = 17
	DefaultPinBlinking  = 27
	DefaultPinPower     = 22

	DefaultPinRed    = 16
	DefaultPinYellow = 20
	DefaultPinGreen  = 21
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Consumer is the label shown for our lines in gpioinfo.
const Consumer = "traffic-light"
