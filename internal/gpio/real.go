//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/traffic-light/internal/logic"
)

// RealButtons reads the buttons from actual hardware using the Linux GPIO
// character device.
type RealButtons struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealButtons requests the three button lines (emergency, blinking,
// power) as active-low inputs with pull-ups.
func NewRealButtons(chipName string, pins [3]int) (*RealButtons, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Active-low so a pressed button (pulled to ground) reads as 1.
	lines, err := chip.RequestLines(pins[:], gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pins %v: %w", pins, err)
	}

	return &RealButtons{chip: chip, lines: lines}, nil
}

// Read returns the pressed state of every button.
func (r *RealButtons) Read() (logic.Buttons, error) {
	var b logic.Buttons
	vals := make([]int, len(b))
	if err := r.lines.Values(vals); err != nil {
		return b, fmt.Errorf("read button pins: %w", err)
	}
	for i, v := range vals {
		b[i] = v == 1
	}
	return b, nil
}

// Close releases GPIO resources.
func (r *RealButtons) Close() error {
	var errs []error
	if r.lines != nil {
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pins: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealLights drives the lights as plain on/off GPIO outputs.
// Any level above zero turns the light on.
type RealLights struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealLights requests the red, yellow and green lines as outputs, initially off.
func NewRealLights(chipName string, pins [3]int) (*RealLights, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	lines, err := chip.RequestLines(pins[:], gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request light pins %v: %w", pins, err)
	}

	return &RealLights{chip: chip, lines: lines}, nil
}

// Set drives the outputs.
func (l *RealLights) Set(levels logic.Levels) error {
	vals := []int{onOff(levels.Red), onOff(levels.Yellow), onOff(levels.Green)}
	if err := l.lines.SetValues(vals); err != nil {
		return fmt.Errorf("set light pins: %w", err)
	}
	return nil
}

// Close turns every light off, returns the pins to inputs and releases them
// so nothing stays lit after the daemon exits.
func (l *RealLights) Close() error {
	var errs []error
	if l.lines != nil {
		if err := l.lines.SetValues([]int{0, 0, 0}); err != nil {
			errs = append(errs, fmt.Errorf("clear light pins: %w", err))
		}
		if err := l.lines.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure light pins: %w", err))
		}
		if err := l.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close light pins: %w", err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func onOff(level int) int {
	if level > 0 {
		return 1
	}
	return 0
}
