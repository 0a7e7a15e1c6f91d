package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
)

// DefaultPWMRoot is where the kernel exposes PWM chips.
const DefaultPWMRoot = "/sys/class/pwm"

// DefaultPWMPeriod is a 1kHz carrier.
const DefaultPWMPeriod = time.Millisecond

// PWMLights dims the lights with the kernel sysfs PWM interface.
type PWMLights struct {
	chipDir  string
	channels [3]int
	period   int64 // ns
}

// NewPWMLights exports the red, yellow and green channels of a PWM chip,
// sets their period and enables them at zero duty.
func NewPWMLights(root string, chip int, channels [3]int, period time.Duration) (*PWMLights, error) {
	l := &PWMLights{
		chipDir:  filepath.Join(root, fmt.Sprintf("pwmchip%d", chip)),
		channels: channels,
		period:   period.Nanoseconds(),
	}
	if l.period <= 0 {
		return nil, fmt.Errorf("invalid pwm period %v", period)
	}

	for _, ch := range channels {
		if err := l.export(ch); err != nil {
			return nil, err
		}
		if err := l.write(ch, "duty_cycle", 0); err != nil {
			return nil, err
		}
		if err := l.write(ch, "period", l.period); err != nil {
			return nil, err
		}
		if err := l.write(ch, "enable", 1); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *PWMLights) export(ch int) error {
	if _, err := os.Stat(l.channelDir(ch)); err == nil {
		return nil
	}
	path := filepath.Join(l.chipDir, "export")
	if err := os.WriteFile(path, []byte(strconv.Itoa(ch)), 0); err != nil {
		return fmt.Errorf("export pwm channel %d: %w", ch, err)
	}
	return nil
}

func (l *PWMLights) channelDir(ch int) string {
	return filepath.Join(l.chipDir, fmt.Sprintf("pwm%d", ch))
}

func (l *PWMLights) write(ch int, attr string, v int64) error {
	path := filepath.Join(l.channelDir(ch), attr)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(v, 10)), 0); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Duty converts a 0-255 level into a duty cycle for the configured period.
func (l *PWMLights) Duty(level int) int64 {
	if level <= 0 {
		return 0
	}
	if level >= logic.MaxBrightness {
		return l.period
	}
	return l.period * int64(level) / logic.MaxBrightness
}

// Set writes the duty cycle of every channel.
func (l *PWMLights) Set(levels logic.Levels) error {
	for i, level := range []int{levels.Red, levels.Yellow, levels.Green} {
		if err := l.write(l.channels[i], "duty_cycle", l.Duty(level)); err != nil {
			return err
		}
	}
	return nil
}

// Close zeroes and disables the channels and unexports them.
func (l *PWMLights) Close() error {
	var errs []error
	for _, ch := range l.channels {
		if err := l.write(ch, "duty_cycle", 0); err != nil {
			errs = append(errs, err)
		}
		if err := l.write(ch, "enable", 0); err != nil {
			errs = append(errs, err)
		}
		path := filepath.Join(l.chipDir, "unexport")
		if err := os.WriteFile(path, []byte(strconv.Itoa(ch)), 0); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("unexport pwm channel %d: %w", ch, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
