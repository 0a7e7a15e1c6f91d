package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultIIORoot is where the kernel exposes industrial I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// SysfsADC reads one channel of an IIO ADC.
type SysfsADC struct {
	path string
}

// NewSysfsADC returns a reader for in_voltage<channel>_raw of the device.
// The file must exist.
func NewSysfsADC(root, device string, channel int) (*SysfsADC, error) {
	path := filepath.Join(root, device, fmt.Sprintf("in_voltage%d_raw", channel))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ADC sysfs not found: %w", err)
	}
	return &SysfsADC{path: path}, nil
}

// Read returns the raw ADC value.
func (a *SysfsADC) Read() (int, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return -1, fmt.Errorf("read %s: %w", a.path, err)
	}

	var value int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "%d", &value); err != nil {
		return -1, fmt.Errorf("parse ADC value: %w", err)
	}
	return value, nil
}
