package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logger"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/serial"
)

// Light driver names for --light-driver.
const (
	driverGPIO = "gpio"
	driverPWM  = "pwm"
)

type config struct {
	Poll      time.Duration
	Debounce  time.Duration
	Heartbeat time.Duration

	Serial string
	Baud   int
	Broker string
	Redis  string
	HTTP   string

	LightDriver string
	Chip        string
	Buttons     [3]int // emergency, blinking, power
	Lights      [3]int // red, yellow, green
	PWMChip     int
	PWMChannels [3]int

	ADCDevice  string
	ADCChannel int
	ADCMax     int

	FakeHW     bool
	PrintState bool
	LogLevel   logger.LogLevel
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// parseConfig reads flags from args. TRAFFIC_<FLAG> environment variables
// supply the defaults, so an explicit flag always wins.
func parseConfig(args []string) (config, error) {
	var c config
	fs := flag.NewFlagSet("traffic-light", flag.ContinueOnError)

	fs.DurationVar(&c.Poll, "poll", getenvDuration("TRAFFIC_POLL", 10*time.Millisecond), "Hardware polling interval")
	fs.DurationVar(&c.Debounce, "debounce", getenvDuration("TRAFFIC_DEBOUNCE", logic.DefaultDebounce), "Button debounce window")
	fs.DurationVar(&c.Heartbeat, "heartbeat", getenvDuration("TRAFFIC_HEARTBEAT", 15*time.Minute), "Heartbeat interval (0 to disable)")

	fs.StringVar(&c.Serial, "serial", getenv("TRAFFIC_SERIAL", serial.DefaultDevice), `Serial device ("stdio" for stdin/stdout, empty to disable)`)
	fs.IntVar(&c.Baud, "baud", getenvInt("TRAFFIC_BAUD", serial.DefaultBaud), "Serial baud rate")
	fs.StringVar(&c.Broker, "broker", getenv("TRAFFIC_BROKER", ""), "MQTT broker address (empty to disable)")
	fs.StringVar(&c.Redis, "redis", getenv("TRAFFIC_REDIS", ""), "Redis address host:port (empty to disable)")
	fs.StringVar(&c.HTTP, "http", getenv("TRAFFIC_HTTP", ":8080"), "HTTP status address (empty to disable)")

	fs.StringVar(&c.LightDriver, "light-driver", getenv("TRAFFIC_LIGHT_DRIVER", driverGPIO), `Light output driver ("gpio" or "pwm")`)
	fs.StringVar(&c.Chip, "chip", getenv("TRAFFIC_CHIP", gpio.DefaultChip), "GPIO character device")
	fs.IntVar(&c.Buttons[0], "pin-emergency", getenvInt("TRAFFIC_PIN_EMERGENCY", gpio.DefaultPinEmergency), "BCM pin for the emergency button")
	fs.IntVar(&c.Buttons[1], "pin-blinking", getenvInt("TRAFFIC_PIN_BLINKING", gpio.DefaultPinBlinking), "BCM pin for the blinking button")
	fs.IntVar(&c.Buttons[2], "pin-power", getenvInt("TRAFFIC_PIN_POWER", gpio.DefaultPinPower), "BCM pin for the power button")
	fs.IntVar(&c.Lights[0], "pin-red", getenvInt("TRAFFIC_PIN_RED", gpio.DefaultPinRed), "BCM pin for the red light")
	fs.IntVar(&c.Lights[1], "pin-yellow", getenvInt("TRAFFIC_PIN_YELLOW", gpio.DefaultPinYellow), "BCM pin for the yellow light")
	fs.IntVar(&c.Lights[2], "pin-green", getenvInt("TRAFFIC_PIN_GREEN", gpio.DefaultPinGreen), "BCM pin for the green light")
	fs.IntVar(&c.PWMChip, "pwm-chip", getenvInt("TRAFFIC_PWM_CHIP", 0), "PWM chip number")
	fs.IntVar(&c.PWMChannels[0], "pwm-red", getenvInt("TRAFFIC_PWM_RED", 0), "PWM channel for the red light")
	fs.IntVar(&c.PWMChannels[1], "pwm-yellow", getenvInt("TRAFFIC_PWM_YELLOW", 1), "PWM channel for the yellow light")
	fs.IntVar(&c.PWMChannels[2], "pwm-green", getenvInt("TRAFFIC_PWM_GREEN", 2), "PWM channel for the green light")

	fs.StringVar(&c.ADCDevice, "adc-device", getenv("TRAFFIC_ADC_DEVICE", "iio:device0"), "IIO device for the brightness dial (empty to disable)")
	fs.IntVar(&c.ADCChannel, "adc-channel", getenvInt("TRAFFIC_ADC_CHANNEL", 0), "ADC channel for the brightness dial")
	fs.IntVar(&c.ADCMax, "adc-max", getenvInt("TRAFFIC_ADC_MAX", logic.DefaultRawMax), "Full-scale raw ADC reading")

	fs.BoolVar(&c.FakeHW, "fake-hw", getenvBool("TRAFFIC_FAKE_HW", false), "Replace all hardware with fakes")
	fs.BoolVar(&c.PrintState, "print-state", false, "Print buttons and dial once and exit")
	logLevel := fs.String("log", getenv("TRAFFIC_LOG", "info"), "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG, or the name)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		return config{}, fmt.Errorf("--log: %w", err)
	}
	c.LogLevel = level

	if err := c.validate(); err != nil {
		return config{}, err
	}
	return c, nil
}

func (c config) validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("--poll must be positive, got %v", c.Poll)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("--debounce must not be negative, got %v", c.Debounce)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("--heartbeat must not be negative, got %v", c.Heartbeat)
	}
	if c.LightDriver != driverGPIO && c.LightDriver != driverPWM {
		return fmt.Errorf("--light-driver must be %q or %q, got %q", driverGPIO, driverPWM, c.LightDriver)
	}
	if c.ADCMax <= 0 {
		return fmt.Errorf("--adc-max must be positive, got %d", c.ADCMax)
	}
	return nil
}

func (c config) rigConfig() logic.Config {
	rc := logic.DefaultConfig()
	rc.Debounce = c.Debounce
	rc.RawMax = c.ADCMax
	return rc
}
