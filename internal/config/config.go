package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Servo driver backends.
const (
	DriverPigpio  = "pigpio"
	DriverGPIO    = "gpio"
	DriverMaestro = "maestro"
	DriverMock    = "mock"
)

// Camera is a named snapshot endpoint from the CAMERAS key.
type Camera struct {
	Name string
	URL  string
}

// Config holds all application configuration values.
type Config struct {
	// ADC Hardware
	SPIDevice   string
	SPISpeedHz  int
	ADCChannels []int // MCP3208 inputs, one per joint

	// Servo Hardware
	ServoPins       []int // one per ADC channel, same order
	ServoDriver     string
	PigpioAddr      string
	MaestroPort     string
	MaestroBaudRate int

	// Signal processing
	FilterSize     int
	AnglePrecision int // decimal digits kept on logged angles

	// Timing
	TargetHz       float64
	InitMaxRetries int
	InitRetryDelay time.Duration

	// Recording
	Record        bool
	DataDir       string
	EpisodeFormat string // Go time layout for episode directory names
	Cameras       []Camera
	CameraTimeout time.Duration

	// MQTT (empty broker disables the live feed)
	MQTTBroker           string
	MQTTClientIDRecorder string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	TopicAngles          string

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration of the three-joint arm on a Pi with
// pigpiod, 30 Hz recording into ./dataset.
func Default() *Config {
	return &Config{
		SPIDevice:   "/dev/spidev0.0",
		SPISpeedHz:  1_000_000,
		ADCChannels: []int{0, 1, 2},

		ServoPins:       []int{18, 19, 20},
		ServoDriver:     DriverPigpio,
		PigpioAddr:      "localhost:8888",
		MaestroPort:     "/dev/ttyACM0",
		MaestroBaudRate: 9600,

		FilterSize:     10,
		AnglePrecision: 2,

		TargetHz:       30,
		InitMaxRetries: 3,
		InitRetryDelay: time.Second,

		Record:        true,
		DataDir:       "dataset",
		EpisodeFormat: "episode-20060102-150405",
		CameraTimeout: 500 * time.Millisecond,

		MQTTClientIDRecorder: "arm-recorder",
		MQTTClientIDConsole:  "arm-console",
		MQTTClientIDWeb:      "arm-web",
		MQTTClientIDDisplay:  "arm-display",
		TopicAngles:          "arm/angles",

		WebServerPort: 8080,

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 200,
	}
}

// Load reads a KEY=VALUE configuration file on top of Default().
// Blank lines and '#' comments are ignored; unknown keys are errors.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromMap(values)
}

// FromMap applies already parsed KEY=VALUE pairs on top of Default().
func FromMap(values map[string]string) (*Config, error) {
	cfg := Default()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// ADC Hardware
	case "SPI_DEVICE":
		c.SPIDevice = value
	case "SPI_SPEED_HZ":
		c.SPISpeedHz, err = parseIntRange(key, value, 10_000, 2_000_000)
	case "ADC_CHANNELS":
		c.ADCChannels, err = parseIntList(key, value, 0, 7)

	// Servo Hardware
	case "SERVO_PINS":
		c.ServoPins, err = parseIntList(key, value, 0, 53)
	case "SERVO_DRIVER":
		switch value {
		case DriverPigpio, DriverGPIO, DriverMaestro, DriverMock:
			c.ServoDriver = value
		default:
			return fmt.Errorf("SERVO_DRIVER must be one of pigpio, gpio, maestro, mock, got %q", value)
		}
	case "PIGPIO_ADDR":
		c.PigpioAddr = value
	case "MAESTRO_PORT":
		c.MaestroPort = value
	case "MAESTRO_BAUD_RATE":
		c.MaestroBaudRate, err = parseIntRange(key, value, 1200, 250_000)

	// Signal processing
	case "FILTER_SIZE":
		c.FilterSize, err = parseIntRange(key, value, 1, 1000)
	case "ANGLE_PRECISION":
		c.AnglePrecision, err = parseIntRange(key, value, 0, 6)

	// Timing
	case "TARGET_HZ":
		hz, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid TARGET_HZ %q: %w", value, perr)
		}
		if hz <= 0 || hz > 1000 {
			return fmt.Errorf("TARGET_HZ must be in (0, 1000], got %v", hz)
		}
		c.TargetHz = hz
	case "INIT_MAX_RETRIES":
		c.InitMaxRetries, err = parseIntRange(key, value, 1, 100)
	case "INIT_RETRY_DELAY":
		c.InitRetryDelay, err = parseDuration(key, value)

	// Recording
	case "RECORD":
		b, perr := strconv.ParseBool(value)
		if perr != nil {
			return fmt.Errorf("invalid RECORD %q: %w", value, perr)
		}
		c.Record = b
	case "DATA_DIR":
		c.DataDir = value
	case "EPISODE_FORMAT":
		c.EpisodeFormat = value
	case "CAMERAS":
		c.Cameras, err = parseCameras(value)
	case "CAMERA_TIMEOUT":
		c.CameraTimeout, err = parseDuration(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECORDER":
		c.MQTTClientIDRecorder = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "TOPIC_ANGLES":
		c.TopicAngles = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseIntRange(key, value, 1, 65535)

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseIntRange(key, value, 10, 60_000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

// hardwarePWMPins are the BCM pins the gpio driver can drive with PWM.
var hardwarePWMPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

// validate checks cross-field consistency.
func (c *Config) validate() error {
	if len(c.ADCChannels) == 0 {
		return fmt.Errorf("ADC_CHANNELS is required")
	}
	if len(c.ServoPins) != len(c.ADCChannels) {
		return fmt.Errorf("SERVO_PINS has %d entries, ADC_CHANNELS has %d", len(c.ServoPins), len(c.ADCChannels))
	}
	if dup := firstDuplicate(c.ADCChannels); dup >= 0 {
		return fmt.Errorf("ADC_CHANNELS lists channel %d twice", dup)
	}
	if dup := firstDuplicate(c.ServoPins); dup >= 0 {
		return fmt.Errorf("SERVO_PINS lists pin %d twice", dup)
	}
	if c.SPIDevice == "" && c.ServoDriver != DriverMock {
		return fmt.Errorf("SPI_DEVICE is required")
	}
	if c.ServoDriver == DriverGPIO {
		for _, pin := range c.ServoPins {
			if !hardwarePWMPins[pin] {
				return fmt.Errorf("SERVO_PINS: GPIO%d has no hardware PWM, the gpio driver needs 12, 13, 18 or 19", pin)
			}
		}
	}
	if c.ServoDriver == DriverMaestro && c.MaestroPort == "" {
		return fmt.Errorf("MAESTRO_PORT is required for the maestro driver")
	}
	if c.Record && c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required when RECORD is true")
	}
	if c.MQTTBroker != "" && c.TopicAngles == "" {
		return fmt.Errorf("TOPIC_ANGLES is required when MQTT_BROKER is set")
	}
	return nil
}

// Period returns the target tick period.
func (c *Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.TargetHz)
}

// CameraNames lists the configured camera names in order.
func (c *Config) CameraNames() []string {
	names := make([]string, len(c.Cameras))
	for i, cam := range c.Cameras {
		names[i] = cam.Name
	}
	return names
}

func parseIntRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

// parseIntList parses "0,1,2".
func parseIntList(key, value string, lo, hi int) ([]int, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := parseIntRange(key, strings.TrimSpace(p), lo, hi)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseDuration accepts Go durations ("750ms") or bare milliseconds ("750").
func parseDuration(key, value string) (time.Duration, error) {
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("%s must not be negative", key)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// parseCameras parses "picam=http://host:8000/snapshot.jpg,webcam=http://...".
func parseCameras(value string) ([]Camera, error) {
	if value == "" {
		return nil, nil
	}
	var cams []Camera
	seen := map[string]bool{}
	for _, entry := range strings.Split(value, ",") {
		name, url, ok := strings.Cut(strings.TrimSpace(entry), "=")
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("CAMERAS entry %q must be name=url", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("CAMERAS lists %q twice", name)
		}
		seen[name] = true
		cams = append(cams, Camera{Name: name, URL: url})
	}
	return cams, nil
}

func firstDuplicate(vals []int) int {
	seen := make(map[int]bool, len(vals))
	for _, v := range vals {
		if seen[v] {
			return v
		}
		seen[v] = true
	}
	return -1
}

// InitGlobal loads the configuration file once for the whole process.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
