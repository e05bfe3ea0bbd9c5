package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DeviceSerial = "serial"
	DeviceFile   = "file"

	DefaultBaudRate   = 115200
	DefaultInit       = "2A0A0A"
	DefaultDriAddress = 0x2A
)

var ErrNoPort = errors.New("config: serial port is required")

type Config struct {
	Port               string              `yaml:"port"`
	BaudRate           int                 `yaml:"baudrate"`
	Init               string              `yaml:"init"`
	Device             string              `yaml:"device"`
	PlaybackLocation   string              `yaml:"playback_location"`
	PlaybackChunkSize  int                 `yaml:"playback_chunk_size"`
	PlaybackDelay      time.Duration       `yaml:"playback_delay"`
	RecordLocation     string              `yaml:"record_location"`
	Decoder            string              `yaml:"decoder"`
	DriAddress         uint8               `yaml:"dri_address"`
	LogAddresses       []uint8             `yaml:"log_addresses,flow"`
	LogLevel           string              `yaml:"log_level"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	WebSocket          struct {
		Port int    `yaml:"port"`
		Path string `yaml:"path"`
	} `yaml:"websocket"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	VizServer struct {
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func Default() Config {
	c := Config{
		BaudRate:          DefaultBaudRate,
		Init:              DefaultInit,
		Device:            DeviceSerial,
		PlaybackChunkSize: 256,
		PlaybackDelay:     10 * time.Millisecond,
		Decoder:           "odid",
		DriAddress:        DefaultDriAddress,
		LogLevel:          "info",
	}
	c.VizServer.UpdateInterval = time.Second
	c.WebSocket.Path = "/ws"
	c.NATS.SubjectPrefix = "riderconnect.records"
	return c
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	c := Default()
	contents, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return c, nil
}

// InitBytes decodes the init hex string. An empty string sends nothing. A
// malformed string is not a validation error; callers skip the init frame.
func (c Config) InitBytes() ([]byte, error) {
	b, err := hex.DecodeString(c.Init)
	if err != nil {
		return nil, fmt.Errorf("config: init %q: %w", c.Init, err)
	}
	return b, nil
}

func (c Config) Validate() error {
	if c.PlaybackLocation != "" && c.Device != DeviceFile {
		return fmt.Errorf("config: playback_location requires device %q", DeviceFile)
	}
	switch c.Device {
	case DeviceSerial:
		if c.Port == "" {
			return ErrNoPort
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("config: invalid baudrate %d", c.BaudRate)
		}
	case DeviceFile:
		if c.PlaybackLocation == "" {
			return errors.New("config: file device needs playback_location")
		}
		if c.PlaybackChunkSize <= 0 {
			return fmt.Errorf("config: invalid playback_chunk_size %d", c.PlaybackChunkSize)
		}
		if c.PlaybackDelay < 0 {
			return fmt.Errorf("config: negative playback_delay %s", c.PlaybackDelay)
		}
	default:
		return fmt.Errorf("config: unknown device %q", c.Device)
	}
	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		return errors.New("config: nats needs subject_prefix")
	}
	for _, dest := range c.OutputDestinations {
		if dest.Host == "" || dest.Port <= 0 {
			return fmt.Errorf("config: invalid output destination %s:%d", dest.Host, dest.Port)
		}
	}
	return nil
}
