package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 115200, c.BaudRate)
	assert.Equal(t, "2A0A0A", c.Init)
	assert.Equal(t, uint8(0x2A), c.DriAddress)
	assert.Equal(t, "/ws", c.WebSocket.Path)

	initBytes, err := c.InitBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2A, 0x0A, 0x0A}, initBytes)

	assert.ErrorIs(t, c.Validate(), ErrNoPort)
	c.Port = "/dev/ttyACM0"
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: /dev/ttyUSB1
baudrate: 921600
decoder: raw
log_addresses: [0x10, 0x11]
output_destinations:
  - host: localhost
    port: 9000
viz_server:
  port: 8080
  update_interval: 2s
influxdb:
  host: http://localhost:8086
  bucket: receiver
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", c.Port)
	assert.Equal(t, 921600, c.BaudRate)
	assert.Equal(t, "2A0A0A", c.Init)
	assert.Equal(t, "raw", c.Decoder)
	assert.Equal(t, []uint8{0x10, 0x11}, c.LogAddresses)
	assert.Equal(t, []OutputDestination{{Host: "localhost", Port: 9000}}, c.OutputDestinations)
	assert.Equal(t, 8080, c.VizServer.Port)
	assert.Equal(t, 2*time.Second, c.VizServer.UpdateInterval)
	assert.Equal(t, "receiver", c.InfluxDB.Bucket)
	assert.NoError(t, c.Validate())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		apply func(c *Config)
		ok    bool
	}{
		{"serial", func(c *Config) { c.Port = "COM3" }, true},
		{"empty init", func(c *Config) { c.Port = "COM3"; c.Init = "" }, true},
		{"bad init", func(c *Config) { c.Port = "COM3"; c.Init = "2A0" }, true},
		{"bad baud", func(c *Config) { c.Port = "COM3"; c.BaudRate = 0 }, false},
		{"file", func(c *Config) { c.Device = DeviceFile; c.PlaybackLocation = "capture.bin" }, true},
		{"file unpaced", func(c *Config) {
			c.Device = DeviceFile
			c.PlaybackLocation = "capture.bin"
			c.PlaybackDelay = 0
		}, true},
		{"file negative delay", func(c *Config) {
			c.Device = DeviceFile
			c.PlaybackLocation = "capture.bin"
			c.PlaybackDelay = -time.Millisecond
		}, false},
		{"file without location", func(c *Config) { c.Device = DeviceFile }, false},
		{"playback on serial", func(c *Config) { c.Port = "COM3"; c.PlaybackLocation = "capture.bin" }, false},
		{"nats", func(c *Config) { c.Port = "COM3"; c.NATS.URL = "nats://localhost:4222" }, true},
		{"nats without prefix", func(c *Config) {
			c.Port = "COM3"
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.SubjectPrefix = ""
		}, false},
		{"unknown device", func(c *Config) { c.Device = "usb" }, false},
		{"bad destination", func(c *Config) {
			c.Port = "COM3"
			c.OutputDestinations = []OutputDestination{{Host: "localhost"}}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.apply(&c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestInitBytesMalformed(t *testing.T) {
	c := Default()
	c.Init = "ZZ"
	_, err := c.InitBytes()
	assert.Error(t, err)
}
