package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dronetag/rider-connect-demo/pkg/dri"
	"github.com/dronetag/rider-connect-demo/pkg/receiver"
	"github.com/dronetag/rider-connect-demo/pkg/receiver/config"
	"github.com/dronetag/rider-connect-demo/pkg/receiver/device"
	"github.com/dronetag/rider-connect-demo/pkg/receiver/device/file"
	"github.com/dronetag/rider-connect-demo/pkg/receiver/device/serial"
	"github.com/dronetag/rider-connect-demo/pkg/receiver/output"
	"github.com/dronetag/rider-connect-demo/pkg/util"
	"github.com/dronetag/rider-connect-demo/pkg/viz"
)

var (
	cfgFile string
	opts    = config.Default()

	rootCmd = &cobra.Command{
		Use:   "riderconnect",
		Short: "Read Remote ID broadcasts from a receiver on a serial port.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.StringVarP(&opts.Port, "port", "p", "", "serial port of the receiver")
	flags.IntVarP(&opts.BaudRate, "baudrate", "b", config.DefaultBaudRate, "serial baud rate")
	flags.StringVar(&opts.Init, "init", config.DefaultInit, "hex bytes sent framed to the receiver on start")
	flags.StringVar(&opts.Decoder, "decoder", opts.Decoder, "record decoder: odid or raw")
	flags.StringVar(&opts.PlaybackLocation, "playback", "", "replay a capture instead of opening the port")
	flags.StringVar(&opts.RecordLocation, "record", "", "capture the raw stream to this file")
	flags.IntVar(&opts.VizServer.Port, "viz-port", 0, "serve RSSI plots and stats on this port")
	flags.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level")
}

// loadConfig reads the config file, if any, under the flags set on the
// command line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if cfgFile == "" {
		return opts, nil
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return c, err
	}

	flags := cmd.Flags()
	override := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	override("port", func() { c.Port = opts.Port })
	override("baudrate", func() { c.BaudRate = opts.BaudRate })
	override("init", func() { c.Init = opts.Init })
	override("decoder", func() { c.Decoder = opts.Decoder })
	override("playback", func() { c.PlaybackLocation = opts.PlaybackLocation })
	override("record", func() { c.RecordLocation = opts.RecordLocation })
	override("viz-port", func() { c.VizServer.Port = opts.VizServer.Port })
	override("log-level", func() { c.LogLevel = opts.LogLevel })
	return c, nil
}

// initFrame returns the init bytes, or nil when they are not valid hex. The
// receiver then runs without being initialised.
func initFrame(c config.Config) []byte {
	b, err := c.InitBytes()
	if err != nil {
		log.Warn().Err(err).Msg("not sending init")
		return nil
	}
	return b
}

func newDevice(c config.Config) (device.Device, error) {
	var dev device.Device
	var err error

	switch c.Device {
	case config.DeviceFile:
		log.Info().Str("device", "file").Str("location", c.PlaybackLocation).Msg("initializing device...")
		dev, err = file.NewFileDevice(c.PlaybackLocation, c.PlaybackChunkSize, c.PlaybackDelay)
	default:
		log.Info().Str("device", "serial").Str("port", c.Port).Int("baudrate", c.BaudRate).Msg("initializing device...")
		dev, err = serial.NewSerialDevice(c.Port, c.BaudRate)
	}
	if err != nil {
		return nil, err
	}

	if c.RecordLocation != "" {
		return device.NewRecordingDevice(dev, c.RecordLocation)
	}
	return dev, nil
}

func newOutputs(c config.Config, writeAPI api.WriteAPI) ([]receiver.RecordOutput, error) {
	outputs := []receiver.RecordOutput{output.NewJSONOutput(os.Stdout, nil)}

	if len(c.OutputDestinations) > 0 {
		outputs = append(outputs, output.NewRecordUDPOutput(c.OutputDestinations, writeAPI, log.Logger))
	}
	if c.WebSocket.Port > 0 {
		outputs = append(outputs, output.NewWebSocketOutput(c.WebSocket.Port, c.WebSocket.Path, writeAPI, log.Logger))
	}
	if c.NATS.URL != "" {
		natsOutput, err := output.NewNATSOutput(c.NATS.URL, c.NATS.SubjectPrefix, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		outputs = append(outputs, natsOutput)
	}
	return outputs, nil
}

func run(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if c.PlaybackLocation != "" {
		c.Device = config.DeviceFile
	}
	if err := c.Validate(); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.Logger = log.Logger.Level(level)

	decoder, err := dri.NewDecoder(c.Decoder)
	if err != nil {
		return err
	}
	initBytes := initFrame(c)

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if c.InfluxDB.Host != "" {
		client := influxdb2.NewClient(c.InfluxDB.Host, c.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(c.InfluxDB.Organization, c.InfluxDB.Bucket)
	}

	dev, err := newDevice(c)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize device")
	}

	outputs, err := newOutputs(c, writeAPI)
	if err != nil {
		return err
	}

	receiverOpts := []receiver.ReceiverOption{
		receiver.WithInfluxDB(writeAPI),
		receiver.WithLogger(log.Logger),
	}
	if c.VizServer.Port > 0 {
		receiverOpts = append(receiverOpts, receiver.WithImageServer(viz.NewServer(c.VizServer.Port, c.VizServer.UpdateInterval)))
	}

	rcv, err := receiver.NewReceiver(dev, receiver.Options{
		Init:         initBytes,
		Decoder:      decoder,
		DriAddress:   c.DriAddress,
		LogAddresses: c.LogAddresses,
		Outputs:      outputs,
	}, receiverOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receiver")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
			log.Info().Msg("interrupted")
		case <-ctx.Done():
		}

		return rcv.Stop()
	})

	eg.Go(func() error {
		return rcv.Start(ctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
	return nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
