package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hvac-node/bus"
	"hvac-node/services/bridge"
	"hvac-node/services/command"
	"hvac-node/services/config"
	"hvac-node/services/display"
	"hvac-node/services/hal"
	"hvac-node/services/heartbeat"
	"hvac-node/services/homie"
	"hvac-node/services/ir"
	"hvac-node/services/measure"
	"hvac-node/services/node"
	"hvac-node/services/sensor"
	"hvac-node/x/timex"
)

type screen interface {
	measure.Display
	Init(ctx context.Context) error
	Close() error
}

type thermometer interface {
	measure.Sensor
	Init(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("node stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting node",
		"device", cfg.Device.ID,
		"firmware", cfg.Device.FirmwareName,
		"version", cfg.Device.FirmwareVersion)

	var board *hal.Board
	if cfg.Sensor.Type == config.SensorAHT20 || cfg.Display.Type == config.DisplaySSD1306 || cfg.IR.PowerPin != "" {
		brd, err := hal.Open(logger)
		if err != nil {
			return err
		}
		defer brd.Close()
		board = brd
	}

	dev := homie.NewDevice(homie.Config{
		Broker:          cfg.MQTT.Broker,
		ClientID:        cfg.MQTT.ClientID,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		ConnectTimeout:  cfg.MQTT.ConnectTimeout,
		PublishTimeout:  cfg.MQTT.PublishTimeout,
		RetryInterval:   cfg.MQTT.RetryInterval,
		BaseTopic:       cfg.MQTT.BaseTopic,
		DeviceID:        cfg.Device.ID,
		Name:            cfg.Device.Name,
		FirmwareName:    cfg.Device.FirmwareName,
		FirmwareVersion: cfg.Device.FirmwareVersion,
		StatsInterval:   cfg.Stats.Interval,
	}, logger)
	for _, n := range node.Nodes() {
		if err := dev.Advertise(n); err != nil {
			return err
		}
	}

	disp, err := newScreen(cfg.Display, board, logger)
	if err != nil {
		return err
	}
	defer disp.Close()

	sens, err := newSensor(cfg.Sensor, board, logger)
	if err != nil {
		return err
	}

	var power ir.PowerPin
	if cfg.IR.PowerPin != "" {
		p, err := board.Pin(cfg.IR.PowerPin)
		if err != nil {
			return err
		}
		power = p
	}
	blaster, err := ir.NewBridge(dev, cfg.IR.Topic, cfg.IR.Payloads, power, logger)
	if err != nil {
		return err
	}
	defer blaster.Close()

	lay := node.DefaultLayout()
	if err := node.Startup(ctx, logger,
		node.Step{Name: "display", Init: func(ctx context.Context) error {
			if err := disp.Init(ctx); err != nil {
				return err
			}
			return node.ShowInfo(disp, lay, cfg.Device.FirmwareName, cfg.Device.FirmwareVersion)
		}},
		node.Step{Name: "sensor", Init: sens.Init},
		node.Step{Name: "infrared transmitter", Init: blaster.Init},
	); err != nil {
		return err
	}

	var tx command.Transmitter
	if cfg.IR.Enabled() {
		tx = blaster
	}

	b := bus.NewBus(16)
	rt := &node.Runtime{
		Scheduler:  measure.New(measure.Config{Interval: cfg.Measure.Interval, Layout: lay.Reading}, sens, disp, dev, logger),
		Dispatcher: command.NewDispatcher(tx, logger),
		Telemetry:  dev,
		Clock:      timex.NewMono(),
		Conn:       b.NewConnection("node"),
		Tick:       cfg.Measure.Tick,
		Log:        logger.With("component", "node"),
	}
	rt.Listen()
	dev.OnSet(bridge.NewInbound(b.NewConnection("mqtt"), logger).Forward)

	if err := dev.Connect(ctx); err != nil {
		return err
	}
	defer dev.Disconnect()

	hb := &heartbeat.Service{Interval: cfg.Stats.Interval, Pub: dev, Log: logger}
	if err := hb.Start(ctx); err != nil {
		return err
	}

	return rt.Run(ctx)
}

func newScreen(cfg config.DisplayConfig, board *hal.Board, logger *slog.Logger) (screen, error) {
	switch cfg.Type {
	case config.DisplaySSD1306:
		i2c, err := board.I2C(cfg.I2CBus)
		if err != nil {
			return nil, err
		}
		return display.NewScreen(display.SSD1306(i2c, cfg.Width, cfg.Height), cfg.Width, cfg.Height, cfg.Settle, logger), nil
	default:
		return display.NewLog(logger), nil
	}
}

func newSensor(cfg config.SensorConfig, board *hal.Board, logger *slog.Logger) (thermometer, error) {
	switch cfg.Type {
	case config.SensorAHT20:
		i2c, err := board.I2C(cfg.I2CBus)
		if err != nil {
			return nil, err
		}
		return sensor.NewAHT20(i2c, cfg.Address, logger), nil
	case config.SensorDHT22:
		return sensor.NewDHT22(cfg.Pin, logger), nil
	default:
		return sensor.NewSimulated(uint64(time.Now().UnixNano())), nil
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
