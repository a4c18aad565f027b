// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ffutop/modbus-emulator/internal/bus"
	"github.com/ffutop/modbus-emulator/internal/config"
	"github.com/ffutop/modbus-emulator/internal/emulator"
	"github.com/ffutop/modbus-emulator/transport"
	"github.com/ffutop/modbus-emulator/transport/rtu"
	"github.com/ffutop/modbus-emulator/transport/rtuovertcp"
	"github.com/ffutop/modbus-emulator/transport/tcp"
	"github.com/spf13/pflag"
)

func main() {
	pflag.StringP("config", "c", "", "Configuration file path.")
	pflag.StringP("log_level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	pflag.Parse()

	// Load Configuration
	cfg, err := config.LoadConfig("", pflag.CommandLine)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	slog.Info("Starting Modbus Emulator...")

	b, err := newBus(cfg)
	if err != nil {
		slog.Error("Failed to build emulators", "err", err)
		os.Exit(1)
	}
	slog.Info("Emulators ready", "units", b.Units(), "upstreams", len(b.Upstreams))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		slog.Error("Bus stopped with error", "err", err)
	}
	slog.Info("Goodbye.")
}

// newBus creates one emulator per configured unit and attaches them to a
// bus served by every configured upstream.
func newBus(cfg *config.Config) (*bus.Bus, error) {
	var upstreams []transport.Upstream
	for _, usCfg := range cfg.Upstreams {
		us, err := newUpstream(usCfg)
		if err != nil {
			return nil, err
		}
		upstreams = append(upstreams, us)
	}

	b := bus.New("emulator", upstreams)
	for _, d := range cfg.Devices {
		ids, err := d.Units()
		if err != nil {
			b.Close()
			return nil, err
		}
		for _, id := range ids {
			if err := addEmulator(b, d, id); err != nil {
				b.Close()
				return nil, fmt.Errorf("device %s unit %d: %w", d.Name, id, err)
			}
		}
	}
	return b, nil
}

func addEmulator(b *bus.Bus, d config.DeviceConfig, id byte) error {
	e, err := emulator.New(emulator.Options{
		UnitAddress: int(id),
		Lock:        b.Locker(),
		Logger:      slog.Default().With("device", d.Name),
	})
	if err != nil {
		return err
	}

	lock := b.Locker()
	lock.Lock()
	err = d.Apply(e)
	if err == nil {
		e.Connect()
	} else {
		e.Destroy()
	}
	lock.Unlock()
	if err != nil {
		return err
	}
	if err := b.Add(e); err != nil {
		lock.Lock()
		e.Destroy()
		lock.Unlock()
		return err
	}
	return nil
}

func newUpstream(cfg config.UpstreamConfig) (transport.Upstream, error) {
	switch cfg.Type {
	case "tcp":
		return tcp.NewServer(cfg.Tcp.Address), nil
	case "rtu-over-tcp":
		return rtuovertcp.NewServer(cfg.Tcp.Address), nil
	case "rtu":
		return rtu.NewServer(cfg.Serial), nil
	default:
		return nil, fmt.Errorf("unknown upstream type %q", cfg.Type)
	}
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
