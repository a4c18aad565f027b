// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ffutop/modbus-emulator/internal/config"
	rtupacket "github.com/ffutop/modbus-emulator/modbus/rtu"
	"github.com/ffutop/modbus-emulator/transport"
)

// Server implements a Modbus RTU Server (Upstream).
// It acts as a Slave on the serial bus, waiting for requests from an external Master.
type Server struct {
	Config config.SerialConfig

	open openFunc

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
		open:   openSerial,
	}
}

// Start opens the serial port and serves requests until ctx is cancelled.
func (s *Server) Start(ctx context.Context, handler transport.FrameHandler) error {
	spConfig := newSerialConfig(s.Config)
	port, err := s.open(&spConfig)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	defer s.Close()
	slog.Info("RTU Server listening", "device", s.Config.Device)

	// handle close
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return s.serve(ctx, port, handler)
}

// serve reads request frames from port until it fails. Read timeouts and
// malformed frames are skipped; the next read resynchronizes on the
// following frame.
func (s *Server) serve(ctx context.Context, port io.ReadWriter, handler transport.FrameHandler) error {
	buf := make([]byte, rtupacket.MaxSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := rtupacket.ReadRequest(port, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var invalid *rtupacket.InvalidLengthError
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, os.ErrClosed):
				return err
			case errors.As(err, &invalid):
				slog.Debug("Dropping oversized RTU frame", "device", s.Config.Device, "err", err)
			}
			continue
		}

		slog.Debug("recv from modbus master", "request", hex.EncodeToString(frame))
		resp := handler.HandleRequest(frame)
		if resp == nil {
			continue
		}
		slog.Debug("send to modbus master", "response", hex.EncodeToString(resp))
		if _, err := port.Write(resp); err != nil {
			slog.Error("Failed to write response", "device", s.Config.Device, "err", err)
		}
	}
}

// Close closes the serial port.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
