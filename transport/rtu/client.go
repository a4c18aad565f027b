// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/modbus-emulator/internal/config"
	"github.com/ffutop/modbus-emulator/modbus"
	rtupacket "github.com/ffutop/modbus-emulator/modbus/rtu"
	"github.com/ffutop/modbus-emulator/transport"
)

// Client is a serial RTU master. It opens the port on first use and closes
// it again after serialIdleTimeout without traffic.
type Client struct {
	serialPort
}

var _ transport.Downstream = (*Client)(nil)

// NewClient returns a master for the port described by cfg.
func NewClient(cfg config.SerialConfig) *Client {
	c := &Client{}
	c.Config = newSerialConfig(cfg)
	c.IdleTimeout = serialIdleTimeout
	return c
}

// Send writes pdu to unit and returns the reply PDU. An exception reply is
// returned without error; its Err method yields the *modbus.Exception.
// Broadcasts return an empty PDU as soon as the frame is written.
func (c *Client) Send(ctx context.Context, unit byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	req := &rtupacket.ApplicationDataUnit{SlaveID: unit, Pdu: pdu}
	frame, err := req.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("rtu: encode request: %w", err)
	}

	raw, err := c.exchange(ctx, frame)
	if err != nil || raw == nil {
		return modbus.ProtocolDataUnit{}, err
	}

	resp, err := rtupacket.Decode(raw)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("rtu: decode reply from unit %d: %w", unit, err)
	}
	if err := req.Verify(resp); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	if err := transport.CheckResponse(pdu, resp.Pdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("rtu: unit %d: %w", unit, err)
	}
	return resp.Pdu, nil
}

// exchange writes frame and reads one reply frame. It returns nil for a
// broadcast, which no slave answers.
func (c *Client) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	c.lastActivity = time.Now()
	c.startCloseTimer()

	slog.Debug("rtu request", "device", c.Address, "frame", hex.EncodeToString(frame))
	if _, err := c.port.Write(frame); err != nil {
		return nil, err
	}
	if frame[0] == modbus.BroadcastAddress {
		return nil, nil
	}

	// Give the slave time to turn the line around before polling for bytes.
	expected := rtupacket.CalculateResponseLength(frame)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.turnaround(len(frame) + expected)):
	}

	reply, err := rtupacket.ReadResponse(frame[0], frame[1], c.port, time.Now().Add(c.Timeout))
	if err != nil {
		return nil, err
	}
	slog.Debug("rtu reply", "device", c.Address, "frame", hex.EncodeToString(reply))
	return reply, nil
}

// turnaround is the time chars take on the wire plus one 3.5 character
// frame gap. Above 19200 baud the fixed 750us and 1750us timings apply.
func (c *Client) turnaround(chars int) time.Duration {
	charTime, gap := 750, 1750
	if c.BaudRate > 0 && c.BaudRate <= 19200 {
		charTime = 15000000 / c.BaudRate
		gap = 35000000 / c.BaudRate
	}
	return time.Duration(charTime*chars+gap) * time.Microsecond
}
