// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"

	"github.com/ffutop/modbus-emulator/modbus"
)

// FrameHandler answers complete RTU frames ([unit][fc][data][crc]).
// A nil reply means nothing is sent back.
//
// Servers hand every reassembled frame to the handler, whatever their own
// wire format is, so one handler serves serial, RTU over TCP and MBAP
// clients alike.
type FrameHandler interface {
	HandleRequest(frame []byte) []byte
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(frame []byte) []byte

func (f FrameHandlerFunc) HandleRequest(frame []byte) []byte {
	return f(frame)
}

// Upstream represents a source of requests (A Modbus Master connected to us).
// It acts as a Server.
type Upstream interface {
	// Start serves requests until ctx is cancelled or Close is called.
	Start(ctx context.Context, handler FrameHandler) error
	Close() error
}

// Downstream represents a destination for requests (A Modbus Slave we connect to).
// It acts as a Client.
type Downstream interface {
	// Send sends a PDU to a specific SlaveID and returns the response PDU.
	Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)
	Connect(ctx context.Context) error
	Close() error
}
