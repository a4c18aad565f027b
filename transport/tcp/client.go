// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/ffutop/modbus-emulator/modbus"
	"github.com/ffutop/modbus-emulator/transport"
)

const (
	tcpTimeout = 10 * time.Second
)

// Client implements Downstream interface (Modbus TCP Client). It dials a
// new connection per request.
type Client struct {
	Address string
	Timeout time.Duration

	transactionID uint32 // Atomic counter
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string) *Client {
	return &Client{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Send sends a PDU to a Slave (Downstream) and returns the response PDU.
// Broadcast requests are not answered.
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	adu := &ApplicationDataUnit{
		TransactionID: uint16(atomic.AddUint32(&mb.transactionID, 1)),
		SlaveID:       slaveID,
		Pdu:           pdu,
	}
	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	d := net.Dialer{Timeout: mb.Timeout}
	conn, err := d.DialContext(ctx, "tcp", mb.Address)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("modbus: failed to connect to %s: %w", mb.Address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(mb.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	slog.Debug("send to modbus tcp slave", "request", hex.EncodeToString(aduBytes))
	if _, err := conn.Write(aduBytes); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	if slaveID == modbus.BroadcastAddress {
		return modbus.ProtocolDataUnit{}, nil
	}
	respBytes, err := ReadADU(conn)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	slog.Debug("recv from modbus tcp slave", "response", hex.EncodeToString(respBytes))

	respAdu, err := Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}
	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}
	if err := transport.CheckResponse(pdu, respAdu.Pdu); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	return respAdu.Pdu, nil
}

// Connect checks that the address resolves.
func (mb *Client) Connect(ctx context.Context) error {
	_, err := net.ResolveTCPAddr("tcp", mb.Address)
	return err
}

// Close is a no-op; connections do not outlive a request.
func (mb *Client) Close() error {
	return nil
}
