// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ffutop/modbus-emulator/internal/config"
	"github.com/ffutop/modbus-emulator/modbus"
	"github.com/ffutop/modbus-emulator/transport"
	"github.com/ffutop/modbus-emulator/transport/rtu"
	"github.com/ffutop/modbus-emulator/transport/rtuovertcp"
	"github.com/ffutop/modbus-emulator/transport/tcp"
)

// dial builds the downstream named by target.
func dial(target string, timeout time.Duration) (transport.Downstream, error) {
	kind, rest, ok := strings.Cut(target, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("malformed target %q", target)
	}
	switch kind {
	case "tcp":
		c := tcp.NewClient(rest)
		c.Timeout = timeout
		return c, nil
	case "rtu-over-tcp":
		c := rtuovertcp.NewClient(rest)
		c.Timeout = timeout
		return c, nil
	case "rtu":
		cfg, err := parseSerial(rest)
		if err != nil {
			return nil, err
		}
		cfg.Timeout = timeout
		return rtu.NewClient(cfg), nil
	}
	return nil, fmt.Errorf("unknown target type %q (expect tcp, rtu-over-tcp or rtu)", kind)
}

// parseSerial parses device[:baud[:parity[:stop]]].
func parseSerial(access string) (config.SerialConfig, error) {
	parts := strings.Split(access, ":")
	cfg := config.SerialConfig{
		Device:   parts[0],
		BaudRate: 19200,
		DataBits: 8,
		Parity:   "E",
		StopBits: 1,
	}
	if cfg.Device == "" || len(parts) > 4 {
		return cfg, fmt.Errorf("expect rtu:device[:baud[:parity[:stop]]] - not: %v", access)
	}
	if len(parts) > 1 {
		baud, err := strconv.Atoi(parts[1])
		if err != nil || baud <= 0 {
			return cfg, fmt.Errorf("illegal baud %v", parts[1])
		}
		cfg.BaudRate = baud
	}
	if len(parts) > 2 {
		parity := strings.ToUpper(parts[2])
		if parity != "N" && parity != "E" && parity != "O" {
			return cfg, fmt.Errorf("illegal parity %v", parts[2])
		}
		cfg.Parity = parity
	}
	if len(parts) > 3 {
		switch parts[3] {
		case "1":
			cfg.StopBits = 1
		case "2":
			cfg.StopBits = 2
		default:
			return cfg, fmt.Errorf("illegal stop bits %v", parts[3])
		}
	}
	return cfg, nil
}

// request sends pdu to the configured unit and returns the raw response
// PDU. Exception responses are returned as errors. A broadcast returns nil.
func request(pdu []byte) ([]byte, error) {
	if cli.Unit < 0 || cli.Unit > modbus.MaxUnitAddress {
		return nil, fmt.Errorf("unit %d out of range [0, %d]", cli.Unit, modbus.MaxUnitAddress)
	}
	req, err := modbus.FromBytes(pdu)
	if err != nil {
		return nil, err
	}
	ds, err := dial(cli.Target, cli.Timeout)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout+time.Second)
	defer cancel()
	if err := ds.Connect(ctx); err != nil {
		return nil, err
	}

	if cli.Verbose {
		fmt.Fprintf(out, "> %s\n", hex.EncodeToString(pdu))
	}
	resp, err := ds.Send(ctx, byte(cli.Unit), req)
	if err != nil {
		return nil, err
	}
	if cli.Unit == modbus.BroadcastAddress {
		return nil, nil
	}
	if cli.Verbose {
		fmt.Fprintf(out, "< %s\n", hex.EncodeToString(resp.Bytes()))
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

// query is request for functions that always expect a reply.
func query(pdu []byte) ([]byte, error) {
	if cli.Unit == modbus.BroadcastAddress {
		return nil, fmt.Errorf("function 0x%02X cannot be broadcast", pdu[0])
	}
	return request(pdu)
}
