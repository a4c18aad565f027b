// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ffutop/modbus-emulator/modbus/codec"
)

type WriteRegisterCommand struct {
	Args struct {
		Address int      `positional-arg-name:"address" required:"yes"`
		Values  []string `positional-arg-name:"value" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *WriteRegisterCommand) Execute(args []string) error {
	values := make([]int, 0, len(c.Args.Values))
	for _, s := range c.Args.Values {
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return fmt.Errorf("illegal register value %v", s)
		}
		values = append(values, int(v))
	}

	var pdu []byte
	var err error
	if len(values) == 1 {
		pdu, err = codec.BuildWriteSingleRegisterRequest(c.Args.Address, values[0])
	} else {
		pdu, err = codec.BuildWriteMultipleRegistersRequest(c.Args.Address, values)
	}
	if err != nil {
		return err
	}
	resp, err := request(pdu)
	if err != nil || resp == nil {
		return err
	}
	if len(values) == 1 {
		_, err = codec.ParseWriteSingleRegisterResponse(resp)
	} else {
		_, err = codec.ParseWriteMultipleRegistersResponse(resp)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d register(s) at %d\n", len(values), c.Args.Address)
	return nil
}

type WriteCoilCommand struct {
	Args struct {
		Address int      `positional-arg-name:"address" required:"yes"`
		Values  []string `positional-arg-name:"on|off" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func parseBit(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "t", "true", "on":
		return true, nil
	case "0", "f", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("illegal bit value %v", s)
}

func (c *WriteCoilCommand) Execute(args []string) error {
	values := make([]bool, 0, len(c.Args.Values))
	for _, s := range c.Args.Values {
		v, err := parseBit(s)
		if err != nil {
			return err
		}
		values = append(values, v)
	}

	var pdu []byte
	var err error
	if len(values) == 1 {
		pdu, err = codec.BuildWriteSingleCoilRequest(c.Args.Address, values[0])
	} else {
		pdu, err = codec.BuildWriteMultipleCoilsRequest(c.Args.Address, values)
	}
	if err != nil {
		return err
	}
	resp, err := request(pdu)
	if err != nil || resp == nil {
		return err
	}
	if len(values) == 1 {
		_, err = codec.ParseWriteSingleCoilResponse(resp)
	} else {
		_, err = codec.ParseWriteMultipleCoilsResponse(resp)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d coil(s) at %d\n", len(values), c.Args.Address)
	return nil
}
