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

type rangeArgs struct {
	Ranges []string `positional-arg-name:"address[:count]" required:"1"`
}

type addressedRange struct {
	address int
	count   int
}

func addressRanges(refs []string) ([]addressedRange, error) {
	ret := []addressedRange{}
	for _, ref := range refs {
		parts := strings.Split(ref, ":")
		if len(parts) > 2 {
			return nil, fmt.Errorf("illegal range %v", ref)
		}
		add, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, err
		}
		cnt := 1
		if len(parts) > 1 {
			cnt, err = strconv.Atoi(parts[1])
			if err != nil {
				return nil, err
			}
		}
		ret = append(ret, addressedRange{add, cnt})
	}
	return ret, nil
}

// readRanges runs read for every range in refs.
func readRanges(refs []string, read func(rng addressedRange) error) error {
	ranges, err := addressRanges(refs)
	if err != nil {
		return err
	}
	for _, rng := range ranges {
		if err := read(rng); err != nil {
			return err
		}
	}
	return nil
}

type HoldingCommand struct {
	Args rangeArgs `positional-args:"yes" required:"yes"`
}

func (c *HoldingCommand) Execute(args []string) error {
	return readRanges(c.Args.Ranges, func(rng addressedRange) error {
		pdu, err := codec.BuildReadHoldingRegistersRequest(rng.address, rng.count)
		if err != nil {
			return err
		}
		resp, err := query(pdu)
		if err != nil {
			return err
		}
		values, err := codec.ParseReadHoldingRegistersResponse(resp)
		if err != nil {
			return err
		}
		printRegisters("holding", rng.address, values)
		return nil
	})
}

type InputCommand struct {
	Args rangeArgs `positional-args:"yes" required:"yes"`
}

func (c *InputCommand) Execute(args []string) error {
	return readRanges(c.Args.Ranges, func(rng addressedRange) error {
		pdu, err := codec.BuildReadInputRegistersRequest(rng.address, rng.count)
		if err != nil {
			return err
		}
		resp, err := query(pdu)
		if err != nil {
			return err
		}
		values, err := codec.ParseReadInputRegistersResponse(resp)
		if err != nil {
			return err
		}
		printRegisters("input", rng.address, values)
		return nil
	})
}

type CoilCommand struct {
	Args rangeArgs `positional-args:"yes" required:"yes"`
}

func (c *CoilCommand) Execute(args []string) error {
	return readRanges(c.Args.Ranges, func(rng addressedRange) error {
		pdu, err := codec.BuildReadCoilsRequest(rng.address, rng.count)
		if err != nil {
			return err
		}
		resp, err := query(pdu)
		if err != nil {
			return err
		}
		values, err := codec.ParseReadCoilsResponse(resp, rng.count)
		if err != nil {
			return err
		}
		printBits("coil", rng.address, values)
		return nil
	})
}

type DiscreteCommand struct {
	Args rangeArgs `positional-args:"yes" required:"yes"`
}

func (c *DiscreteCommand) Execute(args []string) error {
	return readRanges(c.Args.Ranges, func(rng addressedRange) error {
		pdu, err := codec.BuildReadDiscreteInputsRequest(rng.address, rng.count)
		if err != nil {
			return err
		}
		resp, err := query(pdu)
		if err != nil {
			return err
		}
		values, err := codec.ParseReadDiscreteInputsResponse(resp, rng.count)
		if err != nil {
			return err
		}
		printBits("discrete", rng.address, values)
		return nil
	})
}

func printRegisters(name string, address int, values []uint16) {
	for i, v := range values {
		fmt.Fprintf(out, "%s[%d] = %d (0x%04X)\n", name, address+i, v, v)
	}
}

func printBits(name string, address int, values []bool) {
	for i, v := range values {
		b := 0
		if v {
			b = 1
		}
		fmt.Fprintf(out, "%s[%d] = %d\n", name, address+i, b)
	}
}
