// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package codec builds and parses Modbus PDUs for every supported function
// code, for both the master and the slave side of a transaction.
//
// A PDU here is the function code followed by its data. Build functions
// always return the minimal encoded PDU. Parse functions require an exact
// length match with the function's declared shape.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFormat reports a PDU whose length or layout does not match the
	// shape expected for its function code.
	ErrFormat = errors.New("modbus: format violation")
	// ErrRange reports an input outside the domain representable on the wire.
	ErrRange = errors.New("modbus: value out of range")
)

const maxAddress = 0xFFFF

// Request is one of the request variants defined in this package.
type Request interface {
	FunctionCode() byte
	Encode() ([]byte, error)
	isRequest()
}

// Response is one of the response variants defined in this package.
type Response interface {
	FunctionCode() byte
	Encode() ([]byte, error)
	isResponse()
}

// request and response are embedded to seal the variant sets.
type request struct{}

func (request) isRequest() {}

type response struct{}

func (response) isResponse() {}

// message is embedded by variants whose request and response share a layout.
type message struct{}

func (message) isRequest()  {}
func (message) isResponse() {}

func formatErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func rangeErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRange, fmt.Sprintf(format, args...))
}

// expect checks the leading function code and the exact PDU length.
func expect(pdu []byte, functionCode byte, length int) error {
	if err := expectFunction(pdu, functionCode); err != nil {
		return err
	}
	if len(pdu) != length {
		return formatErrorf("function 0x%02X: pdu length %d, expected %d", functionCode, len(pdu), length)
	}
	return nil
}

func expectFunction(pdu []byte, functionCode byte) error {
	if len(pdu) == 0 {
		return formatErrorf("function 0x%02X: empty pdu", functionCode)
	}
	if pdu[0] != functionCode {
		return formatErrorf("function code 0x%02X does not match expected 0x%02X", pdu[0], functionCode)
	}
	return nil
}

func checkAddress(address int) error {
	if address < 0 || address > maxAddress {
		return rangeErrorf("address %d out of range [0, %d]", address, maxAddress)
	}
	return nil
}

func checkQuantity(quantity, max int) error {
	if quantity < 1 || quantity > max {
		return rangeErrorf("quantity %d out of range [1, %d]", quantity, max)
	}
	return nil
}

func checkValue(value int) error {
	if value < 0 || value > 0xFFFF {
		return rangeErrorf("register value %d out of range [0, 65535]", value)
	}
	return nil
}

func u16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func putU16(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}
