// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ffutop/modbus-emulator/modbus"
	rtupacket "github.com/ffutop/modbus-emulator/modbus/rtu"
)

const (
	headerSize = 7
	tcpMinSize = 8
	tcpMaxSize = 260
)

// ApplicationDataUnit is a Modbus TCP frame: MBAP header and PDU.
type ApplicationDataUnit struct {
	TransactionID uint16
	ProtocolID    uint16
	Length        uint16
	SlaveID       byte
	Pdu           modbus.ProtocolDataUnit
}

func Decode(raw []byte) (adu *ApplicationDataUnit, err error) {
	if len(raw) < tcpMinSize {
		err = fmt.Errorf("modbus: request length '%v' does not meet minimum '%v'", len(raw), tcpMinSize)
		return
	}
	adu = &ApplicationDataUnit{}
	adu.TransactionID = binary.BigEndian.Uint16(raw[0:])
	adu.ProtocolID = binary.BigEndian.Uint16(raw[2:])
	adu.Length = binary.BigEndian.Uint16(raw[4:])
	if int(adu.Length) != len(raw)-6 {
		err = fmt.Errorf("modbus: length in header '%v' does not match pdu data length '%v'", adu.Length, len(raw)-6)
		return nil, err
	}
	adu.SlaveID = raw[6]
	adu.Pdu.FunctionCode = raw[7]
	adu.Pdu.Data = raw[8:]
	return
}

// Encode encodes the ADU; Length is derived from the PDU.
func (adu *ApplicationDataUnit) Encode() (raw []byte, err error) {
	length := len(adu.Pdu.Data) + 8
	if length > tcpMaxSize {
		err = fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, tcpMaxSize)
		return
	}
	raw = make([]byte, length)

	binary.BigEndian.PutUint16(raw[0:], adu.TransactionID)
	binary.BigEndian.PutUint16(raw[2:], adu.ProtocolID)
	binary.BigEndian.PutUint16(raw[4:], uint16(2+len(adu.Pdu.Data)))
	raw[6] = adu.SlaveID
	raw[7] = adu.Pdu.FunctionCode
	copy(raw[8:], adu.Pdu.Data)

	return
}

func (req *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) (err error) {
	// Transaction ID must match
	if resp.TransactionID != req.TransactionID {
		err = fmt.Errorf("modbus: response transaction id '%v' does not match request '%v'", resp.TransactionID, req.TransactionID)
		return
	}
	if resp.ProtocolID != req.ProtocolID {
		err = fmt.Errorf("modbus: response protocol id '%v' does not match request '%v'", resp.ProtocolID, req.ProtocolID)
		return
	}
	if resp.SlaveID != req.SlaveID {
		err = fmt.Errorf("modbus: response unit id '%v' does not match request '%v'", resp.SlaveID, req.SlaveID)
		return
	}
	return
}

// ReadADU reads one MBAP frame from r.
func ReadADU(r io.Reader) ([]byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(header[4:]))
	if length < 2 || headerSize-1+length > tcpMaxSize {
		return nil, fmt.Errorf("modbus: length in header '%v' out of range", length)
	}
	raw := make([]byte, 6+length)
	copy(raw, header)
	if _, err := io.ReadFull(r, raw[headerSize:]); err != nil {
		return nil, err
	}
	return raw, nil
}

// ToRTU converts the ADU into an RTU frame with CRC.
func (adu *ApplicationDataUnit) ToRTU() ([]byte, error) {
	rtu := &rtupacket.ApplicationDataUnit{SlaveID: adu.SlaveID, Pdu: adu.Pdu}
	return rtu.Encode()
}

// FromRTU builds the reply to adu from an RTU response frame.
func (adu *ApplicationDataUnit) FromRTU(frame []byte) (*ApplicationDataUnit, error) {
	rtu, err := rtupacket.Decode(frame)
	if err != nil {
		return nil, err
	}
	return &ApplicationDataUnit{
		TransactionID: adu.TransactionID,
		ProtocolID:    adu.ProtocolID,
		SlaveID:       adu.SlaveID,
		Pdu:           rtu.Pdu,
	}, nil
}
