// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ffutop/modbus-emulator/modbus"
)

var ErrRequestTimedOut = errors.New("modbus: request timed out")

const (
	stateSlaveID = 1 << iota
	stateFunctionCode
	stateReadLength
	stateReadPayload
	stateObjectHeader
	stateObjectData
	stateCRC
)

type InvalidLengthError struct {
	Length byte
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length received: %d", e.Length)
}

// ShortHeaderError is returned by CalculateRequestLength when more header
// bytes are needed before the frame length is known.
type ShortHeaderError struct {
	FunctionCode byte
	Need         int
	Got          int
}

func (e *ShortHeaderError) Error() string {
	return fmt.Sprintf("need %d bytes to determine length for 0x%02X, got %d", e.Need, e.FunctionCode, e.Got)
}

// CalculateResponseLength returns the expected length of a response ADU,
// or MinSize plus the fixed part when the length depends on the payload.
func CalculateResponseLength(adu []byte) int {
	length := MinSize
	switch adu[1] {
	case modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadCoils:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count/8
		if count%8 != 0 {
			length++
		}
	case modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadWriteMultipleRegisters:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count*2
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleRegisters,
		modbus.FuncCodeOpenFile,
		modbus.FuncCodeReadFileLength:
		length += 4
	case modbus.FuncCodeMaskWriteRegister:
		length += 6
	case modbus.FuncCodeReadDeviceComment:
		length += 1 + 16
	case modbus.FuncCodeGetControllerTime:
		length += 2 + 7
	case modbus.FuncCodeReadFIFOQueue,
		modbus.FuncCodeReadDeviceIdentification:
		// undetermined
	default:
	}
	return length
}

// RequestHeaderSize returns how many leading bytes of a request frame
// CalculateRequestLength needs for funcCode.
func RequestHeaderSize(funcCode byte) int {
	switch funcCode {
	case modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		return 7
	case modbus.FuncCodeOpenFile,
		modbus.FuncCodeReadFileLength:
		return 3
	}
	return 2
}

// CalculateRequestLength returns the expected total length of the Request RTU ADU based on the header.
// Function codes without a known layout are taken to be bare requests so
// the receiver can answer them with ILLEGAL_FUNCTION.
func CalculateRequestLength(funcCode byte, header []byte) (int, error) {
	if need := RequestHeaderSize(funcCode); len(header) < need {
		return 0, &ShortHeaderError{FunctionCode: funcCode, Need: need, Got: len(header)}
	}

	switch funcCode {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		// [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return sizeAddressQuantity, nil
	case modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		// [SlaveID, Func, Addr(2), Quant(2), ByteCount(1), Data(N), CRC(2)]
		byteCount := int(header[6])
		return 7 + byteCount + 2, nil
	case modbus.FuncCodeReadDeviceIdentification:
		// [SlaveID, Func, MEI, ReadCode, ObjectID, CRC(2)]
		return sizeDeviceID, nil
	case modbus.FuncCodeWriteDeviceComment:
		return sizeWriteComment, nil
	case modbus.FuncCodeOpenFile,
		modbus.FuncCodeReadFileLength:
		// [SlaveID, Func, NameLen, Name(N), CRC(2)]
		return 3 + int(header[2]) + 2, nil
	case modbus.FuncCodeSetControllerTime:
		return sizeSetTime, nil
	default:
		return sizeBare, nil
	}
}

// ReadResponse reads an RTU frame incrementally from the reader.
// It uses a state machine to detect the frame based on the expected SlaveID and FunctionCode.
func ReadResponse(slaveID, functionCode byte, r io.Reader, deadline time.Time) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}

	buf := make([]byte, 1)
	data := make([]byte, MaxSize)

	state := stateSlaveID
	var length, toRead byte
	var n, crcCount, objects int

	for {
		if time.Now().After(deadline) {
			return nil, ErrRequestTimedOut
		}

		if _, err := io.ReadAtLeast(r, buf, 1); err != nil {
			return nil, err
		}
		if n >= len(data) {
			return nil, fmt.Errorf("modbus: response exceeds %d bytes", MaxSize)
		}

		switch state {
		case stateSlaveID:
			if buf[0] == slaveID {
				state = stateFunctionCode
				data[n] = buf[0]
				n++
				continue
			}
		case stateFunctionCode:
			if buf[0] == functionCode {
				switch functionCode {
				case modbus.FuncCodeReadDiscreteInputs,
					modbus.FuncCodeReadCoils,
					modbus.FuncCodeReadHoldingRegisters,
					modbus.FuncCodeReadInputRegisters,
					modbus.FuncCodeReadWriteMultipleRegisters,
					modbus.FuncCodeReadFIFOQueue,
					modbus.FuncCodeReadDeviceComment:

					state = stateReadLength
				case modbus.FuncCodeWriteSingleCoil,
					modbus.FuncCodeWriteSingleRegister,
					modbus.FuncCodeWriteMultipleRegisters,
					modbus.FuncCodeWriteMultipleCoils,
					modbus.FuncCodeOpenFile,
					modbus.FuncCodeReadFileLength:

					state = stateReadPayload
					toRead = 4
				case modbus.FuncCodeMaskWriteRegister:
					state = stateReadPayload
					toRead = 6
				case modbus.FuncCodeGetControllerTime:
					state = stateReadPayload
					toRead = 2 + 7
				case modbus.FuncCodeReadDeviceIdentification:
					// MEI, ReadCode, Conformity, MoreFollows, NextObjectID, NumberOfObjects
					state = stateReadPayload
					toRead = 6
					objects = -1
				case modbus.FuncCodeWriteDeviceComment,
					modbus.FuncCodeCloseFile,
					modbus.FuncCodeRestartController,
					modbus.FuncCodeSetControllerTime:

					state = stateCRC
				default:
					return nil, fmt.Errorf("functioncode not handled: %d", functionCode)
				}
				data[n] = buf[0]
				n++
				continue
			} else if buf[0] == functionCode|modbus.ExceptionFlag {
				state = stateReadPayload
				data[n] = buf[0]
				n++
				toRead = 1
				objects = 0
			}
		case stateReadLength:
			length = buf[0]
			if length > MaxSize-5 || length == 0 {
				return nil, &InvalidLengthError{Length: length}
			}
			toRead = length
			data[n] = length
			n++
			state = stateReadPayload
		case stateReadPayload:
			data[n] = buf[0]
			toRead--
			n++
			if toRead == 0 {
				state = stateCRC
				if objects < 0 {
					objects = int(buf[0])
					if objects > 0 {
						state = stateObjectHeader
						toRead = 2
					}
				}
			}
		case stateObjectHeader:
			data[n] = buf[0]
			toRead--
			n++
			if toRead == 0 {
				toRead = buf[0]
				state = stateObjectData
				if toRead == 0 {
					state = nextObject(&objects, &toRead)
				}
			}
		case stateObjectData:
			data[n] = buf[0]
			toRead--
			n++
			if toRead == 0 {
				state = nextObject(&objects, &toRead)
			}
		case stateCRC:
			data[n] = buf[0]
			crcCount++
			n++
			if crcCount == 2 {
				return data[:n], nil
			}
		}
	}
}

// nextObject advances the device identification object loop.
func nextObject(objects *int, toRead *byte) int {
	*objects--
	if *objects == 0 {
		return stateCRC
	}
	*toRead = 2
	return stateObjectHeader
}

// ReadRequest reads one request frame from r into buf, which must hold
// MaxSize bytes. The CRC is not checked.
func ReadRequest(r io.Reader, buf []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, buf[:2]); err != nil {
		return nil, err
	}
	functionCode := buf[1]
	need := RequestHeaderSize(functionCode)
	if _, err := io.ReadFull(r, buf[2:need]); err != nil {
		return nil, err
	}
	length, err := CalculateRequestLength(functionCode, buf[:need])
	if err != nil {
		return nil, err
	}
	if length > len(buf) {
		return nil, &InvalidLengthError{Length: buf[need-1]}
	}
	if _, err := io.ReadFull(r, buf[need:length]); err != nil {
		return nil, err
	}
	return buf[:length], nil
}
