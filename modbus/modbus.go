// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the protocol constants, the PDU type and the
// exception taxonomy shared by the codec, the RTU framer and the emulator.
package modbus

import "fmt"

// Function Codes
const (
	FuncCodeReadCoils              = 0x01
	FuncCodeReadDiscreteInputs     = 0x02
	FuncCodeReadHoldingRegisters   = 0x03
	FuncCodeReadInputRegisters     = 0x04
	FuncCodeWriteSingleCoil        = 0x05
	FuncCodeWriteSingleRegister    = 0x06
	FuncCodeWriteMultipleCoils     = 0x0F
	FuncCodeWriteMultipleRegisters = 0x10

	FuncCodeMaskWriteRegister          = 0x16
	FuncCodeReadWriteMultipleRegisters = 0x17
	FuncCodeReadFIFOQueue              = 0x18

	// Encapsulated Interface Transport; Read Device Identification is MEI 0x0E.
	FuncCodeReadDeviceIdentification = 0x2B
	MEIReadDeviceIdentification      = 0x0E
)

// Vendor (SGM130) function codes, allocated in the user-defined range.
const (
	FuncCodeReadDeviceComment  = 0x41
	FuncCodeWriteDeviceComment = 0x42
	FuncCodeOpenFile           = 0x43
	FuncCodeReadFileLength     = 0x44
	FuncCodeCloseFile          = 0x45
	FuncCodeRestartController  = 0x46
	FuncCodeGetControllerTime  = 0x47
	FuncCodeSetControllerTime  = 0x48
)

// ExceptionFlag is set in the function code of an exception response.
const ExceptionFlag = 0x80

// BroadcastAddress is accepted by every slave on the bus.
const BroadcastAddress = 0

// MaxUnitAddress is the highest assignable slave address.
const MaxUnitAddress = 247

// Quantity limits per request.
const (
	MaxReadBits       = 2000
	MaxReadRegisters  = 125
	MaxWriteBits      = 1968
	MaxWriteRegisters = 123
)

// ExceptionCode is a Modbus exception code carried in an exception response.
type ExceptionCode byte

const (
	ExceptionCodeIllegalFunction                    ExceptionCode = 0x01
	ExceptionCodeIllegalDataAddress                 ExceptionCode = 0x02
	ExceptionCodeIllegalDataValue                   ExceptionCode = 0x03
	ExceptionCodeServerDeviceFailure                ExceptionCode = 0x04
	ExceptionCodeAcknowledge                        ExceptionCode = 0x05
	ExceptionCodeServerDeviceBusy                   ExceptionCode = 0x06
	ExceptionCodeMemoryParityError                  ExceptionCode = 0x08
	ExceptionCodeGatewayPathUnavailable             ExceptionCode = 0x0A
	ExceptionCodeGatewayTargetDeviceFailedToRespond ExceptionCode = 0x0B
)

var exceptionMessages = map[ExceptionCode]string{
	ExceptionCodeIllegalFunction:                    "illegal function",
	ExceptionCodeIllegalDataAddress:                 "illegal data address",
	ExceptionCodeIllegalDataValue:                   "illegal data value",
	ExceptionCodeServerDeviceFailure:                "slave device failure",
	ExceptionCodeAcknowledge:                        "acknowledge",
	ExceptionCodeServerDeviceBusy:                   "slave device busy",
	ExceptionCodeMemoryParityError:                  "memory parity error",
	ExceptionCodeGatewayPathUnavailable:             "gateway path unavailable",
	ExceptionCodeGatewayTargetDeviceFailedToRespond: "gateway target device failed to respond",
}

// Valid reports whether c is one of the standard exception codes.
func (c ExceptionCode) Valid() bool {
	_, ok := exceptionMessages[c]
	return ok
}

func (c ExceptionCode) String() string {
	if msg, ok := exceptionMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("unknown exception 0x%02X", byte(c))
}

// Exception is a protocol exception raised while serving a request. It is
// always converted into an exception response, never into a transport error.
type Exception struct {
	FunctionCode byte
	Code         ExceptionCode
}

// NewException returns an exception for the given function code.
func NewException(functionCode byte, code ExceptionCode) *Exception {
	return &Exception{FunctionCode: functionCode &^ ExceptionFlag, Code: code}
}

func (e *Exception) Error() string {
	return fmt.Sprintf("modbus: exception '%d' (%s), function '%d'", e.Code, e.Code, e.FunctionCode)
}

// PDU returns the exception response PDU.
func (e *Exception) PDU() ProtocolDataUnit {
	return ProtocolDataUnit{
		FunctionCode: e.FunctionCode | ExceptionFlag,
		Data:         []byte{byte(e.Code)},
	}
}

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// Bytes returns the PDU as function code followed by data.
func (pdu ProtocolDataUnit) Bytes() []byte {
	raw := make([]byte, 1+len(pdu.Data))
	raw[0] = pdu.FunctionCode
	copy(raw[1:], pdu.Data)
	return raw
}

// IsException reports whether the PDU is an exception response.
func (pdu ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&ExceptionFlag != 0
}

// Err converts an exception response PDU into an *Exception. It returns nil
// for regular responses.
func (pdu ProtocolDataUnit) Err() error {
	if !pdu.IsException() {
		return nil
	}
	code := ExceptionCodeServerDeviceFailure
	if len(pdu.Data) > 0 {
		code = ExceptionCode(pdu.Data[0])
	}
	return NewException(pdu.FunctionCode, code)
}

// FromBytes splits a raw PDU into function code and data.
func FromBytes(raw []byte) (ProtocolDataUnit, error) {
	if len(raw) == 0 {
		return ProtocolDataUnit{}, fmt.Errorf("modbus: empty pdu")
	}
	return ProtocolDataUnit{FunctionCode: raw[0], Data: raw[1:]}, nil
}
