// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

import (
	"github.com/ffutop/modbus-emulator/modbus"
)

// DecodeRequest decodes a request PDU into its variant. Unknown function
// codes yield an *modbus.Exception carrying ILLEGAL_FUNCTION; malformed
// PDUs yield ErrFormat or ErrRange.
func DecodeRequest(pdu []byte) (Request, error) {
	if len(pdu) == 0 {
		return nil, formatErrorf("empty pdu")
	}
	fc := pdu[0]
	switch fc {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters:
		return asRequest(parseReadRequest(fc, pdu))
	case modbus.FuncCodeWriteSingleCoil:
		return asRequest(ParseWriteSingleCoilRequest(pdu))
	case modbus.FuncCodeWriteSingleRegister:
		return asRequest(ParseWriteSingleRegisterRequest(pdu))
	case modbus.FuncCodeWriteMultipleCoils:
		return asRequest(ParseWriteMultipleCoilsRequest(pdu))
	case modbus.FuncCodeWriteMultipleRegisters:
		return asRequest(ParseWriteMultipleRegistersRequest(pdu))
	case modbus.FuncCodeReadDeviceIdentification:
		if len(pdu) > 1 && pdu[1] != modbus.MEIReadDeviceIdentification {
			return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalFunction)
		}
		return asRequest(ParseReadDeviceIdentificationRequest(pdu))
	case modbus.FuncCodeReadDeviceComment,
		modbus.FuncCodeCloseFile,
		modbus.FuncCodeRestartController,
		modbus.FuncCodeGetControllerTime:
		if err := expect(pdu, fc, 1); err != nil {
			return nil, err
		}
		return &Bare{Function: fc}, nil
	case modbus.FuncCodeWriteDeviceComment:
		return asRequest(ParseWriteDeviceCommentRequest(pdu))
	case modbus.FuncCodeOpenFile:
		return asRequest(ParseOpenFileRequest(pdu))
	case modbus.FuncCodeReadFileLength:
		return asRequest(ParseReadFileLengthRequest(pdu))
	case modbus.FuncCodeSetControllerTime:
		return asRequest(ParseSetControllerTimeRequest(pdu))
	}
	return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalFunction)
}

// DecodeResponse decodes the response PDU of req. An exception response is
// returned as an *modbus.Exception error.
func DecodeResponse(req Request, pdu []byte) (Response, error) {
	if len(pdu) == 0 {
		return nil, formatErrorf("empty pdu")
	}
	fc := req.FunctionCode()
	if pdu[0] == fc|modbus.ExceptionFlag {
		if len(pdu) != 2 {
			return nil, formatErrorf("exception response of %d bytes, expected 2", len(pdu))
		}
		return nil, modbus.NewException(fc, modbus.ExceptionCode(pdu[1]))
	}
	switch r := req.(type) {
	case *ReadRequest:
		switch fc {
		case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs:
			values, err := parseBitsResponse(fc, pdu, int(r.Quantity))
			if err != nil {
				return nil, err
			}
			return &BitsResponse{Function: fc, Values: values}, nil
		default:
			values, err := parseRegistersResponse(fc, pdu)
			if err != nil {
				return nil, err
			}
			if len(values) != int(r.Quantity) {
				return nil, formatErrorf("function 0x%02X: %d registers, expected %d", fc, len(values), r.Quantity)
			}
			return &RegistersResponse{Function: fc, Values: values}, nil
		}
	case *WriteSingleCoil:
		return asResponse(ParseWriteSingleCoilResponse(pdu))
	case *WriteSingleRegister:
		return asResponse(ParseWriteSingleRegisterResponse(pdu))
	case *WriteCoilsRequest:
		return asResponse(ParseWriteMultipleCoilsResponse(pdu))
	case *WriteRegistersRequest:
		return asResponse(ParseWriteMultipleRegistersResponse(pdu))
	case *DeviceIdentificationRequest:
		return asResponse(ParseReadDeviceIdentificationResponse(pdu))
	case *FileRequest:
		return asResponse(parseFileLength(fc, pdu))
	case *DeviceComment, *ControllerTime:
		// Write comment and set time are acknowledged with the bare code.
		if err := expect(pdu, fc, 1); err != nil {
			return nil, err
		}
		return &Bare{Function: fc}, nil
	case *Bare:
		switch fc {
		case modbus.FuncCodeReadDeviceComment:
			return asResponse(parseDeviceComment(fc, pdu))
		case modbus.FuncCodeGetControllerTime:
			return asResponse(parseControllerTime(fc, pdu))
		}
		if err := expect(pdu, fc, 1); err != nil {
			return nil, err
		}
		return &Bare{Function: fc}, nil
	}
	return nil, formatErrorf("function 0x%02X has no response decoder", fc)
}

// asRequest and asResponse keep a failed parse from leaking a typed nil
// pointer through the interface.
func asRequest[T Request](v T, err error) (Request, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func asResponse[T Response](v T, err error) (Response, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
