// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

import (
	"github.com/ffutop/modbus-emulator/modbus"
)

// ReadRequest reads Quantity bits or registers starting at Address.
// It serves function codes 0x01 to 0x04.
type ReadRequest struct {
	request
	Function byte
	Address  uint16
	Quantity uint16
}

func (r *ReadRequest) FunctionCode() byte { return r.Function }

func (r *ReadRequest) Encode() ([]byte, error) {
	max, err := readLimit(r.Function)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity(int(r.Quantity), max); err != nil {
		return nil, err
	}
	pdu := make([]byte, 5)
	pdu[0] = r.Function
	putU16(pdu[1:], r.Address)
	putU16(pdu[3:], r.Quantity)
	return pdu, nil
}

func readLimit(functionCode byte) (int, error) {
	switch functionCode {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs:
		return modbus.MaxReadBits, nil
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		return modbus.MaxReadRegisters, nil
	}
	return 0, formatErrorf("function 0x%02X is not a read function", functionCode)
}

func buildReadRequest(functionCode byte, address, quantity int) ([]byte, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	max, err := readLimit(functionCode)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity(quantity, max); err != nil {
		return nil, err
	}
	r := &ReadRequest{Function: functionCode, Address: uint16(address), Quantity: uint16(quantity)}
	return r.Encode()
}

func parseReadRequest(functionCode byte, pdu []byte) (*ReadRequest, error) {
	if err := expect(pdu, functionCode, 5); err != nil {
		return nil, err
	}
	r := &ReadRequest{Function: functionCode, Address: u16(pdu[1:]), Quantity: u16(pdu[3:])}
	max, err := readLimit(functionCode)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity(int(r.Quantity), max); err != nil {
		return nil, err
	}
	return r, nil
}

// BuildReadCoilsRequest encodes a Read Coils (0x01) request.
func BuildReadCoilsRequest(address, quantity int) ([]byte, error) {
	return buildReadRequest(modbus.FuncCodeReadCoils, address, quantity)
}

// ParseReadCoilsRequest decodes a Read Coils (0x01) request.
func ParseReadCoilsRequest(pdu []byte) (*ReadRequest, error) {
	return parseReadRequest(modbus.FuncCodeReadCoils, pdu)
}

// BuildReadDiscreteInputsRequest encodes a Read Discrete Inputs (0x02) request.
func BuildReadDiscreteInputsRequest(address, quantity int) ([]byte, error) {
	return buildReadRequest(modbus.FuncCodeReadDiscreteInputs, address, quantity)
}

// ParseReadDiscreteInputsRequest decodes a Read Discrete Inputs (0x02) request.
func ParseReadDiscreteInputsRequest(pdu []byte) (*ReadRequest, error) {
	return parseReadRequest(modbus.FuncCodeReadDiscreteInputs, pdu)
}

// BuildReadHoldingRegistersRequest encodes a Read Holding Registers (0x03) request.
func BuildReadHoldingRegistersRequest(address, quantity int) ([]byte, error) {
	return buildReadRequest(modbus.FuncCodeReadHoldingRegisters, address, quantity)
}

// ParseReadHoldingRegistersRequest decodes a Read Holding Registers (0x03) request.
func ParseReadHoldingRegistersRequest(pdu []byte) (*ReadRequest, error) {
	return parseReadRequest(modbus.FuncCodeReadHoldingRegisters, pdu)
}

// BuildReadInputRegistersRequest encodes a Read Input Registers (0x04) request.
func BuildReadInputRegistersRequest(address, quantity int) ([]byte, error) {
	return buildReadRequest(modbus.FuncCodeReadInputRegisters, address, quantity)
}

// ParseReadInputRegistersRequest decodes a Read Input Registers (0x04) request.
func ParseReadInputRegistersRequest(pdu []byte) (*ReadRequest, error) {
	return parseReadRequest(modbus.FuncCodeReadInputRegisters, pdu)
}

// BitsResponse carries the values of a Read Coils or Read Discrete Inputs
// response.
type BitsResponse struct {
	response
	Function byte
	Values   []bool
}

func (r *BitsResponse) FunctionCode() byte { return r.Function }

func (r *BitsResponse) Encode() ([]byte, error) {
	if err := checkQuantity(len(r.Values), modbus.MaxReadBits); err != nil {
		return nil, err
	}
	packed := PackBits(r.Values)
	pdu := make([]byte, 2+len(packed))
	pdu[0] = r.Function
	pdu[1] = byte(len(packed))
	copy(pdu[2:], packed)
	return pdu, nil
}

func parseBitsResponse(functionCode byte, pdu []byte, quantity int) ([]bool, error) {
	if err := checkQuantity(quantity, modbus.MaxReadBits); err != nil {
		return nil, err
	}
	n := ByteCount(quantity)
	if err := expect(pdu, functionCode, 2+n); err != nil {
		return nil, err
	}
	if int(pdu[1]) != n {
		return nil, formatErrorf("function 0x%02X: byte count %d, expected %d", functionCode, pdu[1], n)
	}
	return UnpackBits(pdu[2:], quantity), nil
}

// BuildReadCoilsResponse encodes a Read Coils (0x01) response.
func BuildReadCoilsResponse(values []bool) ([]byte, error) {
	return (&BitsResponse{Function: modbus.FuncCodeReadCoils, Values: values}).Encode()
}

// ParseReadCoilsResponse decodes a Read Coils (0x01) response for a request
// of quantity coils.
func ParseReadCoilsResponse(pdu []byte, quantity int) ([]bool, error) {
	return parseBitsResponse(modbus.FuncCodeReadCoils, pdu, quantity)
}

// BuildReadDiscreteInputsResponse encodes a Read Discrete Inputs (0x02) response.
func BuildReadDiscreteInputsResponse(values []bool) ([]byte, error) {
	return (&BitsResponse{Function: modbus.FuncCodeReadDiscreteInputs, Values: values}).Encode()
}

// ParseReadDiscreteInputsResponse decodes a Read Discrete Inputs (0x02)
// response for a request of quantity inputs.
func ParseReadDiscreteInputsResponse(pdu []byte, quantity int) ([]bool, error) {
	return parseBitsResponse(modbus.FuncCodeReadDiscreteInputs, pdu, quantity)
}

// RegistersResponse carries the values of a Read Holding Registers or Read
// Input Registers response.
type RegistersResponse struct {
	response
	Function byte
	Values   []uint16
}

func (r *RegistersResponse) FunctionCode() byte { return r.Function }

func (r *RegistersResponse) Encode() ([]byte, error) {
	if err := checkQuantity(len(r.Values), modbus.MaxReadRegisters); err != nil {
		return nil, err
	}
	pdu := make([]byte, 2+2*len(r.Values))
	pdu[0] = r.Function
	pdu[1] = byte(2 * len(r.Values))
	for i, v := range r.Values {
		putU16(pdu[2+2*i:], v)
	}
	return pdu, nil
}

func parseRegistersResponse(functionCode byte, pdu []byte) ([]uint16, error) {
	if err := expectFunction(pdu, functionCode); err != nil {
		return nil, err
	}
	if len(pdu) < 2 {
		return nil, formatErrorf("function 0x%02X: missing byte count", functionCode)
	}
	n := int(pdu[1])
	if n == 0 || n%2 != 0 || n > 2*modbus.MaxReadRegisters {
		return nil, formatErrorf("function 0x%02X: invalid byte count %d", functionCode, n)
	}
	if len(pdu) != 2+n {
		return nil, formatErrorf("function 0x%02X: pdu length %d, expected %d", functionCode, len(pdu), 2+n)
	}
	values := make([]uint16, n/2)
	for i := range values {
		values[i] = u16(pdu[2+2*i:])
	}
	return values, nil
}

// BuildReadHoldingRegistersResponse encodes a Read Holding Registers (0x03) response.
func BuildReadHoldingRegistersResponse(values []uint16) ([]byte, error) {
	return (&RegistersResponse{Function: modbus.FuncCodeReadHoldingRegisters, Values: values}).Encode()
}

// ParseReadHoldingRegistersResponse decodes a Read Holding Registers (0x03) response.
func ParseReadHoldingRegistersResponse(pdu []byte) ([]uint16, error) {
	return parseRegistersResponse(modbus.FuncCodeReadHoldingRegisters, pdu)
}

// BuildReadInputRegistersResponse encodes a Read Input Registers (0x04) response.
func BuildReadInputRegistersResponse(values []uint16) ([]byte, error) {
	return (&RegistersResponse{Function: modbus.FuncCodeReadInputRegisters, Values: values}).Encode()
}

// ParseReadInputRegistersResponse decodes a Read Input Registers (0x04) response.
func ParseReadInputRegistersResponse(pdu []byte) ([]uint16, error) {
	return parseRegistersResponse(modbus.FuncCodeReadInputRegisters, pdu)
}

const (
	coilOn  = 0xFF00
	coilOff = 0x0000
)

// WriteSingleCoil is both the Write Single Coil (0x05) request and its echo
// response.
type WriteSingleCoil struct {
	message
	Address uint16
	Value   bool
}

func (w *WriteSingleCoil) FunctionCode() byte { return modbus.FuncCodeWriteSingleCoil }

func (w *WriteSingleCoil) Encode() ([]byte, error) {
	pdu := make([]byte, 5)
	pdu[0] = modbus.FuncCodeWriteSingleCoil
	putU16(pdu[1:], w.Address)
	if w.Value {
		putU16(pdu[3:], coilOn)
	}
	return pdu, nil
}

func parseWriteSingleCoil(pdu []byte) (*WriteSingleCoil, error) {
	if err := expect(pdu, modbus.FuncCodeWriteSingleCoil, 5); err != nil {
		return nil, err
	}
	w := &WriteSingleCoil{Address: u16(pdu[1:])}
	switch v := u16(pdu[3:]); v {
	case coilOn:
		w.Value = true
	case coilOff:
	default:
		return nil, rangeErrorf("coil value 0x%04X is neither 0xFF00 nor 0x0000", v)
	}
	return w, nil
}

// BuildWriteSingleCoilRequest encodes a Write Single Coil (0x05) request.
func BuildWriteSingleCoilRequest(address int, value bool) ([]byte, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	return (&WriteSingleCoil{Address: uint16(address), Value: value}).Encode()
}

// ParseWriteSingleCoilRequest decodes a Write Single Coil (0x05) request.
func ParseWriteSingleCoilRequest(pdu []byte) (*WriteSingleCoil, error) {
	return parseWriteSingleCoil(pdu)
}

// BuildWriteSingleCoilResponse encodes the echo response of Write Single Coil.
func BuildWriteSingleCoilResponse(address uint16, value bool) ([]byte, error) {
	return (&WriteSingleCoil{Address: address, Value: value}).Encode()
}

// ParseWriteSingleCoilResponse decodes the echo response of Write Single Coil.
func ParseWriteSingleCoilResponse(pdu []byte) (*WriteSingleCoil, error) {
	return parseWriteSingleCoil(pdu)
}

// WriteSingleRegister is both the Write Single Register (0x06) request and
// its echo response.
type WriteSingleRegister struct {
	message
	Address uint16
	Value   uint16
}

func (w *WriteSingleRegister) FunctionCode() byte { return modbus.FuncCodeWriteSingleRegister }

func (w *WriteSingleRegister) Encode() ([]byte, error) {
	pdu := make([]byte, 5)
	pdu[0] = modbus.FuncCodeWriteSingleRegister
	putU16(pdu[1:], w.Address)
	putU16(pdu[3:], w.Value)
	return pdu, nil
}

func parseWriteSingleRegister(pdu []byte) (*WriteSingleRegister, error) {
	if err := expect(pdu, modbus.FuncCodeWriteSingleRegister, 5); err != nil {
		return nil, err
	}
	return &WriteSingleRegister{Address: u16(pdu[1:]), Value: u16(pdu[3:])}, nil
}

// BuildWriteSingleRegisterRequest encodes a Write Single Register (0x06) request.
func BuildWriteSingleRegisterRequest(address, value int) ([]byte, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	if err := checkValue(value); err != nil {
		return nil, err
	}
	return (&WriteSingleRegister{Address: uint16(address), Value: uint16(value)}).Encode()
}

// ParseWriteSingleRegisterRequest decodes a Write Single Register (0x06) request.
func ParseWriteSingleRegisterRequest(pdu []byte) (*WriteSingleRegister, error) {
	return parseWriteSingleRegister(pdu)
}

// BuildWriteSingleRegisterResponse encodes the echo response of Write Single Register.
func BuildWriteSingleRegisterResponse(address, value uint16) ([]byte, error) {
	return (&WriteSingleRegister{Address: address, Value: value}).Encode()
}

// ParseWriteSingleRegisterResponse decodes the echo response of Write Single Register.
func ParseWriteSingleRegisterResponse(pdu []byte) (*WriteSingleRegister, error) {
	return parseWriteSingleRegister(pdu)
}

// WriteCoilsRequest is a Write Multiple Coils (0x0F) request.
type WriteCoilsRequest struct {
	request
	Address uint16
	Values  []bool
}

func (w *WriteCoilsRequest) FunctionCode() byte { return modbus.FuncCodeWriteMultipleCoils }

func (w *WriteCoilsRequest) Encode() ([]byte, error) {
	if err := checkQuantity(len(w.Values), modbus.MaxWriteBits); err != nil {
		return nil, err
	}
	packed := PackBits(w.Values)
	pdu := make([]byte, 6+len(packed))
	pdu[0] = modbus.FuncCodeWriteMultipleCoils
	putU16(pdu[1:], w.Address)
	putU16(pdu[3:], uint16(len(w.Values)))
	pdu[5] = byte(len(packed))
	copy(pdu[6:], packed)
	return pdu, nil
}

// BuildWriteMultipleCoilsRequest encodes a Write Multiple Coils (0x0F) request.
func BuildWriteMultipleCoilsRequest(address int, values []bool) ([]byte, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	return (&WriteCoilsRequest{Address: uint16(address), Values: values}).Encode()
}

// ParseWriteMultipleCoilsRequest decodes a Write Multiple Coils (0x0F)
// request. The byte count is cross-checked against the quantity.
func ParseWriteMultipleCoilsRequest(pdu []byte) (*WriteCoilsRequest, error) {
	if err := expectFunction(pdu, modbus.FuncCodeWriteMultipleCoils); err != nil {
		return nil, err
	}
	if len(pdu) < 7 {
		return nil, formatErrorf("write multiple coils: pdu length %d too short", len(pdu))
	}
	quantity := int(u16(pdu[3:]))
	if err := checkQuantity(quantity, modbus.MaxWriteBits); err != nil {
		return nil, err
	}
	n := int(pdu[5])
	if n != ByteCount(quantity) {
		return nil, formatErrorf("write multiple coils: byte count %d, expected %d", n, ByteCount(quantity))
	}
	if len(pdu) != 6+n {
		return nil, formatErrorf("write multiple coils: pdu length %d, expected %d", len(pdu), 6+n)
	}
	return &WriteCoilsRequest{Address: u16(pdu[1:]), Values: UnpackBits(pdu[6:], quantity)}, nil
}

// WriteRegistersRequest is a Write Multiple Registers (0x10) request.
type WriteRegistersRequest struct {
	request
	Address uint16
	Values  []uint16
}

func (w *WriteRegistersRequest) FunctionCode() byte { return modbus.FuncCodeWriteMultipleRegisters }

func (w *WriteRegistersRequest) Encode() ([]byte, error) {
	if err := checkQuantity(len(w.Values), modbus.MaxWriteRegisters); err != nil {
		return nil, err
	}
	pdu := make([]byte, 6+2*len(w.Values))
	pdu[0] = modbus.FuncCodeWriteMultipleRegisters
	putU16(pdu[1:], w.Address)
	putU16(pdu[3:], uint16(len(w.Values)))
	pdu[5] = byte(2 * len(w.Values))
	for i, v := range w.Values {
		putU16(pdu[6+2*i:], v)
	}
	return pdu, nil
}

// BuildWriteMultipleRegistersRequest encodes a Write Multiple Registers (0x10) request.
func BuildWriteMultipleRegistersRequest(address int, values []int) ([]byte, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	if err := checkQuantity(len(values), modbus.MaxWriteRegisters); err != nil {
		return nil, err
	}
	words := make([]uint16, len(values))
	for i, v := range values {
		if err := checkValue(v); err != nil {
			return nil, err
		}
		words[i] = uint16(v)
	}
	return (&WriteRegistersRequest{Address: uint16(address), Values: words}).Encode()
}

// ParseWriteMultipleRegistersRequest decodes a Write Multiple Registers
// (0x10) request. The byte count is cross-checked against the quantity.
func ParseWriteMultipleRegistersRequest(pdu []byte) (*WriteRegistersRequest, error) {
	if err := expectFunction(pdu, modbus.FuncCodeWriteMultipleRegisters); err != nil {
		return nil, err
	}
	if len(pdu) < 8 {
		return nil, formatErrorf("write multiple registers: pdu length %d too short", len(pdu))
	}
	quantity := int(u16(pdu[3:]))
	if err := checkQuantity(quantity, modbus.MaxWriteRegisters); err != nil {
		return nil, err
	}
	n := int(pdu[5])
	if n != 2*quantity {
		return nil, formatErrorf("write multiple registers: byte count %d, expected %d", n, 2*quantity)
	}
	if len(pdu) != 6+n {
		return nil, formatErrorf("write multiple registers: pdu length %d, expected %d", len(pdu), 6+n)
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = u16(pdu[6+2*i:])
	}
	return &WriteRegistersRequest{Address: u16(pdu[1:]), Values: values}, nil
}

// WriteMultipleResponse echoes the address and quantity of a Write Multiple
// Coils or Write Multiple Registers request.
type WriteMultipleResponse struct {
	response
	Function byte
	Address  uint16
	Quantity uint16
}

func (w *WriteMultipleResponse) FunctionCode() byte { return w.Function }

func (w *WriteMultipleResponse) Encode() ([]byte, error) {
	max := modbus.MaxWriteRegisters
	if w.Function == modbus.FuncCodeWriteMultipleCoils {
		max = modbus.MaxWriteBits
	}
	if err := checkQuantity(int(w.Quantity), max); err != nil {
		return nil, err
	}
	pdu := make([]byte, 5)
	pdu[0] = w.Function
	putU16(pdu[1:], w.Address)
	putU16(pdu[3:], w.Quantity)
	return pdu, nil
}

func parseWriteMultipleResponse(functionCode byte, pdu []byte) (*WriteMultipleResponse, error) {
	if err := expect(pdu, functionCode, 5); err != nil {
		return nil, err
	}
	return &WriteMultipleResponse{Function: functionCode, Address: u16(pdu[1:]), Quantity: u16(pdu[3:])}, nil
}

// BuildWriteMultipleCoilsResponse encodes a Write Multiple Coils (0x0F) response.
func BuildWriteMultipleCoilsResponse(address, quantity uint16) ([]byte, error) {
	return (&WriteMultipleResponse{Function: modbus.FuncCodeWriteMultipleCoils, Address: address, Quantity: quantity}).Encode()
}

// ParseWriteMultipleCoilsResponse decodes a Write Multiple Coils (0x0F) response.
func ParseWriteMultipleCoilsResponse(pdu []byte) (*WriteMultipleResponse, error) {
	return parseWriteMultipleResponse(modbus.FuncCodeWriteMultipleCoils, pdu)
}

// BuildWriteMultipleRegistersResponse encodes a Write Multiple Registers (0x10) response.
func BuildWriteMultipleRegistersResponse(address, quantity uint16) ([]byte, error) {
	return (&WriteMultipleResponse{Function: modbus.FuncCodeWriteMultipleRegisters, Address: address, Quantity: quantity}).Encode()
}

// ParseWriteMultipleRegistersResponse decodes a Write Multiple Registers (0x10) response.
func ParseWriteMultipleRegistersResponse(pdu []byte) (*WriteMultipleResponse, error) {
	return parseWriteMultipleResponse(modbus.FuncCodeWriteMultipleRegisters, pdu)
}
