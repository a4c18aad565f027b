// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package emulator

import (
	"encoding/hex"
	"errors"

	"github.com/ffutop/modbus-emulator/internal/emulator/model"
	"github.com/ffutop/modbus-emulator/modbus"
	"github.com/ffutop/modbus-emulator/modbus/codec"
	"github.com/ffutop/modbus-emulator/modbus/crc"
	"github.com/ffutop/modbus-emulator/modbus/rtu"
)

// minFrameSize is the shortest frame carrying any request data.
const minFrameSize = 5

// HandleRequest answers one complete RTU frame. It returns nil when the
// frame is dropped: the emulator is disconnected, the frame is too short to
// carry an address, or it is addressed to another unit. Every other frame
// gets a response frame, an exception response on any failure.
func (e *Emulator) HandleRequest(frame []byte) []byte {
	if !e.connected {
		return nil
	}
	if len(frame) < 2 {
		e.log.Debug("dropping short frame", "frame", hex.EncodeToString(frame))
		return nil
	}
	if frame[0] != e.unitAddress && frame[0] != modbus.BroadcastAddress {
		return nil
	}

	functionCode := frame[1]
	if len(frame) < minFrameSize && !(len(frame) == rtu.MinSize && bareRequest(functionCode)) {
		e.log.Debug("truncated frame", "frame", hex.EncodeToString(frame))
		return e.exceptionFrame(modbus.NewException(functionCode, modbus.ExceptionCodeServerDeviceFailure))
	}
	if !crc.Valid(frame) {
		e.log.Debug("crc mismatch", "frame", hex.EncodeToString(frame))
		return e.exceptionFrame(modbus.NewException(functionCode, modbus.ExceptionCodeServerDeviceFailure))
	}

	pdu, err := e.dispatch(frame[1 : len(frame)-2])
	if err != nil {
		exc := toException(functionCode, err)
		e.log.Debug("request failed", "func", functionCode, "code", exc.Code, "err", err)
		return e.exceptionFrame(exc)
	}
	resp, err := e.frame(pdu)
	if err != nil {
		e.log.Debug("response encoding failed", "func", functionCode, "err", err)
		return e.exceptionFrame(modbus.NewException(functionCode, modbus.ExceptionCodeServerDeviceFailure))
	}
	return resp
}

// bareRequest reports whether requests of functionCode carry no data.
func bareRequest(functionCode byte) bool {
	switch functionCode {
	case modbus.FuncCodeReadDeviceComment,
		modbus.FuncCodeCloseFile,
		modbus.FuncCodeRestartController,
		modbus.FuncCodeGetControllerTime:
		return true
	}
	return false
}

// toException maps a dispatch error to the exception it is answered with.
func toException(functionCode byte, err error) *modbus.Exception {
	var exc *modbus.Exception
	switch {
	case errors.As(err, &exc):
		return exc
	case errors.Is(err, model.ErrAddress):
		return modbus.NewException(functionCode, modbus.ExceptionCodeIllegalDataAddress)
	case errors.Is(err, codec.ErrFormat), errors.Is(err, codec.ErrRange):
		return modbus.NewException(functionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	return modbus.NewException(functionCode, modbus.ExceptionCodeServerDeviceFailure)
}

func (e *Emulator) frame(pdu []byte) ([]byte, error) {
	adu := &rtu.ApplicationDataUnit{
		SlaveID: e.unitAddress,
		Pdu:     modbus.ProtocolDataUnit{FunctionCode: pdu[0], Data: pdu[1:]},
	}
	return adu.Encode()
}

func (e *Emulator) exceptionFrame(exc *modbus.Exception) []byte {
	raw, _ := (&rtu.ApplicationDataUnit{SlaveID: e.unitAddress, Pdu: exc.PDU()}).Encode()
	return raw
}

// dispatch decodes pdu and runs its handler. It returns the response PDU.
func (e *Emulator) dispatch(pdu []byte) ([]byte, error) {
	req, err := codec.DecodeRequest(pdu)
	if err != nil {
		return nil, err
	}
	switch r := req.(type) {
	case *codec.ReadRequest:
		return e.handleRead(r)
	case *codec.WriteSingleCoil:
		return e.handleWriteSingleCoil(r)
	case *codec.WriteSingleRegister:
		return e.handleWriteSingleRegister(r)
	case *codec.WriteCoilsRequest:
		return e.handleWriteMultipleCoils(r)
	case *codec.WriteRegistersRequest:
		return e.handleWriteMultipleRegisters(r)
	case *codec.DeviceIdentificationRequest:
		return e.handleDeviceIdentification(r)
	case *codec.DeviceComment:
		return e.handleWriteDeviceComment(r)
	case *codec.FileRequest:
		return e.handleFile(r)
	case *codec.ControllerTime:
		return e.handleSetControllerTime(r)
	case *codec.Bare:
		return e.handleBare(r)
	}
	return nil, modbus.NewException(req.FunctionCode(), modbus.ExceptionCodeIllegalFunction)
}

var readKinds = map[byte]model.RegisterKind{
	modbus.FuncCodeReadCoils:            model.KindCoil,
	modbus.FuncCodeReadDiscreteInputs:   model.KindDiscreteInput,
	modbus.FuncCodeReadHoldingRegisters: model.KindHoldingRegister,
	modbus.FuncCodeReadInputRegisters:   model.KindInputRegister,
}

func (e *Emulator) handleRead(r *codec.ReadRequest) ([]byte, error) {
	kind := readKinds[r.Function]
	if int(r.Address)+int(r.Quantity) > model.MaxAddress+1 {
		return nil, modbus.NewException(r.Function, modbus.ExceptionCodeIllegalDataAddress)
	}
	if exc := e.exceptions.Check(r.Function, r.Address, r.Quantity); exc != nil {
		return nil, exc
	}
	if kind.IsBit() {
		values, err := e.model.ReadBits(kind, r.Address, r.Quantity)
		if err != nil {
			return nil, err
		}
		return (&codec.BitsResponse{Function: r.Function, Values: values}).Encode()
	}
	values, err := e.model.ReadRegisters(kind, r.Address, r.Quantity)
	if err != nil {
		return nil, err
	}
	return (&codec.RegistersResponse{Function: r.Function, Values: values}).Encode()
}

func (e *Emulator) handleWriteSingleCoil(r *codec.WriteSingleCoil) ([]byte, error) {
	if exc := e.exceptions.Check(modbus.FuncCodeWriteSingleCoil, r.Address, 1); exc != nil {
		return nil, exc
	}
	e.model.SetCoil(r.Address, r.Value)
	return codec.BuildWriteSingleCoilResponse(r.Address, r.Value)
}

func (e *Emulator) handleWriteSingleRegister(r *codec.WriteSingleRegister) ([]byte, error) {
	if exc := e.exceptions.Check(modbus.FuncCodeWriteSingleRegister, r.Address, 1); exc != nil {
		return nil, exc
	}
	e.model.SetHoldingRegister(r.Address, r.Value)
	return codec.BuildWriteSingleRegisterResponse(r.Address, r.Value)
}

func (e *Emulator) handleWriteMultipleCoils(r *codec.WriteCoilsRequest) ([]byte, error) {
	fc := byte(modbus.FuncCodeWriteMultipleCoils)
	quantity := uint16(len(r.Values))
	if int(r.Address)+len(r.Values) > model.MaxAddress+1 {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataAddress)
	}
	if exc := e.exceptions.Check(fc, r.Address, quantity); exc != nil {
		return nil, exc
	}
	if err := e.model.WriteBits(model.KindCoil, r.Address, r.Values); err != nil {
		return nil, err
	}
	return codec.BuildWriteMultipleCoilsResponse(r.Address, quantity)
}

func (e *Emulator) handleWriteMultipleRegisters(r *codec.WriteRegistersRequest) ([]byte, error) {
	fc := byte(modbus.FuncCodeWriteMultipleRegisters)
	quantity := uint16(len(r.Values))
	if int(r.Address)+len(r.Values) > model.MaxAddress+1 {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataAddress)
	}
	if exc := e.exceptions.Check(fc, r.Address, quantity); exc != nil {
		return nil, exc
	}
	if err := e.model.WriteRegisters(model.KindHoldingRegister, r.Address, r.Values); err != nil {
		return nil, err
	}
	return codec.BuildWriteMultipleRegistersResponse(r.Address, quantity)
}

// vendorCheck applies the exception rules of the address-less functions,
// which are keyed on address 0.
func (e *Emulator) vendorCheck(functionCode byte) error {
	if exc := e.exceptions.Check(functionCode, 0, 1); exc != nil {
		return exc
	}
	return nil
}

// maxObjectsSize is the room left for objects after the identification header.
const maxObjectsSize = 253 - 7

func (e *Emulator) handleDeviceIdentification(r *codec.DeviceIdentificationRequest) ([]byte, error) {
	fc := byte(modbus.FuncCodeReadDeviceIdentification)
	if err := e.vendorCheck(fc); err != nil {
		return nil, err
	}
	resp := &codec.DeviceIdentification{
		Category:        r.ReadCode,
		ConformityLevel: e.profile.conformityLevel(),
	}

	if r.ReadCode == codec.ReadDeviceIDSpecific {
		value, ok := e.profile.objects[r.ObjectID]
		if !ok {
			return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataAddress)
		}
		resp.Objects = []codec.DeviceObject{{ID: r.ObjectID, Value: value}}
		return resp.Encode()
	}

	ids := e.profile.objectIDs(r.ReadCode)
	// Stream access restarts from the first object when the requested one
	// does not exist.
	start := 0
	for i, id := range ids {
		if id == r.ObjectID {
			start = i
			break
		}
	}
	size := 0
	for _, id := range ids[start:] {
		value := e.profile.objects[id]
		n := 2 + len(value)
		if size+n > maxObjectsSize {
			resp.MoreFollows = 0xFF
			resp.NextObjectID = id
			break
		}
		size += n
		resp.Objects = append(resp.Objects, codec.DeviceObject{ID: id, Value: value})
	}
	return resp.Encode()
}

func (e *Emulator) handleWriteDeviceComment(r *codec.DeviceComment) ([]byte, error) {
	if err := e.vendorCheck(r.Function); err != nil {
		return nil, err
	}
	e.profile.comment = r.Comment
	return codec.BuildWriteDeviceCommentResponse(), nil
}

func (e *Emulator) handleFile(r *codec.FileRequest) ([]byte, error) {
	if err := e.vendorCheck(r.Function); err != nil {
		return nil, err
	}
	length, ok := e.profile.files[r.Name]
	if !ok {
		length = codec.FileNotFound
	}
	if r.Function == modbus.FuncCodeOpenFile {
		if ok {
			e.profile.openFile = r.Name
		}
		return codec.BuildOpenFileResponse(length)
	}
	return codec.BuildReadFileLengthResponse(length)
}

func (e *Emulator) handleSetControllerTime(r *codec.ControllerTime) ([]byte, error) {
	if err := e.vendorCheck(r.Function); err != nil {
		return nil, err
	}
	e.SetControllerTime(r.Clock.Time(e.now().Location()))
	return codec.BuildSetControllerTimeResponse(), nil
}

func (e *Emulator) handleBare(r *codec.Bare) ([]byte, error) {
	if err := e.vendorCheck(r.Function); err != nil {
		return nil, err
	}
	switch r.Function {
	case modbus.FuncCodeReadDeviceComment:
		return codec.BuildReadDeviceCommentResponse(e.profile.comment)
	case modbus.FuncCodeCloseFile:
		e.profile.openFile = ""
		return codec.BuildCloseFileResponse(), nil
	case modbus.FuncCodeRestartController:
		e.profile.restarts++
		e.profile.openFile = ""
		e.log.Info("controller restart requested", "restarts", e.profile.restarts)
		return codec.BuildRestartControllerResponse(), nil
	case modbus.FuncCodeGetControllerTime:
		return codec.BuildGetControllerTimeResponse(codec.ClockFromTime(e.ControllerTime()))
	}
	return nil, modbus.NewException(r.Function, modbus.ExceptionCodeIllegalFunction)
}
