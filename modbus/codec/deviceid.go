// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

import (
	"github.com/ffutop/modbus-emulator/modbus"
)

// Read Device ID codes.
const (
	ReadDeviceIDBasic    = 0x01
	ReadDeviceIDRegular  = 0x02
	ReadDeviceIDExtended = 0x03
	ReadDeviceIDSpecific = 0x04
)

// Standard device identification object ids.
const (
	ObjectVendorName          = 0x00
	ObjectProductCode         = 0x01
	ObjectMajorMinorRevision  = 0x02
	ObjectVendorURL           = 0x03
	ObjectProductName         = 0x04
	ObjectModelName           = 0x05
	ObjectUserApplicationName = 0x06
)

// maxPDUSize bounds the encoded identification response.
const maxPDUSize = 253

// DeviceIdentificationRequest is a Read Device Identification request
// (0x2B / MEI 0x0E).
type DeviceIdentificationRequest struct {
	request
	ReadCode byte
	ObjectID byte
}

func (r *DeviceIdentificationRequest) FunctionCode() byte {
	return modbus.FuncCodeReadDeviceIdentification
}

func (r *DeviceIdentificationRequest) Encode() ([]byte, error) {
	if r.ReadCode < ReadDeviceIDBasic || r.ReadCode > ReadDeviceIDSpecific {
		return nil, rangeErrorf("read device id code %d out of range [1, 4]", r.ReadCode)
	}
	return []byte{
		modbus.FuncCodeReadDeviceIdentification,
		modbus.MEIReadDeviceIdentification,
		r.ReadCode,
		r.ObjectID,
	}, nil
}

// BuildReadDeviceIdentificationRequest encodes a Read Device Identification request.
func BuildReadDeviceIdentificationRequest(readCode, objectID int) ([]byte, error) {
	if readCode < ReadDeviceIDBasic || readCode > ReadDeviceIDSpecific {
		return nil, rangeErrorf("read device id code %d out of range [1, 4]", readCode)
	}
	if objectID < 0 || objectID > 0xFF {
		return nil, rangeErrorf("object id %d out of range [0, 255]", objectID)
	}
	return (&DeviceIdentificationRequest{ReadCode: byte(readCode), ObjectID: byte(objectID)}).Encode()
}

// ParseReadDeviceIdentificationRequest decodes a Read Device Identification request.
func ParseReadDeviceIdentificationRequest(pdu []byte) (*DeviceIdentificationRequest, error) {
	if err := expect(pdu, modbus.FuncCodeReadDeviceIdentification, 4); err != nil {
		return nil, err
	}
	if pdu[1] != modbus.MEIReadDeviceIdentification {
		return nil, formatErrorf("mei type 0x%02X is not read device identification", pdu[1])
	}
	r := &DeviceIdentificationRequest{ReadCode: pdu[2], ObjectID: pdu[3]}
	if r.ReadCode < ReadDeviceIDBasic || r.ReadCode > ReadDeviceIDSpecific {
		return nil, rangeErrorf("read device id code %d out of range [1, 4]", r.ReadCode)
	}
	return r, nil
}

// DeviceObject is one identification object.
type DeviceObject struct {
	ID    byte
	Value string
}

// DeviceIdentification is a Read Device Identification response.
type DeviceIdentification struct {
	response
	Category        byte
	ConformityLevel byte
	MoreFollows     byte
	NextObjectID    byte
	Objects         []DeviceObject
}

func (d *DeviceIdentification) FunctionCode() byte {
	return modbus.FuncCodeReadDeviceIdentification
}

func (d *DeviceIdentification) Encode() ([]byte, error) {
	if len(d.Objects) > 0xFF {
		return nil, rangeErrorf("%d identification objects, at most 255 allowed", len(d.Objects))
	}
	pdu := []byte{
		modbus.FuncCodeReadDeviceIdentification,
		modbus.MEIReadDeviceIdentification,
		d.Category,
		d.ConformityLevel,
		d.MoreFollows,
		d.NextObjectID,
		byte(len(d.Objects)),
	}
	for _, obj := range d.Objects {
		text, err := encodeText(obj.Value)
		if err != nil {
			return nil, err
		}
		if len(text) > 0xFF {
			return nil, rangeErrorf("object 0x%02X value has %d bytes, at most 255 allowed", obj.ID, len(text))
		}
		pdu = append(pdu, obj.ID, byte(len(text)))
		pdu = append(pdu, text...)
	}
	if len(pdu) > maxPDUSize {
		return nil, rangeErrorf("identification response of %d bytes exceeds %d", len(pdu), maxPDUSize)
	}
	return pdu, nil
}

// BuildReadDeviceIdentificationResponse encodes a Read Device Identification response.
func BuildReadDeviceIdentificationResponse(d *DeviceIdentification) ([]byte, error) {
	return d.Encode()
}

// ParseReadDeviceIdentificationResponse decodes a Read Device Identification
// response. Object values are decoded with the fixed 8-bit code page.
func ParseReadDeviceIdentificationResponse(pdu []byte) (*DeviceIdentification, error) {
	if err := expectFunction(pdu, modbus.FuncCodeReadDeviceIdentification); err != nil {
		return nil, err
	}
	if len(pdu) < 7 {
		return nil, formatErrorf("device identification: header truncated at %d bytes", len(pdu))
	}
	if pdu[1] != modbus.MEIReadDeviceIdentification {
		return nil, formatErrorf("mei type 0x%02X is not read device identification", pdu[1])
	}
	d := &DeviceIdentification{
		Category:        pdu[2],
		ConformityLevel: pdu[3],
		MoreFollows:     pdu[4],
		NextObjectID:    pdu[5],
	}
	count := int(pdu[6])
	rest := pdu[7:]
	for i := 0; i < count; i++ {
		if len(rest) < 2 {
			return nil, formatErrorf("device identification: object %d header truncated", i)
		}
		id, n := rest[0], int(rest[1])
		if len(rest) < 2+n {
			return nil, formatErrorf("device identification: object 0x%02X data truncated", id)
		}
		d.Objects = append(d.Objects, DeviceObject{ID: id, Value: decodeText(rest[2 : 2+n])})
		rest = rest[2+n:]
	}
	if len(rest) != 0 {
		return nil, formatErrorf("device identification: %d trailing bytes", len(rest))
	}
	return d, nil
}
