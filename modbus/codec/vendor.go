// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

import (
	"encoding/binary"
	"time"

	"github.com/ffutop/modbus-emulator/modbus"
	"golang.org/x/text/encoding/charmap"
)

// FileNotFound is the decoded file length reported for a missing file.
const FileNotFound = -1

const (
	fileNotFoundSentinel = 0xFFFFFFFF
	maxFileNameLength    = 250
	clockPayloadLength   = 7
)

// codePage is the fixed 8-bit code page of vendor and identification text.
var codePage = charmap.Windows1251

func encodeText(s string) ([]byte, error) {
	b, err := codePage.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, formatErrorf("text %q cannot be encoded: %v", s, err)
	}
	return b, nil
}

func decodeText(b []byte) string {
	s, err := codePage.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// Bare is a PDU made of the function code only. It is the request of the
// argument-less vendor functions and the acknowledgement of the vendor
// write functions.
type Bare struct {
	message
	Function byte
}

func (b *Bare) FunctionCode() byte { return b.Function }

func (b *Bare) Encode() ([]byte, error) {
	return []byte{b.Function}, nil
}

// BuildCloseFileRequest encodes a Close File request.
func BuildCloseFileRequest() []byte {
	return []byte{modbus.FuncCodeCloseFile}
}

// BuildCloseFileResponse encodes the acknowledgement of Close File.
func BuildCloseFileResponse() []byte {
	return []byte{modbus.FuncCodeCloseFile}
}

// ParseCloseFileResponse checks the acknowledgement of Close File.
func ParseCloseFileResponse(pdu []byte) error {
	return expect(pdu, modbus.FuncCodeCloseFile, 1)
}

// BuildRestartControllerRequest encodes a Restart Controller request.
func BuildRestartControllerRequest() []byte {
	return []byte{modbus.FuncCodeRestartController}
}

// BuildRestartControllerResponse encodes the acknowledgement of Restart Controller.
func BuildRestartControllerResponse() []byte {
	return []byte{modbus.FuncCodeRestartController}
}

// ParseRestartControllerResponse checks the acknowledgement of Restart Controller.
func ParseRestartControllerResponse(pdu []byte) error {
	return expect(pdu, modbus.FuncCodeRestartController, 1)
}

// FileRequest opens a file or asks for its length. The name is length
// prefixed and encoded with the vendor code page.
type FileRequest struct {
	request
	Function byte
	Name     string
}

func (f *FileRequest) FunctionCode() byte { return f.Function }

func (f *FileRequest) Encode() ([]byte, error) {
	name, err := encodeText(f.Name)
	if err != nil {
		return nil, err
	}
	if len(name) == 0 || len(name) > maxFileNameLength {
		return nil, rangeErrorf("file name length %d out of range [1, %d]", len(name), maxFileNameLength)
	}
	pdu := make([]byte, 2+len(name))
	pdu[0] = f.Function
	pdu[1] = byte(len(name))
	copy(pdu[2:], name)
	return pdu, nil
}

func parseFileRequest(functionCode byte, pdu []byte) (*FileRequest, error) {
	if err := expectFunction(pdu, functionCode); err != nil {
		return nil, err
	}
	if len(pdu) < 3 {
		return nil, formatErrorf("function 0x%02X: missing file name", functionCode)
	}
	n := int(pdu[1])
	if n == 0 || len(pdu) != 2+n {
		return nil, formatErrorf("function 0x%02X: name length %d does not match pdu length %d", functionCode, n, len(pdu))
	}
	return &FileRequest{Function: functionCode, Name: decodeText(pdu[2:])}, nil
}

// FileLength is the response of Open File and Read File Length. Length is
// FileNotFound when the device reports the 0xFFFFFFFF sentinel.
type FileLength struct {
	response
	Function byte
	Length   int64
}

func (f *FileLength) FunctionCode() byte { return f.Function }

func (f *FileLength) Encode() ([]byte, error) {
	var raw uint32
	switch {
	case f.Length == FileNotFound:
		raw = fileNotFoundSentinel
	case f.Length < 0 || f.Length >= fileNotFoundSentinel:
		return nil, rangeErrorf("file length %d out of range", f.Length)
	default:
		raw = uint32(f.Length)
	}
	pdu := make([]byte, 5)
	pdu[0] = f.Function
	binary.BigEndian.PutUint32(pdu[1:], raw)
	return pdu, nil
}

func parseFileLength(functionCode byte, pdu []byte) (*FileLength, error) {
	if err := expect(pdu, functionCode, 5); err != nil {
		return nil, err
	}
	f := &FileLength{Function: functionCode}
	if raw := binary.BigEndian.Uint32(pdu[1:]); raw == fileNotFoundSentinel {
		f.Length = FileNotFound
	} else {
		f.Length = int64(raw)
	}
	return f, nil
}

// BuildOpenFileRequest encodes an Open File request.
func BuildOpenFileRequest(name string) ([]byte, error) {
	return (&FileRequest{Function: modbus.FuncCodeOpenFile, Name: name}).Encode()
}

// ParseOpenFileRequest decodes an Open File request.
func ParseOpenFileRequest(pdu []byte) (*FileRequest, error) {
	return parseFileRequest(modbus.FuncCodeOpenFile, pdu)
}

// BuildOpenFileResponse encodes an Open File response.
func BuildOpenFileResponse(length int64) ([]byte, error) {
	return (&FileLength{Function: modbus.FuncCodeOpenFile, Length: length}).Encode()
}

// ParseOpenFileResponse decodes an Open File response.
func ParseOpenFileResponse(pdu []byte) (*FileLength, error) {
	return parseFileLength(modbus.FuncCodeOpenFile, pdu)
}

// BuildReadFileLengthRequest encodes a Read File Length request.
func BuildReadFileLengthRequest(name string) ([]byte, error) {
	return (&FileRequest{Function: modbus.FuncCodeReadFileLength, Name: name}).Encode()
}

// ParseReadFileLengthRequest decodes a Read File Length request.
func ParseReadFileLengthRequest(pdu []byte) (*FileRequest, error) {
	return parseFileRequest(modbus.FuncCodeReadFileLength, pdu)
}

// BuildReadFileLengthResponse encodes a Read File Length response.
func BuildReadFileLengthResponse(length int64) ([]byte, error) {
	return (&FileLength{Function: modbus.FuncCodeReadFileLength, Length: length}).Encode()
}

// ParseReadFileLengthResponse decodes a Read File Length response.
func ParseReadFileLengthResponse(pdu []byte) (*FileLength, error) {
	return parseFileLength(modbus.FuncCodeReadFileLength, pdu)
}

// Clock is the controller time structure.
type Clock struct {
	Seconds int
	Minutes int
	Hours   int
	Day     int
	Month   int
	Year    int
}

// ClockFromTime converts t into a Clock.
func ClockFromTime(t time.Time) Clock {
	return Clock{
		Seconds: t.Second(),
		Minutes: t.Minute(),
		Hours:   t.Hour(),
		Day:     t.Day(),
		Month:   int(t.Month()),
		Year:    t.Year(),
	}
}

// Time converts the clock into a time in loc.
func (c Clock) Time(loc *time.Location) time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hours, c.Minutes, c.Seconds, 0, loc)
}

// Validate checks every field against its calendar range.
func (c Clock) Validate() error {
	switch {
	case c.Seconds < 0 || c.Seconds > 59:
		return rangeErrorf("seconds %d out of range [0, 59]", c.Seconds)
	case c.Minutes < 0 || c.Minutes > 59:
		return rangeErrorf("minutes %d out of range [0, 59]", c.Minutes)
	case c.Hours < 0 || c.Hours > 23:
		return rangeErrorf("hours %d out of range [0, 23]", c.Hours)
	case c.Day < 1 || c.Day > 31:
		return rangeErrorf("day %d out of range [1, 31]", c.Day)
	case c.Month < 1 || c.Month > 12:
		return rangeErrorf("month %d out of range [1, 12]", c.Month)
	case c.Year < 0 || c.Year > 0xFFFF:
		return rangeErrorf("year %d out of range [0, 65535]", c.Year)
	}
	return nil
}

// ControllerTime is the Get Controller Time response and the Set Controller
// Time request. Both carry the 7 byte clock at offset 3:
//
//	Function        : 1 byte
//	Reserved        : 1 byte (0x00)
//	Byte count      : 1 byte (0x07)
//	Seconds, Minutes, Hours, Day, Month, Year low, Year high
type ControllerTime struct {
	message
	Function byte
	Clock    Clock
}

func (c *ControllerTime) FunctionCode() byte { return c.Function }

func (c *ControllerTime) Encode() ([]byte, error) {
	if err := c.Clock.Validate(); err != nil {
		return nil, err
	}
	return []byte{
		c.Function, 0x00, clockPayloadLength,
		byte(c.Clock.Seconds), byte(c.Clock.Minutes), byte(c.Clock.Hours),
		byte(c.Clock.Day), byte(c.Clock.Month),
		byte(c.Clock.Year), byte(c.Clock.Year >> 8),
	}, nil
}

func parseControllerTime(functionCode byte, pdu []byte) (*ControllerTime, error) {
	if err := expect(pdu, functionCode, 3+clockPayloadLength); err != nil {
		return nil, err
	}
	if pdu[2] != clockPayloadLength {
		return nil, formatErrorf("controller time: byte count %d, expected %d", pdu[2], clockPayloadLength)
	}
	t := pdu[3:]
	return &ControllerTime{
		Function: functionCode,
		Clock: Clock{
			Seconds: int(t[0]),
			Minutes: int(t[1]),
			Hours:   int(t[2]),
			Day:     int(t[3]),
			Month:   int(t[4]),
			Year:    int(t[5]) | int(t[6])<<8,
		},
	}, nil
}

// BuildGetControllerTimeRequest encodes a Get Controller Time request.
func BuildGetControllerTimeRequest() []byte {
	return []byte{modbus.FuncCodeGetControllerTime}
}

// BuildGetControllerTimeResponse encodes a Get Controller Time response.
func BuildGetControllerTimeResponse(c Clock) ([]byte, error) {
	return (&ControllerTime{Function: modbus.FuncCodeGetControllerTime, Clock: c}).Encode()
}

// ParseGetControllerTimeResponse decodes a Get Controller Time response.
func ParseGetControllerTimeResponse(pdu []byte) (Clock, error) {
	t, err := parseControllerTime(modbus.FuncCodeGetControllerTime, pdu)
	if err != nil {
		return Clock{}, err
	}
	return t.Clock, nil
}

// BuildSetControllerTimeRequest encodes a Set Controller Time request.
func BuildSetControllerTimeRequest(c Clock) ([]byte, error) {
	return (&ControllerTime{Function: modbus.FuncCodeSetControllerTime, Clock: c}).Encode()
}

// ParseSetControllerTimeRequest decodes a Set Controller Time request and
// validates the clock fields.
func ParseSetControllerTimeRequest(pdu []byte) (*ControllerTime, error) {
	t, err := parseControllerTime(modbus.FuncCodeSetControllerTime, pdu)
	if err != nil {
		return nil, err
	}
	if err := t.Clock.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// BuildSetControllerTimeResponse encodes the acknowledgement of Set Controller Time.
func BuildSetControllerTimeResponse() []byte {
	return []byte{modbus.FuncCodeSetControllerTime}
}

// ParseSetControllerTimeResponse checks the acknowledgement of Set Controller Time.
func ParseSetControllerTimeResponse(pdu []byte) error {
	return expect(pdu, modbus.FuncCodeSetControllerTime, 1)
}
