// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ffutop/modbus-emulator/modbus/crc"
)

func TestCalculateRequestLength(t *testing.T) {
	tests := []struct {
		name     string
		funcCode byte
		header   []byte
		want     int
		wantErr  bool
	}{
		{"ReadHoldingRegisters", 0x03, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 8, false},
		{"WriteSingleRegister", 0x06, []byte{0x01, 0x06, 0x00, 0x00, 0xAA, 0xBB}, 8, false},
		{"WriteMultipleRegisters_ShortHeader", 0x10, []byte{0x01, 0x10, 0x00, 0x01, 0x00, 0x01}, 0, true},
		{"WriteMultipleRegisters_Valid", 0x10, []byte{0x01, 0x10, 0x00, 0x01, 0x00, 0x01, 0x02}, 7 + 2 + 2, false},
		{"ReadDeviceIdentification", 0x2B, []byte{0x01, 0x2B}, 7, false},
		{"WriteDeviceComment", 0x42, []byte{0x01, 0x42}, 22, false},
		{"OpenFile", 0x43, []byte{0x01, 0x43, 0x07}, 3 + 7 + 2, false},
		{"OpenFile_ShortHeader", 0x43, []byte{0x01, 0x43}, 0, true},
		{"SetControllerTime", 0x48, []byte{0x01, 0x48}, 13, false},
		{"CloseFile", 0x45, []byte{0x01, 0x45}, 4, false},
		{"UnknownFunction", 0x99, []byte{0x01, 0x99}, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateRequestLength(tt.funcCode, tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("CalculateRequestLength() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				var short *ShortHeaderError
				if !errors.As(err, &short) || short.Need != RequestHeaderSize(tt.funcCode) {
					t.Errorf("CalculateRequestLength() error = %v, want ShortHeaderError", err)
				}
			}
			if got != tt.want {
				t.Errorf("CalculateRequestLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadResponse(t *testing.T) {
	frame := func(b ...byte) []byte { return crc.Append(b) }
	tests := []struct {
		name     string
		funcCode byte
		stream   []byte
		want     []byte
	}{
		{
			"ReadHoldingRegisters",
			0x03,
			frame(0x01, 0x03, 0x02, 0x12, 0x34),
			frame(0x01, 0x03, 0x02, 0x12, 0x34),
		},
		{
			"LeadingNoise",
			0x03,
			append([]byte{0x07, 0x00}, frame(0x01, 0x03, 0x02, 0x00, 0x01)...),
			frame(0x01, 0x03, 0x02, 0x00, 0x01),
		},
		{
			"Exception",
			0x03,
			frame(0x01, 0x83, 0x02),
			frame(0x01, 0x83, 0x02),
		},
		{
			"SetTimeAck",
			0x48,
			frame(0x01, 0x48),
			frame(0x01, 0x48),
		},
		{
			"OpenFile",
			0x43,
			frame(0x01, 0x43, 0xFF, 0xFF, 0xFF, 0xFF),
			frame(0x01, 0x43, 0xFF, 0xFF, 0xFF, 0xFF),
		},
		{
			"DeviceIdentification",
			0x2B,
			frame(0x01, 0x2B, 0x0E, 0x01, 0x01, 0x00, 0x00, 0x02, 0x00, 0x02, 'A', 'B', 0x01, 0x00),
			frame(0x01, 0x2B, 0x0E, 0x01, 0x01, 0x00, 0x00, 0x02, 0x00, 0x02, 'A', 'B', 0x01, 0x00),
		},
		{
			"DeviceIdentificationEmpty",
			0x2B,
			frame(0x01, 0x2B, 0x0E, 0x01, 0x01, 0x00, 0x00, 0x00),
			frame(0x01, 0x2B, 0x0E, 0x01, 0x01, 0x00, 0x00, 0x00),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadResponse(0x01, tt.funcCode, bytes.NewReader(tt.stream), time.Now().Add(time.Second))
			if err != nil {
				t.Fatalf("ReadResponse() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ReadResponse() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestReadResponseInvalidLength(t *testing.T) {
	_, err := ReadResponse(0x01, 0x03, bytes.NewReader([]byte{0x01, 0x03, 0x00}), time.Now().Add(time.Second))
	var invalid *InvalidLengthError
	if !errors.As(err, &invalid) {
		t.Errorf("ReadResponse() error = %v, want InvalidLengthError", err)
	}
}

func TestCalculateResponseLength(t *testing.T) {
	tests := []struct {
		name    string
		request []byte
		want    int
	}{
		{"ReadCoils10", []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x0A}, 4 + 1 + 2},
		{"ReadHolding2", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02}, 4 + 1 + 4},
		{"WriteSingleRegister", []byte{0x01, 0x06, 0x00, 0x00, 0x00, 0x02}, 8},
		{"GetControllerTime", []byte{0x01, 0x47}, 13},
		{"ReadDeviceComment", []byte{0x01, 0x41}, 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateResponseLength(tt.request); got != tt.want {
				t.Errorf("CalculateResponseLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadRequest(t *testing.T) {
	frame := func(b ...byte) []byte { return crc.Append(b) }
	readHolding := frame(0x01, 0x03, 0x00, 0x00, 0x00, 0x02)
	writeRegisters := frame(0x01, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0x11, 0x22, 0x33, 0x44)
	openFile := frame(0x01, 0x43, 0x03, 'L', 'O', 'G')
	closeFile := frame(0x01, 0x45)

	var stream []byte
	for _, f := range [][]byte{readHolding, writeRegisters, openFile, closeFile} {
		stream = append(stream, f...)
	}
	r := bytes.NewReader(stream)
	buf := make([]byte, MaxSize)
	for i, want := range [][]byte{readHolding, writeRegisters, openFile, closeFile} {
		got, err := ReadRequest(r, buf)
		if err != nil {
			t.Fatalf("frame %d: ReadRequest() error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: ReadRequest() = % X, want % X", i, got, want)
		}
	}

	if _, err := ReadRequest(bytes.NewReader(readHolding[:5]), buf); err == nil {
		t.Error("ReadRequest() of a truncated frame succeeded")
	}

	oversized := []byte{0x01, 0x0F, 0x00, 0x00, 0x07, 0xF8, 0xFF}
	var invalid *InvalidLengthError
	if _, err := ReadRequest(bytes.NewReader(oversized), buf); !errors.As(err, &invalid) {
		t.Errorf("ReadRequest() error = %v, want InvalidLengthError", err)
	}
}
