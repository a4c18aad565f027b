// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPackBits(t *testing.T) {
	tests := []struct {
		name   string
		values []bool
		want   []byte
	}{
		{"Single", []bool{true}, []byte{0x01}},
		{"FullByte", []bool{true, false, true, true, false, false, true, true}, []byte{0xCD}},
		{"TenCoils", []bool{true, false, true, true, false, false, true, true, true, false}, []byte{0xCD, 0x01}},
		{"Empty", nil, []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PackBits(tt.values)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("PackBits() = % X, want % X", got, tt.want)
			}
			if diff := cmp.Diff(tt.values, UnpackBits(got, len(tt.values)), cmpBools); diff != "" {
				t.Errorf("UnpackBits() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

var cmpBools = cmp.Comparer(func(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
})

func TestReadCoilsResponseBitOrder(t *testing.T) {
	// Coils 0, 2, 3 and 8 are on.
	pdu := []byte{0x01, 0x02, 0x0D, 0x01}
	values, err := ParseReadCoilsResponse(pdu, 10)
	if err != nil {
		t.Fatalf("ParseReadCoilsResponse() error = %v", err)
	}
	want := []bool{true, false, true, true, false, false, false, false, true, false}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	built, err := BuildReadCoilsResponse(values)
	if err != nil {
		t.Fatalf("BuildReadCoilsResponse() error = %v", err)
	}
	if !bytes.Equal(built, pdu) {
		t.Errorf("BuildReadCoilsResponse() = % X, want % X", built, pdu)
	}
}

func TestReadRequests(t *testing.T) {
	tests := []struct {
		name  string
		build func(address, quantity int) ([]byte, error)
		parse func([]byte) (*ReadRequest, error)
		addr  int
		qty   int
		want  []byte
	}{
		{"ReadCoils", BuildReadCoilsRequest, ParseReadCoilsRequest, 0x13, 0x25, []byte{0x01, 0x00, 0x13, 0x00, 0x25}},
		{"ReadDiscreteInputs", BuildReadDiscreteInputsRequest, ParseReadDiscreteInputsRequest, 0xC4, 2000, []byte{0x02, 0x00, 0xC4, 0x07, 0xD0}},
		{"ReadHoldingRegisters", BuildReadHoldingRegistersRequest, ParseReadHoldingRegistersRequest, 0x6B, 3, []byte{0x03, 0x00, 0x6B, 0x00, 0x03}},
		{"ReadInputRegisters", BuildReadInputRegistersRequest, ParseReadInputRegistersRequest, 0xFFFF, 125, []byte{0x04, 0xFF, 0xFF, 0x00, 0x7D}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdu, err := tt.build(tt.addr, tt.qty)
			if err != nil {
				t.Fatalf("build error = %v", err)
			}
			if !bytes.Equal(pdu, tt.want) {
				t.Errorf("build = % X, want % X", pdu, tt.want)
			}
			req, err := tt.parse(pdu)
			if err != nil {
				t.Fatalf("parse error = %v", err)
			}
			if int(req.Address) != tt.addr || int(req.Quantity) != tt.qty || req.Function != tt.want[0] {
				t.Errorf("parse = %+v", req)
			}
		})
	}
}

func TestBuildRequestBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		build   func() ([]byte, error)
		wantErr error
	}{
		{"HoldingQuantityZero", func() ([]byte, error) { return BuildReadHoldingRegistersRequest(0, 0) }, ErrRange},
		{"HoldingQuantity126", func() ([]byte, error) { return BuildReadHoldingRegistersRequest(0, 126) }, ErrRange},
		{"HoldingQuantity125", func() ([]byte, error) { return BuildReadHoldingRegistersRequest(0, 125) }, nil},
		{"CoilsQuantity2001", func() ([]byte, error) { return BuildReadCoilsRequest(0, 2001) }, ErrRange},
		{"AddressOverflow", func() ([]byte, error) { return BuildReadCoilsRequest(65536, 1) }, ErrRange},
		{"NegativeAddress", func() ([]byte, error) { return BuildWriteSingleCoilRequest(-1, true) }, ErrRange},
		{"RegisterValueOverflow", func() ([]byte, error) { return BuildWriteSingleRegisterRequest(1, 65536) }, ErrRange},
		{"WriteCoilsZero", func() ([]byte, error) { return BuildWriteMultipleCoilsRequest(0, nil) }, ErrRange},
		{"WriteCoils1969", func() ([]byte, error) { return BuildWriteMultipleCoilsRequest(0, make([]bool, 1969)) }, ErrRange},
		{"WriteCoils1968", func() ([]byte, error) { return BuildWriteMultipleCoilsRequest(0, make([]bool, 1968)) }, nil},
		{"WriteRegisters124", func() ([]byte, error) { return BuildWriteMultipleRegistersRequest(0, make([]int, 124)) }, ErrRange},
		{"WriteRegistersNegative", func() ([]byte, error) { return BuildWriteMultipleRegistersRequest(0, []int{-1}) }, ErrRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistersResponse(t *testing.T) {
	pdu, err := BuildReadHoldingRegistersResponse([]uint16{0x022B, 0x0000, 0x0064})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x03, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64}
	if !bytes.Equal(pdu, want) {
		t.Errorf("BuildReadHoldingRegistersResponse() = % X, want % X", pdu, want)
	}
	values, err := ParseReadHoldingRegistersResponse(pdu)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint16{0x022B, 0x0000, 0x0064}, values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	bad := [][]byte{
		{0x03},
		{0x03, 0x03, 0x00, 0x01, 0x02},
		{0x03, 0x04, 0x00, 0x01},
		{0x04, 0x02, 0x00, 0x01},
	}
	for _, b := range bad {
		if _, err := ParseReadHoldingRegistersResponse(b); !errors.Is(err, ErrFormat) {
			t.Errorf("ParseReadHoldingRegistersResponse(% X) error = %v, want ErrFormat", b, err)
		}
	}

	in, err := BuildReadInputRegistersResponse([]uint16{0x000A})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseReadInputRegistersResponse(in); err != nil {
		t.Errorf("ParseReadInputRegistersResponse() error = %v", err)
	}
}

func TestWriteSingle(t *testing.T) {
	pdu, err := BuildWriteSingleCoilRequest(0xAC, true)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x05, 0x00, 0xAC, 0xFF, 0x00}; !bytes.Equal(pdu, want) {
		t.Errorf("BuildWriteSingleCoilRequest() = % X, want % X", pdu, want)
	}
	coil, err := ParseWriteSingleCoilRequest(pdu)
	if err != nil || coil.Address != 0xAC || !coil.Value {
		t.Errorf("ParseWriteSingleCoilRequest() = %+v, %v", coil, err)
	}
	if _, err := ParseWriteSingleCoilRequest([]byte{0x05, 0x00, 0xAC, 0x12, 0x34}); !errors.Is(err, ErrRange) {
		t.Errorf("coil value 0x1234 error = %v, want ErrRange", err)
	}
	resp, _ := BuildWriteSingleCoilResponse(0xAC, false)
	if echo, err := ParseWriteSingleCoilResponse(resp); err != nil || echo.Value {
		t.Errorf("ParseWriteSingleCoilResponse() = %+v, %v", echo, err)
	}

	pdu, err = BuildWriteSingleRegisterRequest(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x06, 0x00, 0x01, 0x00, 0x03}; !bytes.Equal(pdu, want) {
		t.Errorf("BuildWriteSingleRegisterRequest() = % X, want % X", pdu, want)
	}
	reg, err := ParseWriteSingleRegisterRequest(pdu)
	if err != nil || reg.Address != 1 || reg.Value != 3 {
		t.Errorf("ParseWriteSingleRegisterRequest() = %+v, %v", reg, err)
	}
	resp, _ = BuildWriteSingleRegisterResponse(1, 3)
	if _, err := ParseWriteSingleRegisterResponse(resp); err != nil {
		t.Errorf("ParseWriteSingleRegisterResponse() error = %v", err)
	}
}

func TestWriteMultipleCoils(t *testing.T) {
	values := []bool{true, false, true, true, false, false, true, true, true, false}
	pdu, err := BuildWriteMultipleCoilsRequest(0x13, values)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x0F, 0x00, 0x13, 0x00, 0x0A, 0x02, 0xCD, 0x01}
	if !bytes.Equal(pdu, want) {
		t.Errorf("BuildWriteMultipleCoilsRequest() = % X, want % X", pdu, want)
	}
	req, err := ParseWriteMultipleCoilsRequest(pdu)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(values, req.Values); diff != "" || req.Address != 0x13 {
		t.Errorf("ParseWriteMultipleCoilsRequest() mismatch (-want +got):\n%s", diff)
	}

	// byte count 3 for 10 coils
	bad := []byte{0x0F, 0x00, 0x13, 0x00, 0x0A, 0x03, 0xCD, 0x01, 0x00}
	if _, err := ParseWriteMultipleCoilsRequest(bad); !errors.Is(err, ErrFormat) {
		t.Errorf("byte count mismatch error = %v, want ErrFormat", err)
	}

	resp, err := BuildWriteMultipleCoilsResponse(0x13, 10)
	if err != nil {
		t.Fatal(err)
	}
	echo, err := ParseWriteMultipleCoilsResponse(resp)
	if err != nil || echo.Address != 0x13 || echo.Quantity != 10 {
		t.Errorf("ParseWriteMultipleCoilsResponse() = %+v, %v", echo, err)
	}
}

func TestWriteMultipleRegisters(t *testing.T) {
	pdu, err := BuildWriteMultipleRegistersRequest(1, []int{0x000A, 0x0102})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x01, 0x02}
	if !bytes.Equal(pdu, want) {
		t.Errorf("BuildWriteMultipleRegistersRequest() = % X, want % X", pdu, want)
	}
	req, err := ParseWriteMultipleRegistersRequest(pdu)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint16{0x000A, 0x0102}, req.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	bad := []byte{0x10, 0x00, 0x01, 0x00, 0x02, 0x03, 0x00, 0x0A, 0x01}
	if _, err := ParseWriteMultipleRegistersRequest(bad); !errors.Is(err, ErrFormat) {
		t.Errorf("byte count mismatch error = %v, want ErrFormat", err)
	}
	zero := []byte{0x10, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	if _, err := ParseWriteMultipleRegistersRequest(zero); !errors.Is(err, ErrRange) {
		t.Errorf("quantity 0 error = %v, want ErrRange", err)
	}

	resp, _ := BuildWriteMultipleRegistersResponse(1, 2)
	if echo, err := ParseWriteMultipleRegistersResponse(resp); err != nil || echo.Quantity != 2 {
		t.Errorf("ParseWriteMultipleRegistersResponse() = %+v, %v", echo, err)
	}
}

func TestParseFunctionMismatch(t *testing.T) {
	if _, err := ParseReadCoilsResponse([]byte{0x02, 0x01, 0x01}, 1); !errors.Is(err, ErrFormat) {
		t.Errorf("error = %v, want ErrFormat", err)
	}
	if _, err := ParseReadHoldingRegistersRequest([]byte{0x03, 0x00, 0x00, 0x00}); !errors.Is(err, ErrFormat) {
		t.Errorf("short request error = %v, want ErrFormat", err)
	}
}
