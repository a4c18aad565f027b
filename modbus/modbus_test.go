// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"testing"
)

func TestExceptionPDU(t *testing.T) {
	e := NewException(0x83, ExceptionCodeIllegalDataAddress)
	if e.FunctionCode != 0x03 {
		t.Fatalf("function code not stripped: 0x%02X", e.FunctionCode)
	}
	pdu := e.PDU()
	if pdu.FunctionCode != 0x83 || len(pdu.Data) != 1 || pdu.Data[0] != 0x02 {
		t.Errorf("unexpected exception pdu: %+v", pdu)
	}
	if !pdu.IsException() {
		t.Error("IsException() = false")
	}

	var got *Exception
	if !errors.As(pdu.Err(), &got) {
		t.Fatalf("Err() did not return *Exception")
	}
	if got.Code != ExceptionCodeIllegalDataAddress {
		t.Errorf("Err() code = %v", got.Code)
	}
}

func TestExceptionCodeString(t *testing.T) {
	tests := []struct {
		code ExceptionCode
		want string
	}{
		{ExceptionCodeIllegalFunction, "illegal function"},
		{ExceptionCodeGatewayTargetDeviceFailedToRespond, "gateway target device failed to respond"},
		{0x07, "unknown exception 0x07"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
	if ExceptionCode(0x07).Valid() {
		t.Error("0x07 reported valid")
	}
}

func TestProtocolDataUnitBytes(t *testing.T) {
	pdu := ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x01}}
	raw := pdu.Bytes()
	if len(raw) != 3 || raw[0] != 0x03 || raw[2] != 0x01 {
		t.Fatalf("Bytes() = % X", raw)
	}
	back, err := FromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if back.FunctionCode != 0x03 || len(back.Data) != 2 {
		t.Errorf("FromBytes() = %+v", back)
	}
	if pdu.Err() != nil {
		t.Error("regular pdu reported as exception")
	}
	if _, err := FromBytes(nil); err == nil {
		t.Error("expected error for empty pdu")
	}
}
