// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package bus

import (
	"bytes"
	"testing"

	"github.com/ffutop/modbus-emulator/internal/emulator"
	"github.com/ffutop/modbus-emulator/modbus/crc"
	"github.com/google/go-cmp/cmp"
)

func newBus(t *testing.T, ids ...int) *Bus {
	t.Helper()
	b := New("test", nil)
	for _, id := range ids {
		e, err := emulator.New(emulator.Options{UnitAddress: id, Lock: b.Locker()})
		if err != nil {
			t.Fatal(err)
		}
		e.Connect()
		if err := b.Add(e); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(b.Close)
	return b
}

func TestParseSlaveIDs(t *testing.T) {
	tests := []struct {
		input   string
		want    []byte
		wantErr bool
	}{
		{"1", []byte{1}, false},
		{"1, 2,5-7", []byte{1, 2, 5, 6, 7}, false},
		{" 10 - 12 ,", []byte{10, 11, 12}, false},
		{"", nil, false},
		{"0", nil, true},
		{"248", nil, true},
		{"7-3", nil, true},
		{"1-2-3", nil, true},
		{"x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSlaveIDs(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSlaveIDs(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSlaveIDs(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestRouting(t *testing.T) {
	b := newBus(t, 1, 2)
	if err := b.Do(2, func(e *emulator.Emulator) { e.SetHoldingRegister(0, 0xBEEF) }); err != nil {
		t.Fatal(err)
	}

	resp := b.HandleRequest(crc.Append([]byte{0x02, 0x03, 0x00, 0x00, 0x00, 0x01}))
	want := crc.Append([]byte{0x02, 0x03, 0x02, 0xBE, 0xEF})
	if !bytes.Equal(resp, want) {
		t.Errorf("unit 2 reply = % X, want % X", resp, want)
	}

	resp = b.HandleRequest(crc.Append([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}))
	want = crc.Append([]byte{0x01, 0x03, 0x02, 0x00, 0x00})
	if !bytes.Equal(resp, want) {
		t.Errorf("unit 1 reply = % X, want % X", resp, want)
	}

	if resp := b.HandleRequest(crc.Append([]byte{0x09, 0x03, 0x00, 0x00, 0x00, 0x01})); resp != nil {
		t.Errorf("unknown unit reply = % X, want nil", resp)
	}
	if resp := b.HandleRequest(nil); resp != nil {
		t.Errorf("empty frame reply = % X, want nil", resp)
	}
}

func TestBroadcast(t *testing.T) {
	b := newBus(t, 1, 2, 3)
	resp := b.HandleRequest(crc.Append([]byte{0x00, 0x06, 0x00, 0x05, 0x12, 0x34}))
	if resp != nil {
		t.Errorf("broadcast reply = % X, want nil", resp)
	}
	for _, id := range b.Units() {
		var got uint16
		b.Do(id, func(e *emulator.Emulator) { got = e.GetHoldingRegister(5) })
		if got != 0x1234 {
			t.Errorf("unit %d holding[5] = %04X, want 1234", id, got)
		}
	}
}

func TestAdd(t *testing.T) {
	b := newBus(t, 1)
	dup, _ := emulator.New(emulator.Options{UnitAddress: 1, Lock: b.Locker()})
	if err := b.Add(dup); err == nil {
		t.Error("Add() accepted a duplicate unit")
	}
	zero, _ := emulator.New(emulator.Options{UnitAddress: 0, Lock: b.Locker()})
	if err := b.Add(zero); err == nil {
		t.Error("Add() accepted the broadcast address")
	}
	if err := b.Do(7, func(*emulator.Emulator) {}); err == nil {
		t.Error("Do() on a missing unit succeeded")
	}
	if diff := cmp.Diff([]byte{1}, b.Units()); diff != "" {
		t.Errorf("Units() mismatch (-want +got):\n%s", diff)
	}
}
