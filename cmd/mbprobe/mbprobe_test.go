// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ffutop/modbus-emulator/internal/bus"
	"github.com/ffutop/modbus-emulator/internal/config"
	"github.com/ffutop/modbus-emulator/internal/emulator"
	"github.com/ffutop/modbus-emulator/internal/emulator/model"
	"github.com/ffutop/modbus-emulator/modbus"
	"github.com/ffutop/modbus-emulator/transport/rtu"
	"github.com/ffutop/modbus-emulator/transport/rtuovertcp"
	"github.com/ffutop/modbus-emulator/transport/tcp"
	"github.com/google/go-cmp/cmp"
)

func startEmulator(t *testing.T) (*bus.Bus, string) {
	t.Helper()
	b := bus.New("probe", nil)
	e, err := emulator.New(emulator.Options{UnitAddress: 1, Lock: b.Locker()})
	if err != nil {
		t.Fatal(err)
	}
	e.Connect()
	if err := b.Add(e); err != nil {
		t.Fatal(err)
	}

	s := tcp.NewServer("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx, b)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	for i := 0; i < 100 && s.Addr() == nil; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Addr() == nil {
		t.Fatal("server did not start")
	}
	return b, "tcp:" + s.Addr().String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	out = &buf
	t.Cleanup(func() { out = os.Stdout })
	_, err := newParser().ParseArgs(args)
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	b, target := startEmulator(t)
	b.Do(1, func(e *emulator.Emulator) {
		err := e.AddRegisters([]emulator.RegisterDefinition{
			{Kind: model.KindHoldingRegister, Address: 0, Values: []int{1, 2}},
			{Kind: model.KindInputRegister, Address: 4, Values: []int{0xABCD}},
			{Kind: model.KindDiscreteInput, Address: 1, Values: []int{1}},
		})
		if err != nil {
			t.Fatal(err)
		}
		e.AddFile("LOG.TXT", 1024)
		e.SetDeviceObject(0x00, "ACME")
		e.SetDeviceObject(0x01, "E1")
		e.SetDeviceObject(0x02, "1.0")
	})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			"Holding",
			[]string{"holding", "0:2"},
			"holding[0] = 1 (0x0001)\nholding[1] = 2 (0x0002)\n",
		},
		{
			"MultipleRanges",
			[]string{"holding", "1", "0"},
			"holding[1] = 2 (0x0002)\nholding[0] = 1 (0x0001)\n",
		},
		{
			"Input",
			[]string{"input", "4"},
			"input[4] = 43981 (0xABCD)\n",
		},
		{
			"Discretes",
			[]string{"discretes", "0:3"},
			"discrete[0] = 0\ndiscrete[1] = 1\ndiscrete[2] = 0\n",
		},
		{
			"WriteRegisters",
			[]string{"write-register", "10", "0x10", "20"},
			"wrote 2 register(s) at 10\n",
		},
		{
			"ReadBackRegisters",
			[]string{"holding", "10:2"},
			"holding[10] = 16 (0x0010)\nholding[11] = 20 (0x0014)\n",
		},
		{
			"WriteCoil",
			[]string{"write-coil", "2", "on"},
			"wrote 1 coil(s) at 2\n",
		},
		{
			"WriteCoils",
			[]string{"write-coil", "4", "1", "off", "true"},
			"wrote 3 coil(s) at 4\n",
		},
		{
			"Coils",
			[]string{"coils", "2:5"},
			"coil[2] = 1\ncoil[3] = 0\ncoil[4] = 1\ncoil[5] = 0\ncoil[6] = 1\n",
		},
		{
			"WriteComment",
			[]string{"comment", "--set", "pump 1"},
			"",
		},
		{
			"Comment",
			[]string{"comment"},
			"PUMP 1\n",
		},
		{
			"Ident",
			[]string{"ident"},
			"conformity level: 0x81\n0x00 VendorName: ACME\n0x01 ProductCode: E1\n0x02 MajorMinorRevision: 1.0\n",
		},
		{
			"IdentSpecific",
			[]string{"ident", "--level", "specific", "--object", "1"},
			"conformity level: 0x81\n0x01 ProductCode: E1\n",
		},
		{
			"FileOpen",
			[]string{"file", "open", "LOG.TXT"},
			"LOG.TXT: 1024 bytes\n",
		},
		{
			"FileLengthMissing",
			[]string{"file", "length", "NONE.TXT"},
			"NONE.TXT: not found\n",
		},
		{
			"FileClose",
			[]string{"file", "close"},
			"",
		},
		{
			"Restart",
			[]string{"restart"},
			"",
		},
		{
			"SetTime",
			[]string{"time", "--set", "2000-01-01 00:00:00"},
			"clock set to 2000-01-01 00:00:00\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, append([]string{"-t", target, "-u", "1"}, tt.args...)...)
			if err != nil {
				t.Fatalf("run(%v) error = %v", tt.args, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}

	got, err := run(t, "-t", target, "time")
	if err != nil || !strings.HasPrefix(got, "2000-01-01 00:00:") {
		t.Errorf("time = %q, %v", got, err)
	}
	b.Do(1, func(e *emulator.Emulator) {
		if e.Restarts() != 1 || e.OpenFile() != "" {
			t.Errorf("restarts = %d, open file = %q", e.Restarts(), e.OpenFile())
		}
	})
}

func TestCommandErrors(t *testing.T) {
	b, target := startEmulator(t)
	b.Do(1, func(e *emulator.Emulator) {
		if err := e.SetException(modbus.FuncCodeReadHoldingRegisters, 3, modbus.ExceptionCodeServerDeviceBusy); err != nil {
			t.Fatal(err)
		}
	})

	_, err := run(t, "-t", target, "holding", "0:5")
	var exc *modbus.Exception
	if !errors.As(err, &exc) || exc.Code != modbus.ExceptionCodeServerDeviceBusy {
		t.Errorf("holding error = %v, want server device busy", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"QuantityTooLarge", []string{"-t", target, "holding", "0:126"}},
		{"BadRange", []string{"-t", target, "holding", "1:2:3"}},
		{"MissingAddress", []string{"-t", target, "holding"}},
		{"BadCoilValue", []string{"-t", target, "write-coil", "0", "maybe"}},
		{"BadRegisterValue", []string{"-t", target, "write-register", "0", "x"}},
		{"ReadBroadcast", []string{"-t", target, "-u", "0", "holding", "0"}},
		{"UnitOutOfRange", []string{"-t", target, "-u", "248", "holding", "0"}},
		{"UnknownTarget", []string{"-t", "udp:host:1", "holding", "0"}},
		{"MissingTarget", []string{"holding", "0"}},
		{"BadTime", []string{"-t", target, "time", "--set", "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("run(%v) error = nil", tt.args)
			}
		})
	}
}

func TestBroadcastWrite(t *testing.T) {
	b, target := startEmulator(t)

	got, err := run(t, "-t", target, "-u", "0", "write-register", "7", "9")
	if err != nil || got != "" {
		t.Fatalf("broadcast = %q, %v", got, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		var v uint16
		b.Do(1, func(e *emulator.Emulator) { v = e.GetHoldingRegister(7) })
		if v == 9 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("broadcast write did not land")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDial(t *testing.T) {
	tests := []struct {
		target string
		check  func(t *testing.T, v interface{})
	}{
		{"tcp:127.0.0.1:502", func(t *testing.T, v interface{}) {
			c, ok := v.(*tcp.Client)
			if !ok || c.Address != "127.0.0.1:502" || c.Timeout != time.Second {
				t.Errorf("dial = %#v", v)
			}
		}},
		{"rtu-over-tcp:gw:4001", func(t *testing.T, v interface{}) {
			if c, ok := v.(*rtuovertcp.Client); !ok || c.Address != "gw:4001" {
				t.Errorf("dial = %#v", v)
			}
		}},
		{"rtu:/dev/ttyUSB0:9600", func(t *testing.T, v interface{}) {
			c, ok := v.(*rtu.Client)
			if !ok || c.Config.Address != "/dev/ttyUSB0" || c.Config.BaudRate != 9600 {
				t.Errorf("dial = %#v", v)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			ds, err := dial(tt.target, time.Second)
			if err != nil {
				t.Fatalf("dial() error = %v", err)
			}
			tt.check(t, ds)
		})
	}

	for _, bad := range []string{"tcp", "tcp:", "serial:/dev/x", "rtu::9600"} {
		if _, err := dial(bad, time.Second); err == nil {
			t.Errorf("dial(%q) error = nil", bad)
		}
	}
}

func TestParseSerial(t *testing.T) {
	tests := []struct {
		access    string
		want    config.SerialConfig
		wantErr bool
	}{
		{
			access: "/dev/ttyS0",
			want: config.SerialConfig{Device: "/dev/ttyS0", BaudRate: 19200, DataBits: 8, Parity: "E", StopBits: 1},
		},
		{
			access: "/dev/ttyS0:115200:n:2",
			want: config.SerialConfig{Device: "/dev/ttyS0", BaudRate: 115200, DataBits: 8, Parity: "N", StopBits: 2},
		},
		{access: "/dev/ttyS0:fast", wantErr: true},
		{access: "/dev/ttyS0:9600:X", wantErr: true},
		{access: "/dev/ttyS0:9600:E:3", wantErr: true},
		{access: "/dev/ttyS0:9600:E:1:extra", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.access, func(t *testing.T) {
			got, err := parseSerial(tt.access)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSerial() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseSerial() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
