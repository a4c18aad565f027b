// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements the Modbus CRC16 used for RTU framing, plus a family
// of general purpose checksums sharing the same calling convention.
package crc

// modbusTable is the reflected 0x8005 (0xA001) lookup table.
var modbusTable = makeReflectedTable16(0xA001)

func makeReflectedTable16(poly uint16) [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		c := uint16(i)
		for j := 0; j < 8; j++ {
			if c&0x0001 != 0 {
				c = (c >> 1) ^ poly
			} else {
				c >>= 1
			}
		}
		table[i] = c
	}
	return table
}

// CRC is a streaming Modbus CRC16 calculator.
type CRC struct {
	value uint16
}

// Reset sets the initial value 0xFFFF.
func (crc *CRC) Reset() *CRC {
	crc.value = 0xFFFF
	return crc
}

// PushByte feeds a single byte.
func (crc *CRC) PushByte(b byte) *CRC {
	crc.value = (crc.value >> 8) ^ modbusTable[byte(crc.value)^b]
	return crc
}

// PushBytes feeds a byte slice.
func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.PushByte(b)
	}
	return crc
}

// Value returns the checksum. On the wire the low byte goes first.
func (crc *CRC) Value() uint16 {
	return crc.value
}

// Modbus returns the CRC16 of data as it is transmitted: low byte first.
func Modbus(data []byte) [2]byte {
	var c CRC
	v := c.Reset().PushBytes(data).Value()
	return [2]byte{byte(v), byte(v >> 8)}
}

// Append appends the Modbus CRC trailer of frame to frame.
func Append(frame []byte) []byte {
	sum := Modbus(frame)
	return append(frame, sum[0], sum[1])
}

// Valid reports whether the last two bytes of frame are the CRC of the rest.
func Valid(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	sum := Modbus(frame[:n])
	return frame[n] == sum[0] && frame[n+1] == sum[1]
}
