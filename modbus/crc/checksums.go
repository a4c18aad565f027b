// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import (
	"hash/crc32"

	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
	crcparams "github.com/snksoft/crc"
)

var (
	ccittTable  = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)
	kermitTable = crc16.MakeTable(crc16.CRC16_KERMIT)
	xmodemTable = crc16.MakeTable(crc16.CRC16_XMODEM)
	crc8Table   = crc8.MakeTable(crc8.CRC8)

	// OpenPGP CRC-24, RFC 4880 section 6.1.
	crc24Table = crcparams.NewTable(&crcparams.Parameters{
		Width:      24,
		Polynomial: 0x864CFB,
		Init:       0xB704CE,
	})
)

// CRC8 computes CRC-8 (poly 0x07, init 0x00).
func CRC8(data []byte) uint8 {
	return crc8.Checksum(data, crc8Table)
}

// CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func CCITT(data []byte) uint16 {
	return crc16.Checksum(data, ccittTable)
}

// Kermit computes CRC-16/KERMIT (reflected 0x1021, init 0x0000).
func Kermit(data []byte) uint16 {
	return crc16.Checksum(data, kermitTable)
}

// XModem computes CRC-16/XMODEM (poly 0x1021, init 0x0000).
func XModem(data []byte) uint16 {
	return crc16.Checksum(data, xmodemTable)
}

// CRC24 computes the OpenPGP CRC-24.
func CRC24(data []byte) uint32 {
	return uint32(crc24Table.CalculateCRC(data))
}

// CRC32 computes the IEEE CRC-32.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// JAM computes CRC-32/JAMCRC, the IEEE CRC-32 without the final inversion.
func JAM(data []byte) uint32 {
	return ^crc32.ChecksumIEEE(data)
}
