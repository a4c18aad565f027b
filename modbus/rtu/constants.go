// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtu encodes and decodes RTU application data units and reads
// them from a byte stream.
package rtu

const (
	MinSize = 4
	MaxSize = 256

	ExceptionSize = 5
)

// Fixed request frame sizes, CRC included.
const (
	sizeAddressQuantity = 8
	sizeBare            = 4
	sizeDeviceID        = 7
	sizeWriteComment    = 2 + 2 + 16 + 2
	sizeSetTime         = 2 + 2 + 7 + 2
)
