// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

// ByteCount returns the number of bytes needed to pack quantity bits.
func ByteCount(quantity int) int {
	return (quantity + 7) / 8
}

// PackBits packs values byte-major, LSB first: bit 0 of the first byte is
// the first value.
func PackBits(values []bool) []byte {
	packed := make([]byte, ByteCount(len(values)))
	for i, v := range values {
		if v {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	return packed
}

// UnpackBits is the inverse of PackBits. It returns exactly quantity values.
func UnpackBits(packed []byte, quantity int) []bool {
	values := make([]bool, quantity)
	for i := 0; i < quantity && i/8 < len(packed); i++ {
		values[i] = (packed[i/8]>>uint(i%8))&1 == 1
	}
	return values
}
