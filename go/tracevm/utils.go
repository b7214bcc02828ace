// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package tracevm

import "math"

// SizeInWords returns the number of 32-byte words required to store the
// given number of bytes, checking that size+31 does not overflow uint64.
func SizeInWords(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}

// GetData returns a slice of the given size from data, starting at the
// given offset. Reads beyond the end of data yield zero bytes.
func GetData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	res := make([]byte, int(size))
	copy(res, data[start:end])
	return res
}
