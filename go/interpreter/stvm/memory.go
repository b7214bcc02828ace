// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stvm

import (
	"github.com/Fantom-foundation/tracevm/go/tracevm"
	"github.com/holiman/uint256"
)

// Memory is the byte-addressable, zero-extending memory of a call frame.
// Reads beyond the backing store yield zero bytes without allocating;
// writes grow the store as needed. The observable memory size is a
// high-water mark measured in 32-byte words, maintained through
// accessRange; it never shrinks and only grows for accesses of non-zero
// length. This mirrors the EVM memory expansion rule where only the largest
// region ever touched matters for MSIZE.
type Memory struct {
	store []byte
	words uint64
}

func NewMemory() *Memory {
	return &Memory{}
}

// accessRange registers the access of the given memory region, updating the
// high-water mark. A size of zero is a no-op, independently of the offset.
func (m *Memory) accessRange(offset, size uint64) {
	if size == 0 {
		return
	}
	if words := tracevm.SizeInWords(offset + size); words > m.words {
		m.words = words
	}
}

// sizeInWords returns the high-water mark of accessed memory, in 32-byte
// words. This is the value reported by MSIZE (scaled by 32).
func (m *Memory) sizeInWords() uint64 {
	return m.words
}

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// ensure grows the backing store to cover at least the given size, rounded
// up to full words.
func (m *Memory) ensure(size uint64) {
	needed := tracevm.SizeInWords(size) * 32
	if m.length() < needed {
		m.store = append(m.store, make([]byte, needed-m.length())...)
	}
}

// setByte writes a single byte at the given offset, growing the store as
// needed.
func (m *Memory) setByte(offset uint64, value byte) {
	m.ensure(offset + 1)
	m.store[offset] = value
}

// setWord writes the 32-byte big-endian encoding of the given value at the
// given offset.
func (m *Memory) setWord(offset uint64, value *uint256.Int) {
	m.ensure(offset + 32)
	data := value.Bytes32()
	copy(m.store[offset:offset+32], data[:])
}

// set copies the given bytes to the memory at the given offset, growing the
// store as needed.
func (m *Memory) set(offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	m.ensure(offset + uint64(len(data)))
	copy(m.store[offset:], data)
}

// readWord reads the 32-byte word at the given offset into the provided
// target, zero-extending past the end of the store.
func (m *Memory) readWord(offset uint64, target *uint256.Int) {
	var buf [32]byte
	m.copyData(offset, buf[:])
	target.SetBytes32(buf[:])
}

// slice returns a copy of the memory region [offset, offset+size),
// zero-extended past the end of the store.
func (m *Memory) slice(offset, size uint64) []byte {
	res := make([]byte, size)
	m.copyData(offset, res)
	return res
}

// writeRange copies size bytes from src, starting at srcOffset, to the
// memory at dstOffset. Reads beyond the end of src yield zero bytes.
func (m *Memory) writeRange(src []byte, srcOffset, dstOffset, size uint64) {
	if size == 0 {
		return
	}
	m.set(dstOffset, tracevm.GetData(src, srcOffset, size))
}

// copyData copies data from the memory, starting at the given offset, to
// the target slice, padding with zeros where the store ends.
func (m *Memory) copyData(offset uint64, target []byte) {
	if m.length() < offset {
		copy(target, make([]byte, len(target)))
		return
	}

	// Copy what is available.
	covered := copy(target, m.store[offset:])

	// Pad the rest
	if covered < len(target) {
		copy(target[covered:], make([]byte, len(target)-covered))
	}
}
