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
	"bytes"
	"testing"

	"pgregory.net/rand"
)

func TestOpCode_Width(t *testing.T) {
	tests := []struct {
		op    OpCode
		width int
	}{
		{STOP, 1},
		{ADD, 1},
		{JUMPDEST, 1},
		{PUSH1, 2},
		{PUSH2, 3},
		{PUSH31, 32},
		{PUSH32, 33},
		{DUP1, 1},
		{SWAP16, 1},
		{LOG4, 1},
		{SELFDESTRUCT, 1},
	}
	for _, test := range tests {
		if got := test.op.Width(); got != test.width {
			t.Errorf("width of %v is %d, want %d", test.op, got, test.width)
		}
	}
}

func TestReadOp_DecodesPushImmediates(t *testing.T) {
	tests := map[string]struct {
		code []byte
		pos  int
		op   OpCode
		arg  uint64
	}{
		"plain op": {
			code: []byte{byte(ADD)},
			op:   ADD,
		},
		"push1": {
			code: []byte{byte(PUSH1), 0x2a},
			op:   PUSH1,
			arg:  0x2a,
		},
		"push2 big endian": {
			code: []byte{byte(PUSH2), 0x12, 0x34},
			op:   PUSH2,
			arg:  0x1234,
		},
		"push after offset": {
			code: []byte{byte(STOP), byte(PUSH1), 0x07},
			pos:  1,
			op:   PUSH1,
			arg:  0x07,
		},
		"truncated push is zero padded": {
			code: []byte{byte(PUSH4), 0x12, 0x34},
			op:   PUSH4,
			arg:  0x12340000,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			op := ReadOp(test.code, test.pos)
			if op.OpCode != test.op {
				t.Fatalf("unexpected op, want %v, got %v", test.op, op.OpCode)
			}
			if op.Pos != test.pos {
				t.Errorf("unexpected position, want %d, got %d", test.pos, op.Pos)
			}
			if op.Arg.Uint64() != test.arg {
				t.Errorf("unexpected immediate, want %x, got %x", test.arg, op.Arg.Uint64())
			}
		})
	}
}

func TestAnalyze_OpIxMapLabelsImmediateBytes(t *testing.T) {
	code := []byte{
		byte(PUSH2), 0x5b, 0x5b, // op 0, covering bytes 0-2
		byte(JUMPDEST),        // op 1
		byte(PUSH1), byte(PC), // op 2, covering bytes 4-5
		byte(STOP), // op 3
	}
	analysis := analyze(code)

	want := []int32{0, 0, 0, 1, 2, 2, 3}
	if len(analysis.OpIxMap) != len(want) {
		t.Fatalf("unexpected op index map length, want %d, got %d", len(want), len(analysis.OpIxMap))
	}
	for i, wantIx := range want {
		if got := analysis.OpIxMap[i]; got != wantIx {
			t.Errorf("opIxMap[%d] = %d, want %d", i, got, wantIx)
		}
	}
	if len(analysis.Ops) != 4 {
		t.Errorf("unexpected number of operations, want 4, got %d", len(analysis.Ops))
	}

	// Bytes share an index exactly if they belong to the same operation.
	for i := range analysis.OpIxMap {
		for j := range analysis.OpIxMap {
			sameOp := analysis.OpIxMap[i] == analysis.OpIxMap[j]
			op := analysis.Ops[analysis.OpIxMap[i]]
			inRange := op.Pos <= j && j < op.Pos+op.OpCode.Width()
			if sameOp != inRange {
				t.Errorf("bytes %d and %d: same index %t, same operation %t", i, j, sameOp, inRange)
			}
		}
	}
}

func TestAnalyze_IsOpStartRejectsImmediateBytes(t *testing.T) {
	code := []byte{byte(PUSH1), byte(JUMPDEST), byte(JUMPDEST)}
	analysis := analyze(code)

	if !analysis.isOpStart(0) {
		t.Errorf("byte 0 should be an operation start")
	}
	if analysis.isOpStart(1) {
		t.Errorf("byte 1 is push-immediate data, not an operation start")
	}
	if !analysis.isOpStart(2) {
		t.Errorf("byte 2 should be an operation start")
	}
	if analysis.isOpStart(3) {
		t.Errorf("byte 3 is out of range")
	}
}

// encode re-serializes a decoded operation, the inverse of ReadOp.
func encode(op Operation) []byte {
	res := []byte{byte(op.OpCode)}
	if PUSH1 <= op.OpCode && op.OpCode <= PUSH32 {
		n := op.OpCode.Width() - 1
		imm := op.Arg.Bytes32()
		res = append(res, imm[32-n:]...)
	}
	return res
}

func TestAnalyze_RandomCodeRoundTrips(t *testing.T) {
	rnd := rand.New(0)
	for i := 0; i < 100; i++ {
		code := make([]byte, rnd.Intn(200))
		rnd.Read(code)

		// Cut trailing immediates that would be zero-padded on decode.
		analysis := analyze(code)
		if len(analysis.Ops) == 0 {
			continue
		}
		last := analysis.Ops[len(analysis.Ops)-1]
		if last.Pos+last.OpCode.Width() > len(code) {
			code = code[:last.Pos]
			analysis = analyze(code)
		}

		reencoded := []byte{}
		for _, op := range analysis.Ops {
			reencoded = append(reencoded, encode(op)...)
		}
		if !bytes.Equal(code, reencoded) {
			t.Fatalf("re-encoded code differs,\nwant %x,\ngot  %x", code, reencoded)
		}
	}
}

func TestConverter_CachesAnalysesByCodeHash(t *testing.T) {
	converter, err := NewConverter(ConverterConfig{CacheSize: 16})
	if err != nil {
		t.Fatalf("failed to create converter: %v", err)
	}
	code := []byte{byte(PUSH1), 0x01, byte(STOP)}
	hash := Keccak256(code)

	first := converter.Convert(code, &hash)
	second := converter.Convert(code, &hash)
	if first != second {
		t.Errorf("cached conversion should be reused")
	}

	uncached := converter.Convert(code, nil)
	if uncached == first {
		t.Errorf("conversion without hash should bypass the cache")
	}
}

func TestConverter_NegativeCacheSizeDisablesCache(t *testing.T) {
	converter, err := NewConverter(ConverterConfig{CacheSize: -1})
	if err != nil {
		t.Fatalf("failed to create converter: %v", err)
	}
	code := []byte{byte(STOP)}
	hash := Keccak256(code)
	if converter.Convert(code, &hash) == converter.Convert(code, &hash) {
		t.Errorf("conversions should not be cached")
	}
}
