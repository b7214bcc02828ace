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
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
)

// Operation is a single decoded operation of a contract. For PUSH
// operations, Arg holds the big-endian value of the immediate bytes;
// immediates reaching beyond the end of the code are zero-padded.
type Operation struct {
	OpCode OpCode
	Arg    uint256.Int
	Pos    int // byte offset of the opcode within the code
}

// ReadOp decodes the operation starting at the given position of the code.
func ReadOp(code []byte, pos int) Operation {
	op := OpCode(code[pos])
	res := Operation{OpCode: op, Pos: pos}
	if PUSH1 <= op && op <= PUSH32 {
		n := uint64(op.Width() - 1)
		res.Arg.SetBytes(tracevm.GetData(code, uint64(pos)+1, n))
	}
	return res
}

// CodeAnalysis is the precomputed decoding of a contract's code: the flat
// vector of its operations, and a per-byte map identifying the operation
// each code byte belongs to. Push-immediate bytes share the index of their
// PUSH operation, which allows distinguishing genuine opcode bytes from
// immediate data.
type CodeAnalysis struct {
	Ops     []Operation
	OpIxMap []int32 // len(OpIxMap) == len(code)
}

func analyze(code []byte) *CodeAnalysis {
	res := &CodeAnalysis{
		Ops:     make([]Operation, 0, len(code)),
		OpIxMap: make([]int32, len(code)),
	}
	for i := 0; i < len(code); {
		op := ReadOp(code, i)
		ix := int32(len(res.Ops))
		res.Ops = append(res.Ops, op)
		for j := i; j < i+op.OpCode.Width() && j < len(code); j++ {
			res.OpIxMap[j] = ix
		}
		i += op.OpCode.Width()
	}
	return res
}

// isOpStart reports whether the byte at the given position is the first
// byte of an operation, as opposed to immediate data of a preceding PUSH.
func (a *CodeAnalysis) isOpStart(pos int) bool {
	if pos <= 0 {
		return pos == 0 && len(a.OpIxMap) > 0
	}
	if pos >= len(a.OpIxMap) {
		return false
	}
	return a.OpIxMap[pos] != a.OpIxMap[pos-1]
}

// ConverterConfig contains the configuration options for the code analysis
// cache.
type ConverterConfig struct {
	// CacheSize is the maximum number of retained code analyses. If set to
	// 0, a default size is used. If negative, no cache is used.
	CacheSize int
}

// Converter produces and caches code analyses. Analyses are cached by code
// hash, since the same byte code is frequently re-entered through nested
// calls.
type Converter struct {
	cache *lru.Cache[tracevm.Hash, *CodeAnalysis]
}

// NewConverter creates a new code converter with the provided configuration.
func NewConverter(config ConverterConfig) (*Converter, error) {
	if config.CacheSize == 0 {
		config.CacheSize = 1 << 12
	}
	var cache *lru.Cache[tracevm.Hash, *CodeAnalysis]
	if config.CacheSize > 0 {
		var err error
		cache, err = lru.New[tracevm.Hash, *CodeAnalysis](config.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return &Converter{cache: cache}, nil
}

// Convert returns the analysis of the given code. If a code hash is
// provided, it is assumed to be the valid hash of the code and is used to
// cache the result; a nil hash bypasses the cache.
func (c *Converter) Convert(code []byte, codeHash *tracevm.Hash) *CodeAnalysis {
	if c.cache == nil || codeHash == nil {
		return analyze(code)
	}
	if res, exists := c.cache.Get(*codeHash); exists {
		return res
	}
	res := analyze(code)
	c.cache.Add(*codeHash, res)
	return res
}

var defaultConverter = func() *Converter {
	res, err := NewConverter(ConverterConfig{})
	if err != nil {
		panic(err)
	}
	return res
}()
