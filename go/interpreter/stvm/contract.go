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
	"golang.org/x/exp/maps"
)

// Contract is the full state of a single account: its byte code, storage,
// balance, and nonce, together with the precomputed code analysis.
//
// Storage keys holding a zero value are absent from the map; SetStorage
// maintains this invariant by deleting keys assigned zero.
type Contract struct {
	Code     tracevm.Code
	Storage  map[uint256.Int]uint256.Int
	Balance  uint256.Int
	Nonce    uint256.Int
	CodeHash tracevm.Hash
	analysis *CodeAnalysis
}

// NewContract creates an account holding the given code with zero balance,
// nonce, and storage. The code hash of an empty code is zero.
func NewContract(code tracevm.Code) *Contract {
	res := &Contract{
		Code:    code,
		Storage: make(map[uint256.Int]uint256.Int),
	}
	if len(code) > 0 {
		res.CodeHash = Keccak256(code)
	}
	res.analysis = defaultConverter.Convert(code, &res.CodeHash)
	return res
}

// Clone produces a deep copy of the contract. The code analysis is shared;
// it is immutable and derived from the code alone.
func (c *Contract) Clone() *Contract {
	res := *c
	res.Storage = maps.Clone(c.Storage)
	return &res
}

// CodeSize returns the length of the contract's code in bytes.
func (c *Contract) CodeSize() int {
	return len(c.Code)
}

// Analysis returns the precomputed decoding of the contract's code.
func (c *Contract) Analysis() *CodeAnalysis {
	return c.analysis
}

// GetStorage returns the value stored under the given key, defaulting to
// zero for absent keys.
func (c *Contract) GetStorage(key *uint256.Int) uint256.Int {
	return c.Storage[*key]
}

// SetStorage assigns the given value to the given key. Assigning zero
// removes the key, keeping zero-valued keys absent from the storage map.
func (c *Contract) SetStorage(key, value *uint256.Int) {
	if value.IsZero() {
		delete(c.Storage, *key)
		return
	}
	c.Storage[*key] = *value
}

// setCode installs new byte code, recomputing the code hash and analysis.
// Storage, balance, and nonce are preserved.
func (c *Contract) setCode(code tracevm.Code) {
	c.Code = code
	c.CodeHash = tracevm.Hash{}
	if len(code) > 0 {
		c.CodeHash = Keccak256(code)
	}
	c.analysis = defaultConverter.Convert(code, &c.CodeHash)
}
