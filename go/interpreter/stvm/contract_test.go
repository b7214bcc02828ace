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
	"testing"

	"github.com/Fantom-foundation/tracevm/go/tracevm"
	"github.com/holiman/uint256"
)

func TestNewContract_HashesNonEmptyCode(t *testing.T) {
	code := tracevm.Code{byte(PUSH1), 0x01, byte(STOP)}
	contract := NewContract(code)

	if want, got := Keccak256(code), contract.CodeHash; want != got {
		t.Errorf("unexpected code hash, want %v, got %v", want, got)
	}
	if want, got := len(code), contract.CodeSize(); want != got {
		t.Errorf("unexpected code size, want %d, got %d", want, got)
	}
	if want, got := len(code), len(contract.Analysis().OpIxMap); want != got {
		t.Errorf("op index map does not cover the code, want %d entries, got %d", want, got)
	}
}

func TestNewContract_EmptyCodeHasZeroHash(t *testing.T) {
	contract := NewContract(nil)
	if contract.CodeHash != (tracevm.Hash{}) {
		t.Errorf("unexpected code hash for empty code: %v", contract.CodeHash)
	}
}

func TestContract_SetStorageKeepsZeroKeysAbsent(t *testing.T) {
	contract := NewContract(nil)
	key := uint256.NewInt(1)

	contract.SetStorage(key, uint256.NewInt(42))
	if got := contract.GetStorage(key); got.Uint64() != 42 {
		t.Fatalf("unexpected storage value, want 42, got %d", got.Uint64())
	}

	contract.SetStorage(key, uint256.NewInt(0))
	if _, found := contract.Storage[*key]; found {
		t.Errorf("zero-valued key should be absent from storage")
	}
	if got := contract.GetStorage(key); !got.IsZero() {
		t.Errorf("absent key should read as zero, got %d", got.Uint64())
	}
}

func TestContract_CloneIsIndependent(t *testing.T) {
	contract := NewContract(nil)
	contract.SetStorage(uint256.NewInt(1), uint256.NewInt(2))
	contract.Balance = *uint256.NewInt(100)

	clone := contract.Clone()
	clone.SetStorage(uint256.NewInt(1), uint256.NewInt(3))
	clone.Balance = *uint256.NewInt(7)

	if got := contract.GetStorage(uint256.NewInt(1)); got.Uint64() != 2 {
		t.Errorf("clone mutation leaked into original storage, got %d", got.Uint64())
	}
	if got := contract.Balance.Uint64(); got != 100 {
		t.Errorf("clone mutation leaked into original balance, got %d", got)
	}
}

func TestContract_SetCodePreservesStorageAndBalance(t *testing.T) {
	contract := NewContract(nil)
	contract.SetStorage(uint256.NewInt(1), uint256.NewInt(2))
	contract.Balance = *uint256.NewInt(100)

	code := tracevm.Code{byte(PUSH1), 0x00}
	contract.setCode(code)

	if want, got := Keccak256(code), contract.CodeHash; want != got {
		t.Errorf("unexpected code hash, want %v, got %v", want, got)
	}
	if got := contract.GetStorage(uint256.NewInt(1)); got.Uint64() != 2 {
		t.Errorf("storage not preserved, got %d", got.Uint64())
	}
	if got := contract.Balance.Uint64(); got != 100 {
		t.Errorf("balance not preserved, got %d", got)
	}
}
