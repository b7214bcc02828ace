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

func TestCreateAddress_MatchesKnownDerivations(t *testing.T) {
	var sender tracevm.Address
	if err := sender.UnmarshalText([]byte("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")); err != nil {
		t.Fatalf("invalid test input: %v", err)
	}

	tests := map[string]struct {
		nonce uint64
		want  string
	}{
		"nonce 0": {0, "0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d"},
		"nonce 1": {1, "0x343c43a37d37dff08ae8c4a11544c718abb4fcf8"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var want tracevm.Address
			if err := want.UnmarshalText([]byte(test.want)); err != nil {
				t.Fatalf("invalid test input: %v", err)
			}
			got := createAddress(sender, uint256.NewInt(test.nonce))
			if got != want {
				t.Errorf("unexpected address, want %v, got %v", want, got)
			}
		})
	}
}

func TestCreateAddress_DependsOnSenderAndNonce(t *testing.T) {
	a := tracevm.Address{1}
	b := tracevm.Address{2}

	if createAddress(a, uint256.NewInt(0)) == createAddress(b, uint256.NewInt(0)) {
		t.Errorf("addresses of different senders should differ")
	}
	if createAddress(a, uint256.NewInt(0)) == createAddress(a, uint256.NewInt(1)) {
		t.Errorf("addresses of different nonces should differ")
	}
	if createAddress(a, uint256.NewInt(0)) != createAddress(a, uint256.NewInt(0)) {
		t.Errorf("address derivation should be deterministic")
	}
}
