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
	"encoding/hex"
	"testing"

	"github.com/Fantom-foundation/tracevm/go/tracevm"
)

func TestKeccak256_KnownHashes(t *testing.T) {
	tests := map[string]struct {
		input []byte
		hash  string
	}{
		"empty": {
			input: []byte{},
			hash:  "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		},
		"abc": {
			input: []byte("abc"),
			hash:  "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45",
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			want, err := hex.DecodeString(test.hash)
			if err != nil {
				t.Fatalf("invalid test input: %v", err)
			}
			if got := Keccak256(test.input); got != tracevm.Hash(want) {
				t.Errorf("unexpected hash, want %x, got %v", want, got)
			}
		})
	}
}

func TestKeccak256_NilAndEmptyAgree(t *testing.T) {
	if Keccak256(nil) != Keccak256([]byte{}) {
		t.Errorf("hash of nil and empty slice should agree")
	}
}
