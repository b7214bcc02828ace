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
	"fmt"

	"github.com/Fantom-foundation/tracevm/go/tracevm"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// createAddress derives the address of a contract created by the given
// sender at the given nonce: the low 20 bytes of keccak(rlp([sender, nonce])).
func createAddress(sender tracevm.Address, nonce *uint256.Int) tracevm.Address {
	data, err := rlp.EncodeToBytes([]interface{}{sender, nonce})
	if err != nil {
		panic(fmt.Sprintf("failed to RLP-encode creation address input: %v", err))
	}
	hash := Keccak256(data)
	var res tracevm.Address
	copy(res[:], hash[12:])
	return res
}
