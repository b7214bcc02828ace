// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"

	"github.com/Fantom-foundation/tracevm/go/interpreter/stvm"
	"github.com/urfave/cli/v2"
)

var DisasmCmd = cli.Command{
	Action: doDisasm,
	Name:   "disasm",
	Usage:  "Print the decoded operations of EVM byte code",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "code",
			Usage:    "the contract code to decode, in hex",
			Required: true,
		},
	},
}

func doDisasm(context *cli.Context) error {
	code, err := decodeHex(context.String("code"))
	if err != nil {
		return fmt.Errorf("invalid --code: %w", err)
	}
	for pos := 0; pos < len(code); {
		op := stvm.ReadOp(code, pos)
		if stvm.PUSH1 <= op.OpCode && op.OpCode <= stvm.PUSH32 {
			fmt.Printf("%6d: %v %v\n", pos, op.OpCode, op.Arg.Hex())
		} else {
			fmt.Printf("%6d: %v\n", pos, op.OpCode)
		}
		pos += op.OpCode.Width()
	}
	return nil
}
