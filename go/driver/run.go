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
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Fantom-foundation/tracevm/go/interpreter/stvm"
	"github.com/Fantom-foundation/tracevm/go/tracevm"
	"github.com/dsnet/golib/unitconv"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
)

var RunCmd = cli.Command{
	Action: doRun,
	Name:   "run",
	Usage:  "Run EVM byte code in a fresh VM",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "code",
			Usage:    "the contract code to run, in hex",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: "the call data, in hex",
		},
		&cli.StringFlag{
			Name:  "value",
			Usage: "the call value, decimal or 0x-prefixed hex",
			Value: "0",
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "the address the code is installed at",
			Value: "0x1000000000000000000000000000000000000000",
		},
		&cli.StringFlag{
			Name:  "caller",
			Usage: "the address of the caller and origin",
			Value: "0x2000000000000000000000000000000000000000",
		},
		&cli.Uint64Flag{
			Name:  "steps",
			Usage: "aborts the execution after the given number of steps",
			Value: 1_000_000,
		},
		&cli.BoolFlag{
			Name:  "observe",
			Usage: "log every executed operation",
		},
	},
}

func doRun(context *cli.Context) error {
	code, err := decodeHex(context.String("code"))
	if err != nil {
		return fmt.Errorf("invalid --code: %w", err)
	}
	input, err := decodeHex(context.String("input"))
	if err != nil {
		return fmt.Errorf("invalid --input: %w", err)
	}
	value, err := parseValue(context.String("value"))
	if err != nil {
		return fmt.Errorf("invalid --value: %w", err)
	}
	var address, caller tracevm.Address
	if err := address.UnmarshalText([]byte(context.String("address"))); err != nil {
		return fmt.Errorf("invalid --address: %w", err)
	}
	if err := caller.UnmarshalText([]byte(context.String("caller"))); err != nil {
		return fmt.Errorf("invalid --caller: %w", err)
	}

	vm := stvm.New(stvm.VMOpts{
		Code:     code,
		CallData: input,
		Value:    *value,
		Address:  address,
		Caller:   caller,
		Origin:   caller,
	})

	var observer stvm.Observer
	if context.Bool("observe") {
		observer = stvm.NewLoggingObserver(os.Stdout)
	}

	limit := context.Uint64("steps")
	steps := uint64(0)
	start := time.Now()
	for vm.Result() == nil && steps < limit {
		if observer != nil {
			observer.BeforeStep(vm)
		}
		vm.Step()
		steps++
	}
	elapsed := time.Since(start)

	if vm.Result() == nil {
		return fmt.Errorf("execution did not terminate within %d steps", limit)
	}

	fmt.Printf("result: %v\n", *vm.Result())
	for _, log := range vm.Logs() {
		fmt.Printf("log: %v topics=%d data=0x%x\n", log.Address, len(log.Topics), []byte(log.Data))
	}
	for _, destroyed := range vm.SelfDestructs() {
		fmt.Printf("destroyed: %v\n", destroyed)
	}
	if vm.Trace().Len() > 0 {
		fmt.Println("trace:")
		vm.Trace().Print(os.Stdout)
	}
	rate := float64(steps) / elapsed.Seconds()
	fmt.Printf("executed %d operations in %v (~%sops/s)\n",
		steps, elapsed.Round(time.Microsecond),
		unitconv.FormatPrefix(rate, unitconv.SI, 1),
	)
	return nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func parseValue(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}
