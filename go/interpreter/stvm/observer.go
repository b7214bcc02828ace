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
	"io"
)

//go:generate mockgen -source observer.go -destination observer_mock.go -package stvm

// Observer is notified before every step of a VM run. Observers may inspect
// the VM but must not mutate it.
type Observer interface {
	BeforeStep(vm *VM)
}

// loggingObserver writes one line per executed operation to an io.Writer.
type loggingObserver struct {
	out io.Writer
}

// NewLoggingObserver creates an observer that logs every step to the
// provided writer.
func NewLoggingObserver(out io.Writer) Observer {
	return loggingObserver{out: out}
}

func (o loggingObserver) BeforeStep(vm *VM) {
	op, found := vm.CurrentOp()
	if !found {
		return
	}
	// log format: <depth>, <pc>, <op>, <top-of-stack>\n
	top := "-empty-"
	if vm.state.stack.len() > 0 {
		top = vm.state.stack.peek().Hex()
	}
	fmt.Fprintf(o.out, "%d, %d, %v, %v\n", vm.Depth(), vm.state.pc, op.OpCode, top)
}
