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

import "github.com/holiman/uint256"

// CurrentOp decodes and returns the operation the pc points at, or false if
// the pc has run past the end of the code.
func (vm *VM) CurrentOp() (Operation, bool) {
	ix, found := vm.CurrentOpIndex()
	if !found {
		return Operation{}, false
	}
	return vm.state.analysis.Ops[ix], true
}

// CurrentOpIndex returns the index of the current operation within the
// frame's operation vector, or false if the VM has terminated or the pc has
// run past the end of the code.
func (vm *VM) CurrentOpIndex() (int, bool) {
	pc := vm.state.pc
	if vm.result != nil || pc < 0 || pc >= len(vm.state.code) {
		return 0, false
	}
	return int(vm.state.analysis.OpIxMap[pc]), true
}

// OpParams names the stack parameters of the operation the pc points at,
// for presentation purposes. Operations without named parameters yield an
// empty map, as does a stack too shallow to carry them.
func (vm *VM) OpParams() map[string]uint256.Int {
	op, found := vm.CurrentOp()
	if !found {
		return nil
	}
	var names []string
	switch op.OpCode {
	case CREATE:
		names = []string{"value", "offset", "size"}
	case CALL:
		names = []string{"gas", "to", "value", "in-offset", "in-size", "out-offset", "out-size"}
	case SSTORE:
		names = []string{"index", "value"}
	case CODECOPY:
		names = []string{"mem-offset", "code-offset", "code-size"}
	case SHA3:
		names = []string{"offset", "size"}
	case CALLDATACOPY:
		names = []string{"to", "from", "size"}
	case EXTCODECOPY:
		names = []string{"account", "mem-offset", "code-offset", "code-size"}
	case RETURN:
		names = []string{"offset", "size"}
	case JUMPI:
		names = []string{"destination", "condition"}
	default:
		return map[string]uint256.Int{}
	}
	res := make(map[string]uint256.Int, len(names))
	if vm.state.stack.len() < len(names) {
		return res
	}
	for i, name := range names {
		res[name] = *vm.state.stack.peekN(i)
	}
	return res
}
