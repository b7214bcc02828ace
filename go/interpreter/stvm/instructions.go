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
	"math"

	"github.com/Fantom-foundation/tracevm/go/tracevm"
	"github.com/holiman/uint256"
)

// gasPlaceholder is the constant pushed by GAS; gas is not metered in this
// interpreter.
const gasPlaceholder = uint64(0xffffffffffff)

// --- stack and control flow ---

func opPush(vm *VM, n int) {
	// The pc is already advanced past the immediates, which end at pc.
	// Immediates reaching beyond the code are zero-padded on the right.
	start := uint64(vm.state.pc - n)
	data := tracevm.GetData(vm.state.code, start, uint64(n))
	vm.state.stack.pushUndefined().SetBytes(data)
}

func opPc(vm *VM) {
	// PC pushes the counter of the operation itself, one before the
	// already advanced pc.
	vm.state.stack.pushUndefined().SetUint64(uint64(vm.state.pc - 1))
}

// checkJump validates a jump target: it must lie within the code, hold a
// JUMPDEST byte, and be a genuine operation start rather than a byte inside
// push-immediate data.
func checkJump(vm *VM, destination *uint256.Int) error {
	if !destination.IsUint64() {
		return tracevm.ErrBadJumpDestination
	}
	target := destination.Uint64()
	code := vm.state.code
	if target >= uint64(len(code)) || OpCode(code[target]) != JUMPDEST {
		return tracevm.ErrBadJumpDestination
	}
	if !vm.state.analysis.isOpStart(int(target)) {
		return tracevm.ErrBadJumpDestination
	}
	vm.state.pc = int(target)
	return nil
}

func opJump(vm *VM) error {
	return checkJump(vm, vm.state.stack.pop())
}

func opJumpi(vm *VM) error {
	destination := vm.state.stack.pop()
	condition := vm.state.stack.pop()
	if condition.IsZero() {
		return nil
	}
	return checkJump(vm, destination)
}

// --- arithmetic ---

func opAdd(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.Add(a, b)
}

func opSub(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.Sub(a, b)
}

func opMul(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.Mul(a, b)
}

func opDiv(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.Div(a, b)
}

func opSDiv(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.SDiv(a, b)
}

func opMod(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.Mod(a, b)
}

func opSMod(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.SMod(a, b)
}

func opAddMod(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.pop()
	n := vm.state.stack.peek()
	n.AddMod(a, b, n)
}

func opMulMod(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.pop()
	n := vm.state.stack.peek()
	n.MulMod(a, b, n)
}

func opExp(vm *VM) {
	base, exponent := vm.state.stack.pop(), vm.state.stack.peek()
	exponent.Exp(base, exponent)
}

func opSignExtend(vm *VM) {
	back, num := vm.state.stack.pop(), vm.state.stack.peek()
	num.ExtendSign(num, back)
}

// --- comparisons and bit operations ---

func opLt(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opGt(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSlt(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSgt(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opEq(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opIszero(vm *VM) {
	top := vm.state.stack.peek()
	if top.IsZero() {
		top.SetOne()
	} else {
		top.Clear()
	}
}

func opAnd(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.And(a, b)
}

func opOr(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.Or(a, b)
}

func opXor(vm *VM) {
	a := vm.state.stack.pop()
	b := vm.state.stack.peek()
	b.Xor(a, b)
}

func opNot(vm *VM) {
	a := vm.state.stack.peek()
	a.Not(a)
}

func opByte(vm *VM) {
	th, val := vm.state.stack.pop(), vm.state.stack.peek()
	val.Byte(th)
}

// --- hashing ---

func opSha3(vm *VM) error {
	offset, size := vm.state.stack.pop(), vm.state.stack.peek()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	vm.state.memory.accessRange(offset.Uint64(), size.Uint64())
	data := vm.state.memory.slice(offset.Uint64(), size.Uint64())
	hash := Keccak256(data)
	vm.env.SHA3Preimages[hash] = data
	size.SetBytes32(hash[:])
	return nil
}

// --- execution environment ---

func opAddress(vm *VM) {
	vm.state.stack.pushUndefined().SetBytes20(vm.state.contract[:])
}

func opOrigin(vm *VM) {
	vm.state.stack.pushUndefined().SetBytes20(vm.env.Origin[:])
}

func opCaller(vm *VM) {
	vm.state.stack.pushUndefined().SetBytes20(vm.state.caller[:])
}

func opCallvalue(vm *VM) {
	vm.state.stack.push(&vm.state.callValue)
}

func opBalance(vm *VM) {
	top := vm.state.stack.peek()
	address := tracevm.Address(top.Bytes20())
	balance := vm.touchAccount(address).Balance
	top.Set(&balance)
}

func opCallDataload(vm *VM) {
	top := vm.state.stack.peek()
	if !top.IsUint64() || top.Uint64()+32 < top.Uint64() {
		top.Clear()
		return
	}
	offset := top.Uint64()
	vm.state.memory.accessRange(offset, 32)
	top.SetBytes32(tracevm.GetData(vm.state.callData, offset, 32))
}

func opCallDatasize(vm *VM) {
	vm.state.stack.pushUndefined().SetUint64(uint64(len(vm.state.callData)))
}

func opCallDataCopy(vm *VM) error {
	return genericDataCopy(vm, vm.state.callData)
}

func opCodeSize(vm *VM) {
	vm.state.stack.pushUndefined().SetUint64(uint64(len(vm.state.code)))
}

func opCodeCopy(vm *VM) error {
	return genericDataCopy(vm, vm.state.code)
}

func opExtcodesize(vm *VM) {
	top := vm.state.stack.peek()
	address := tracevm.Address(top.Bytes20())
	top.SetUint64(uint64(vm.touchAccount(address).CodeSize()))
}

func opExtCodeCopy(vm *VM) error {
	address := tracevm.Address(vm.state.stack.pop().Bytes20())
	return genericDataCopy(vm, vm.touchAccount(address).Code)
}

// genericDataCopy copies a region of the given source into memory,
// zero-padding reads beyond the source. It implements CALLDATACOPY,
// CODECOPY, and the copying part of EXTCODECOPY.
func genericDataCopy(vm *VM, src []byte) error {
	var (
		memOffset  = vm.state.stack.pop()
		dataOffset = vm.state.stack.pop()
		length     = vm.state.stack.pop()
	)
	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}
	dataOffset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOffset64 = math.MaxUint64
	}
	vm.state.memory.accessRange(memOffset.Uint64(), length.Uint64())
	vm.state.memory.writeRange(src, dataOffset64, memOffset.Uint64(), length.Uint64())
	return nil
}

// --- block context ---

func opBlockhash(vm *VM) {
	// Block hashes are not modeled; every lookup yields zero.
	vm.state.stack.peek().Clear()
}

func opCoinbase(vm *VM) {
	vm.state.stack.pushUndefined().SetBytes20(vm.block.Coinbase[:])
}

func opTimestamp(vm *VM) {
	vm.state.stack.push(&vm.block.Timestamp)
}

func opNumber(vm *VM) {
	vm.state.stack.push(&vm.block.Number)
}

func opDifficulty(vm *VM) {
	vm.state.stack.push(&vm.block.Difficulty)
}

func opGasLimit(vm *VM) {
	vm.state.stack.push(&vm.block.GasLimit)
}

func opGas(vm *VM) {
	vm.state.stack.pushUndefined().SetUint64(gasPlaceholder)
}

// --- memory ---

func opMload(vm *VM) error {
	top := vm.state.stack.peek()
	if !top.IsUint64() || top.Uint64()+32 < top.Uint64() {
		return errOverflow
	}
	offset := top.Uint64()
	vm.state.memory.accessRange(offset, 32)
	vm.state.memory.readWord(offset, top)
	return nil
}

func opMstore(vm *VM) error {
	addr := vm.state.stack.pop()
	value := vm.state.stack.pop()
	offset, overflow := addr.Uint64WithOverflow()
	if overflow || offset+32 < offset {
		return errOverflow
	}
	vm.state.memory.accessRange(offset, 32)
	vm.state.memory.setWord(offset, value)
	return nil
}

func opMstore8(vm *VM) error {
	addr := vm.state.stack.pop()
	value := vm.state.stack.pop()
	offset, overflow := addr.Uint64WithOverflow()
	if overflow || offset+1 < offset {
		return errOverflow
	}
	vm.state.memory.accessRange(offset, 1)
	vm.state.memory.setByte(offset, byte(value.Uint64()))
	return nil
}

func opMsize(vm *VM) {
	vm.state.stack.pushUndefined().SetUint64(vm.state.memory.sizeInWords() * 32)
}

// --- storage ---

func opSload(vm *VM) {
	top := vm.state.stack.peek()
	value := vm.currentContract().GetStorage(top)
	top.Set(&value)
}

func opSstore(vm *VM) {
	key := vm.state.stack.pop()
	value := vm.state.stack.pop()
	vm.currentContract().SetStorage(key, value)
}

// --- logging ---

func opLog(vm *VM, n int) error {
	stack := vm.state.stack
	offset, size := stack.pop(), stack.pop()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	topics := make([]tracevm.Hash, n)
	for i := 0; i < n; i++ {
		topics[i] = stack.pop().Bytes32()
	}
	vm.state.memory.accessRange(offset.Uint64(), size.Uint64())
	data := vm.state.memory.slice(offset.Uint64(), size.Uint64())
	log := tracevm.Log{
		Address: vm.state.contract,
		Topics:  topics,
		Data:    data,
	}
	vm.logs = append(vm.logs, log)
	vm.trace.addLog(&log)
	return nil
}

// --- calls and creations ---

func opCreate(vm *VM) error {
	stack := vm.state.stack
	value := *stack.pop()
	offset, size := stack.pop(), stack.pop()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	self := vm.currentContract()
	if value.Gt(&self.Balance) {
		return tracevm.ErrBalanceTooLow
	}
	vm.state.memory.accessRange(offset.Uint64(), size.Uint64())
	initCode := vm.state.memory.slice(offset.Uint64(), size.Uint64())

	address := createAddress(vm.state.contract, &self.Nonce)
	self.Nonce.AddUint64(&self.Nonce, 1)
	self.Balance.Sub(&self.Balance, &value)

	created := NewContract(initCode)
	vm.env.Contracts[address] = created

	caller := vm.state.contract
	vm.pushFrame(
		frameContext{
			kind:     creationContext,
			codeHash: Keccak256(initCode),
		},
		frameState{
			contract:     address,
			codeContract: address,
			code:         initCode,
			analysis:     created.Analysis(),
			stack:        NewStack(),
			memory:       NewMemory(),
			callValue:    value,
			caller:       caller,
		})
	return nil
}

func opCall(vm *VM) error {
	stack := vm.state.stack
	stack.pop() // gas is not metered; the forwarded amount is ignored
	to := tracevm.Address(stack.pop().Bytes20())
	value := *stack.pop()
	inOffset, inSize := stack.pop(), stack.pop()
	outOffset, outSize := stack.pop(), stack.pop()
	if err := checkSizeOffsetUint64Overflow(inOffset, inSize); err != nil {
		return err
	}
	if err := checkSizeOffsetUint64Overflow(outOffset, outSize); err != nil {
		return err
	}
	self := vm.currentContract()
	if value.Gt(&self.Balance) {
		return tracevm.ErrBalanceTooLow
	}
	target, exists := vm.env.Contracts[to]
	if !exists {
		return &tracevm.ErrNoSuchContract{Address: to}
	}

	vm.state.memory.accessRange(inOffset.Uint64(), inSize.Uint64())
	input := vm.state.memory.slice(inOffset.Uint64(), inSize.Uint64())

	reversion := cloneContracts(vm.env.Contracts)
	self.Balance.Sub(&self.Balance, &value)
	target.Balance.Add(&target.Balance, &value)

	caller := vm.state.contract
	vm.pushFrame(
		frameContext{
			kind:      callContext,
			codeHash:  target.CodeHash,
			outOffset: outOffset.Uint64(),
			outSize:   outSize.Uint64(),
			abi:       callSelector(input),
			reversion: reversion,
		},
		frameState{
			contract:     to,
			codeContract: to,
			code:         target.Code,
			analysis:     target.Analysis(),
			stack:        NewStack(),
			memory:       NewMemory(),
			callData:     input,
			callValue:    value,
			caller:       caller,
		})
	return nil
}

func opDelegateCall(vm *VM) error {
	stack := vm.state.stack
	stack.pop() // gas is not metered
	to := tracevm.Address(stack.pop().Bytes20())
	inOffset, inSize := stack.pop(), stack.pop()
	outOffset, outSize := stack.pop(), stack.pop()
	if err := checkSizeOffsetUint64Overflow(inOffset, inSize); err != nil {
		return err
	}
	if err := checkSizeOffsetUint64Overflow(outOffset, outSize); err != nil {
		return err
	}
	target, exists := vm.env.Contracts[to]
	if !exists {
		return &tracevm.ErrNoSuchContract{Address: to}
	}

	vm.state.memory.accessRange(inOffset.Uint64(), inSize.Uint64())
	input := vm.state.memory.slice(inOffset.Uint64(), inSize.Uint64())

	// The executing account, caller, and call value are inherited from the
	// current frame; only the code is taken from the target.
	vm.pushFrame(
		frameContext{
			kind:      callContext,
			codeHash:  target.CodeHash,
			outOffset: outOffset.Uint64(),
			outSize:   outSize.Uint64(),
			abi:       callSelector(input),
			reversion: cloneContracts(vm.env.Contracts),
		},
		frameState{
			contract:     vm.state.contract,
			codeContract: to,
			code:         target.Code,
			analysis:     target.Analysis(),
			stack:        NewStack(),
			memory:       NewMemory(),
			callData:     input,
			callValue:    vm.state.callValue,
			caller:       vm.state.caller,
		})
	return nil
}

func opReturn(vm *VM) error {
	offset, size := vm.state.stack.pop(), vm.state.stack.pop()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	vm.state.memory.accessRange(offset.Uint64(), size.Uint64())
	data := vm.state.memory.slice(offset.Uint64(), size.Uint64())
	vm.finishReturn(data)
	return nil
}

func opRevert(vm *VM) {
	// The return region is popped but its content is not propagated.
	vm.state.stack.pop()
	vm.state.stack.pop()
	vm.fail(tracevm.ErrRevert)
}

func opSelfdestruct(vm *VM) {
	beneficiary := tracevm.Address(vm.state.stack.pop().Bytes20())
	self := vm.currentContract()
	vm.selfDestructs = append(vm.selfDestructs, vm.state.contract)

	target := vm.touchAccount(beneficiary)
	target.Balance.Add(&target.Balance, &self.Balance)
	self.Balance.Clear()

	vm.fail(tracevm.ErrSelfDestruction)
}

// --- helpers ---

// callSelector extracts the 4-byte call selector from the input, if the
// input carries one.
func callSelector(input []byte) *uint256.Int {
	if len(input) < 4 {
		return nil
	}
	return new(uint256.Int).SetBytes(input[:4])
}

func checkSizeOffsetUint64Overflow(offset, size *uint256.Int) error {
	if size.IsZero() {
		return nil
	}
	if !offset.IsUint64() || !size.IsUint64() || offset.Uint64()+size.Uint64() < offset.Uint64() {
		return errOverflow
	}
	return nil
}
