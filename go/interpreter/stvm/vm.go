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
	"github.com/holiman/uint256"
)

// VMOpts is the set of inputs required to construct a fresh VM. The
// produced VM holds exactly one contract, installed at Address with the
// given code, and starts executing it with the given calldata, caller, and
// value.
type VMOpts struct {
	Code     tracevm.Code
	CallData tracevm.Data
	Value    uint256.Int
	Address  tracevm.Address
	Caller   tracevm.Address
	Origin   tracevm.Address

	Number     uint256.Int
	Timestamp  uint256.Int
	Coinbase   tracevm.Address
	Difficulty uint256.Int
	GasLimit   uint256.Int
}

// Block carries the block-level execution context.
type Block struct {
	Coinbase   tracevm.Address
	Timestamp  uint256.Int
	Number     uint256.Int
	Difficulty uint256.Int
	GasLimit   uint256.Int
}

// Env is the world the VM executes in: the account states, the transaction
// origin, and the cache of SHA3 pre-images observed during execution.
type Env struct {
	Contracts     map[tracevm.Address]*Contract
	SHA3Preimages map[tracevm.Hash]tracevm.Data
	Origin        tracevm.Address
}

// frameState is the register set of a single call frame.
type frameState struct {
	contract     tracevm.Address // the executing account, receiver of SLOAD/SSTORE
	codeContract tracevm.Address // the account owning the running code
	code         tracevm.Code
	analysis     *CodeAnalysis
	pc           int
	stack        *stack
	memory       *Memory
	callData     tracevm.Data
	callValue    uint256.Int
	caller       tracevm.Address
}

type contextKind byte

const (
	creationContext contextKind = iota
	callContext
)

// frameContext is the record attached to a pushed frame: how the nested
// execution was entered and what is needed to finish or undo it.
type frameContext struct {
	kind     contextKind
	codeHash tracevm.Hash

	// call contexts only
	outOffset uint64
	outSize   uint64
	abi       *uint256.Int
	reversion map[tracevm.Address]*Contract
}

// frame pairs a context with the caller's state to be restored when the
// nested execution ends. The saved stack has the call arguments already
// popped, leaving it ready for the return-status push.
type frame struct {
	context    frameContext
	savedState frameState
}

// VM is a stepwise interpreter over a self-contained world state. A VM is
// advanced one operation at a time with Step until Result reports a
// terminal outcome. The VM exclusively owns its world state; copying the VM
// is not supported, but independent VMs may run in parallel.
type VM struct {
	result        *tracevm.Result
	state         frameState
	frames        []frame // top of the frame stack at the end
	env           Env
	block         Block
	selfDestructs []tracevm.Address
	logs          []tracevm.Log
	trace         *CallTrace
}

// New creates a VM from the given options, seeded with a single contract.
func New(opts VMOpts) *VM {
	contract := NewContract(opts.Code)
	return &VM{
		env: Env{
			Contracts:     map[tracevm.Address]*Contract{opts.Address: contract},
			SHA3Preimages: make(map[tracevm.Hash]tracevm.Data),
			Origin:        opts.Origin,
		},
		block: Block{
			Coinbase:   opts.Coinbase,
			Timestamp:  opts.Timestamp,
			Number:     opts.Number,
			Difficulty: opts.Difficulty,
			GasLimit:   opts.GasLimit,
		},
		trace: newCallTrace(),
		state: frameState{
			contract:     opts.Address,
			codeContract: opts.Address,
			code:         opts.Code,
			analysis:     contract.analysis,
			stack:        NewStack(),
			memory:       NewMemory(),
			callData:     opts.CallData,
			callValue:    opts.Value,
			caller:       opts.Caller,
		},
	}
}

// Result returns the terminal outcome of the execution, or nil while the
// VM is still running.
func (vm *VM) Result() *tracevm.Result {
	return vm.result
}

// Logs returns the logs emitted so far, in execution order.
func (vm *VM) Logs() []tracevm.Log {
	return vm.logs
}

// SelfDestructs returns the addresses destroyed so far, in execution order.
func (vm *VM) SelfDestructs() []tracevm.Address {
	return vm.selfDestructs
}

// Trace returns the call-context trace recorded so far.
func (vm *VM) Trace() *CallTrace {
	return vm.trace
}

// Env grants access to the VM's world state. Mutations are allowed between
// steps; during a step the VM owns the environment exclusively.
func (vm *VM) Env() *Env {
	return &vm.env
}

// Block returns the block-level execution context.
func (vm *VM) Block() *Block {
	return &vm.block
}

// Depth returns the number of nested frames below the current one.
func (vm *VM) Depth() int {
	return len(vm.frames)
}

// Step advances the VM by exactly one operation, or terminates it. Calling
// Step on a terminated VM has no effect.
func (vm *VM) Step() {
	if vm.result != nil {
		return
	}
	if vm.state.pc >= len(vm.state.code) {
		// running off the end of the code is an implicit STOP
		vm.stop()
		return
	}
	op := OpCode(vm.state.code[vm.state.pc])
	if err := checkStackLimits(vm.state.stack.len(), op); err != nil {
		vm.fail(err)
		return
	}
	// The pc is advanced past the operation and its immediates before
	// dispatch; handlers locate immediates relative to the advanced pc.
	vm.state.pc += op.Width()
	if err := vm.dispatch(op); err != nil {
		vm.fail(err)
	}
}

// Run advances the VM until termination, invoking the observer (if any)
// before every step, and returns the terminal result.
func (vm *VM) Run(observer Observer) tracevm.Result {
	for vm.result == nil {
		if observer != nil {
			observer.BeforeStep(vm)
		}
		vm.Step()
	}
	return *vm.result
}

func (vm *VM) dispatch(op OpCode) error {
	switch {
	case PUSH1 <= op && op <= PUSH32:
		opPush(vm, int(op-PUSH1)+1)
		return nil
	case DUP1 <= op && op <= DUP16:
		vm.state.stack.dup(int(op - DUP1))
		return nil
	case SWAP1 <= op && op <= SWAP16:
		vm.state.stack.swap(int(op-SWAP1) + 1)
		return nil
	case LOG0 <= op && op <= LOG4:
		return opLog(vm, int(op-LOG0))
	}

	switch op {
	case STOP:
		vm.stop()
	case ADD:
		opAdd(vm)
	case MUL:
		opMul(vm)
	case SUB:
		opSub(vm)
	case DIV:
		opDiv(vm)
	case SDIV:
		opSDiv(vm)
	case MOD:
		opMod(vm)
	case SMOD:
		opSMod(vm)
	case ADDMOD:
		opAddMod(vm)
	case MULMOD:
		opMulMod(vm)
	case EXP:
		opExp(vm)
	case SIGNEXTEND:
		opSignExtend(vm)
	case LT:
		opLt(vm)
	case GT:
		opGt(vm)
	case SLT:
		opSlt(vm)
	case SGT:
		opSgt(vm)
	case EQ:
		opEq(vm)
	case ISZERO:
		opIszero(vm)
	case AND:
		opAnd(vm)
	case OR:
		opOr(vm)
	case XOR:
		opXor(vm)
	case NOT:
		opNot(vm)
	case BYTE:
		opByte(vm)
	case SHA3:
		return opSha3(vm)
	case ADDRESS:
		opAddress(vm)
	case BALANCE:
		opBalance(vm)
	case ORIGIN:
		opOrigin(vm)
	case CALLER:
		opCaller(vm)
	case CALLVALUE:
		opCallvalue(vm)
	case CALLDATALOAD:
		opCallDataload(vm)
	case CALLDATASIZE:
		opCallDatasize(vm)
	case CALLDATACOPY:
		return opCallDataCopy(vm)
	case CODESIZE:
		opCodeSize(vm)
	case CODECOPY:
		return opCodeCopy(vm)
	case EXTCODESIZE:
		opExtcodesize(vm)
	case EXTCODECOPY:
		return opExtCodeCopy(vm)
	case BLOCKHASH:
		opBlockhash(vm)
	case COINBASE:
		opCoinbase(vm)
	case TIMESTAMP:
		opTimestamp(vm)
	case NUMBER:
		opNumber(vm)
	case DIFFICULTY:
		opDifficulty(vm)
	case GASLIMIT:
		opGasLimit(vm)
	case POP:
		vm.state.stack.pop()
	case MLOAD:
		return opMload(vm)
	case MSTORE:
		return opMstore(vm)
	case MSTORE8:
		return opMstore8(vm)
	case SLOAD:
		opSload(vm)
	case SSTORE:
		opSstore(vm)
	case JUMP:
		return opJump(vm)
	case JUMPI:
		return opJumpi(vm)
	case PC:
		opPc(vm)
	case MSIZE:
		opMsize(vm)
	case GAS:
		opGas(vm)
	case JUMPDEST:
		// nothing
	case CREATE:
		return opCreate(vm)
	case CALL:
		return opCall(vm)
	case CALLCODE:
		panic("CALLCODE is not supported by this interpreter")
	case RETURN:
		return opReturn(vm)
	case DELEGATECALL:
		return opDelegateCall(vm)
	case REVERT:
		opRevert(vm)
	case SELFDESTRUCT:
		opSelfdestruct(vm)
	default:
		return &tracevm.ErrUnrecognizedOpCode{Code: byte(op)}
	}
	return nil
}

// --- frame transitions ---

// pushFrame saves the current state, replaces it by the given callee
// state, and descends into a new trace context.
func (vm *VM) pushFrame(context frameContext, callee frameState) {
	vm.frames = append(vm.frames, frame{context: context, savedState: vm.state})
	vm.state = callee

	kind := CallTraceContext
	if context.kind == creationContext {
		kind = CreationTraceContext
	}
	vm.trace.enter(&TraceContext{
		Kind:     kind,
		Address:  callee.codeContract,
		CodeHash: context.codeHash,
		ABI:      context.abi,
	})
}

// popFrame restores the caller's state and ascends in the trace. It
// returns the popped frame and the address that was executing, which the
// creation return path needs.
func (vm *VM) popFrame() (frame, tracevm.Address) {
	f := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	executed := vm.state.contract
	ReturnStack(vm.state.stack)
	vm.state = f.savedState
	vm.trace.leave()
	return f, executed
}

// stop ends the current frame successfully without return data. With no
// frames left, the VM terminates with an empty success result; otherwise
// the caller's frame is restored and 1 is pushed as the status.
func (vm *VM) stop() {
	if len(vm.frames) == 0 {
		vm.result = &tracevm.Result{Success: true, Output: tracevm.Data{}}
		return
	}
	vm.popFrame()
	vm.state.stack.pushUndefined().SetOne()
}

// finishReturn ends the current frame with the given return data. For a
// creation frame the data becomes the created contract's code and its
// address is pushed; for a call frame the data is copied to the caller's
// output region and 1 is pushed. With no frames left, the VM terminates
// with the data as output.
func (vm *VM) finishReturn(data []byte) {
	if len(vm.frames) == 0 {
		vm.result = &tracevm.Result{Success: true, Output: data}
		return
	}
	f, executed := vm.popFrame()
	switch f.context.kind {
	case creationContext:
		vm.performCreation(executed, data)
		vm.state.stack.pushUndefined().SetBytes20(executed[:])
	case callContext:
		n := uint64(len(data))
		if f.context.outSize < n {
			n = f.context.outSize
		}
		vm.state.memory.accessRange(f.context.outOffset, n)
		vm.state.memory.set(f.context.outOffset, data[:n])
		vm.state.stack.pushUndefined().SetOne()
	}
}

// fail unwinds the current frame with revert semantics: call frames
// restore the world from their reversion snapshot, creation frames delete
// the account under construction, and 0 is pushed as the status. With no
// frames left, the error becomes the VM's terminal result.
func (vm *VM) fail(err error) {
	if len(vm.frames) == 0 {
		vm.result = &tracevm.Result{Success: false, Err: err}
		return
	}
	f, executed := vm.popFrame()
	switch f.context.kind {
	case callContext:
		vm.env.Contracts = f.context.reversion
	case creationContext:
		delete(vm.env.Contracts, executed)
	}
	vm.state.stack.pushUndefined().Clear()
}

// --- world state helpers ---

// currentContract returns the account state of the executing address.
func (vm *VM) currentContract() *Contract {
	res, found := vm.env.Contracts[vm.state.contract]
	if !found {
		panic(fmt.Sprintf("executing account %v has no state", vm.state.contract))
	}
	return res
}

// CurrentContract returns the account state of the executing address, or
// nil if it has none.
func (vm *VM) CurrentContract() *Contract {
	return vm.env.Contracts[vm.state.contract]
}

// touchAccount returns the account state for the given address, installing
// a default-empty account if the address has no prior state.
func (vm *VM) touchAccount(address tracevm.Address) *Contract {
	if res, found := vm.env.Contracts[address]; found {
		return res
	}
	res := NewContract(nil)
	vm.env.Contracts[address] = res
	return res
}

// performCreation installs the given code as the result of a contract
// creation. Returning empty code removes the account entirely; otherwise
// the code is installed, rehashed, and re-analyzed, preserving the
// account's storage and balance.
func (vm *VM) performCreation(address tracevm.Address, code []byte) {
	if len(code) == 0 {
		delete(vm.env.Contracts, address)
		return
	}
	vm.touchAccount(address).setCode(code)
}

// cloneContracts produces the deep value copy of the world used as a
// reversion snapshot.
func cloneContracts(contracts map[tracevm.Address]*Contract) map[tracevm.Address]*Contract {
	res := make(map[tracevm.Address]*Contract, len(contracts))
	for address, contract := range contracts {
		res[address] = contract.Clone()
	}
	return res
}
