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
	"strings"

	"github.com/Fantom-foundation/tracevm/go/tracevm"
	"github.com/holiman/uint256"
)

// ContextKind distinguishes the two kinds of nested execution contexts
// recorded in the call trace.
type ContextKind byte

const (
	CreationTraceContext ContextKind = iota
	CallTraceContext
)

func (k ContextKind) String() string {
	switch k {
	case CreationTraceContext:
		return "create"
	case CallTraceContext:
		return "call"
	}
	return fmt.Sprintf("ContextKind(%d)", byte(k))
}

// TraceContext is the record of a nested call or creation as it appears in
// the call trace.
type TraceContext struct {
	Kind     ContextKind
	Address  tracevm.Address // the account entered by the call or creation
	CodeHash tracevm.Hash    // hash of the executed code
	ABI      *uint256.Int    // 4-byte call selector, if the calldata carries one
}

// TraceNode is one node of the call trace: either a log entry or an entered
// execution context with its ordered children.
type TraceNode struct {
	Parent   int
	Children []int
	Log      *tracevm.Log  // set on log leaves
	Context  *TraceContext // set on context nodes
}

// CallTrace is the ordered tree of logs and nested execution contexts
// produced by a VM run. Nodes live in a flat arena; node 0 is the synthetic
// root representing the outermost frame. The cursor identifies the node
// whose child list is the current insertion point.
type CallTrace struct {
	nodes  []TraceNode
	cursor int
}

func newCallTrace() *CallTrace {
	return &CallTrace{
		nodes:  []TraceNode{{Parent: -1}},
		cursor: 0,
	}
}

// enter inserts a context node at the cursor and descends into it.
func (t *CallTrace) enter(context *TraceContext) {
	ix := t.insert(TraceNode{Context: context})
	t.cursor = ix
}

// leave ascends to the parent context, advancing the insertion point past
// the node that was left. Leaving the root indicates a corrupted frame
// bookkeeping and is fatal.
func (t *CallTrace) leave() {
	parent := t.nodes[t.cursor].Parent
	if parent < 0 {
		panic("corrupted call trace: leaving the root context")
	}
	t.cursor = parent
}

// addLog inserts a log leaf at the cursor without descending.
func (t *CallTrace) addLog(log *tracevm.Log) {
	t.insert(TraceNode{Log: log})
}

func (t *CallTrace) insert(node TraceNode) int {
	ix := len(t.nodes)
	node.Parent = t.cursor
	t.nodes = append(t.nodes, node)
	t.nodes[t.cursor].Children = append(t.nodes[t.cursor].Children, ix)
	return ix
}

// Node returns the trace node with the given index.
func (t *CallTrace) Node(ix int) *TraceNode {
	return &t.nodes[ix]
}

// Roots returns the indices of the top-level trace entries.
func (t *CallTrace) Roots() []int {
	return t.nodes[0].Children
}

// Len returns the total number of trace entries, excluding the synthetic
// root.
func (t *CallTrace) Len() int {
	return len(t.nodes) - 1
}

// Print writes an indented rendering of the trace to the given writer.
func (t *CallTrace) Print(out io.Writer) {
	for _, ix := range t.Roots() {
		t.print(out, ix, 0)
	}
}

func (t *CallTrace) print(out io.Writer, ix, depth int) {
	node := t.Node(ix)
	indent := strings.Repeat("  ", depth)
	if node.Log != nil {
		fmt.Fprintf(out, "%slog %v topics=%d data=0x%x\n",
			indent, node.Log.Address, len(node.Log.Topics), []byte(node.Log.Data))
		return
	}
	fmt.Fprintf(out, "%s%v %v code=%v\n",
		indent, node.Context.Kind, node.Context.Address, node.Context.CodeHash)
	for _, child := range node.Children {
		t.print(out, child, depth+1)
	}
}
