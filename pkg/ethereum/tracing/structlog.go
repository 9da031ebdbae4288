package tracing

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RootCall carries what the structlog format does not: the identity of the
// outermost call. For a mined transaction it comes from the transaction
// itself; for a simulated call it is synthesized from the call arguments.
type RootCall struct {
	CallType CallType
	From     common.Address
	To       common.Address
	Value    *big.Int
	Input    []byte
	Output   []byte
	GasCost  uint64
	Failed   bool
	TxnHash  string
}

// TreeFromStructLogs builds a call tree from a per-opcode execution log.
// Frames are consumed in a single pass; the reader may be backed by a
// streaming RPC response. Reverted sub-calls stay in the tree with their
// Failed flag set.
func TreeFromStructLogs(root RootCall, frames FrameReader) (*CallTreeNode, error) {
	callType := root.CallType
	if callType == "" {
		callType = CallTypeCall
	}

	rootNode := &CallTreeNode{
		CallType: callType,
		From:     root.From,
		To:       root.To,
		Value:    root.Value,
		Input:    root.Input,
		Output:   root.Output,
		GasCost:  root.GasCost,
		Failed:   root.Failed,
		TxnHash:  root.TxnHash,
	}

	b := treeBuilder{
		stack:    []*CallTreeNode{rootNode},
		entryGas: []uint64{0},
	}

	sawFrame := false

	for {
		frame, err := frames.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading trace frame: %w", err)
		}

		sawFrame = true

		SanitizeGasCost(frame)
		b.process(frame)
	}

	// A plain value transfer legitimately produces zero frames, so an empty
	// log is only suspicious when the root carries calldata.
	if !sawFrame && len(root.Input) > 0 && root.GasCost == 0 {
		return nil, ErrNoTraces
	}

	b.finish()

	return rootNode, nil
}

// treeBuilder tracks the active call path while walking opcode depths, in the
// same way frame IDs are assigned during structlog traversal: a depth
// increase enters the most recently announced call, a decrease pops frames
// until the depths match.
type treeBuilder struct {
	stack    []*CallTreeNode
	entryGas []uint64
	pending  *CallTreeNode
	prev     *TraceFrame
	depth    int
}

func (b *treeBuilder) process(f *TraceFrame) {
	if b.prev == nil {
		b.depth = f.Depth
	}

	switch {
	case f.Depth > b.depth:
		child := b.pending
		if child == nil {
			// The call opcode was not visible (e.g. stack snapshots were
			// disabled); keep the shape correct with a placeholder node.
			child = &CallTreeNode{CallType: CallTypeCall, Value: new(big.Int)}
			cur := b.stack[len(b.stack)-1]
			cur.Children = append(cur.Children, child)
		}

		b.stack = append(b.stack, child)
		b.entryGas = append(b.entryGas, f.Gas)
		b.pending = nil

	case f.Depth < b.depth:
		for d := b.depth; d > f.Depth && len(b.stack) > 1; d-- {
			b.pop()
		}
	}

	b.depth = f.Depth

	cur := b.stack[len(b.stack)-1]

	if f.Error != "" {
		cur.Failed = true
	}

	switch f.Op {
	case "CALL", "CALLCODE", "DELEGATECALL", "STATICCALL", "CREATE", "CREATE2":
		child := childFromFrame(cur, f)
		cur.Children = append(cur.Children, child)
		b.pending = child

	case "RETURN":
		offset := wordToUint64(stackWord(f.Stack, 0))
		size := wordToUint64(stackWord(f.Stack, 1))
		if out := memoryRange(f.Memory, offset, size); len(out) > 0 {
			cur.Output = out
		}

	case "REVERT":
		cur.Failed = true

		offset := wordToUint64(stackWord(f.Stack, 0))
		size := wordToUint64(stackWord(f.Stack, 1))
		if out := memoryRange(f.Memory, offset, size); len(out) > 0 {
			cur.Output = out
		}

	case "INVALID":
		cur.Failed = true

	case "SELFDESTRUCT":
		child := &CallTreeNode{
			CallType: CallTypeSelfDestruct,
			From:     cur.To,
			To:       wordToAddress(stackWord(f.Stack, 0)),
			Value:    new(big.Int),
		}
		cur.Children = append(cur.Children, child)
	}

	b.prev = f
}

func (b *treeBuilder) finish() {
	for len(b.stack) > 1 {
		b.pop()
	}
}

// pop closes the innermost call and charges it the gas consumed between its
// first and last executed opcode.
func (b *treeBuilder) pop() {
	node := b.stack[len(b.stack)-1]
	entry := b.entryGas[len(b.entryGas)-1]

	if node.GasCost == 0 && b.prev != nil && entry >= b.prev.Gas {
		node.GasCost = entry - b.prev.Gas + b.prev.GasCost
	}

	b.stack = b.stack[:len(b.stack)-1]
	b.entryGas = b.entryGas[:len(b.entryGas)-1]
}

// childFromFrame decodes the callee, value and calldata of a call-family
// opcode from the frame's stack and memory snapshots.
func childFromFrame(parent *CallTreeNode, f *TraceFrame) *CallTreeNode {
	child := &CallTreeNode{
		CallType: CallType(f.Op),
		From:     parent.To,
		Value:    new(big.Int),
	}

	switch f.Op {
	case "CALL", "CALLCODE":
		// gas, to, value, inOffset, inSize, outOffset, outSize
		child.To = wordToAddress(stackWord(f.Stack, 1))
		child.Value = wordToBig(stackWord(f.Stack, 2))
		child.Input = memoryRange(f.Memory,
			wordToUint64(stackWord(f.Stack, 3)),
			wordToUint64(stackWord(f.Stack, 4)))

	case "DELEGATECALL", "STATICCALL":
		// gas, to, inOffset, inSize, outOffset, outSize
		child.To = wordToAddress(stackWord(f.Stack, 1))
		child.Input = memoryRange(f.Memory,
			wordToUint64(stackWord(f.Stack, 2)),
			wordToUint64(stackWord(f.Stack, 3)))

	case "CREATE", "CREATE2":
		// value, offset, size (CREATE2 adds salt below)
		child.Value = wordToBig(stackWord(f.Stack, 0))
		child.Input = memoryRange(f.Memory,
			wordToUint64(stackWord(f.Stack, 1)),
			wordToUint64(stackWord(f.Stack, 2)))
	}

	return child
}
