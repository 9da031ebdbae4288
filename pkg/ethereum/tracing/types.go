// Package tracing reconstructs canonical call trees from the trace formats
// execution clients report: per-opcode struct logs, the native call tracer,
// and parity-style flat trace lists.
package tracing

import (
	"errors"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Errors surfaced by the decoders.
var (
	// ErrNoTraces indicates a trace response held no frames at all. A
	// transaction with no trace data is an error, never an empty tree.
	ErrNoTraces = errors.New("trace contained no frames")

	// ErrMalformedTrace indicates the node reported a structure the decoder
	// could not interpret.
	ErrMalformedTrace = errors.New("malformed trace data")
)

// CallType identifies the kind of call a tree node represents.
type CallType string

const (
	CallTypeCall         CallType = "CALL"
	CallTypeCallCode     CallType = "CALLCODE"
	CallTypeDelegateCall CallType = "DELEGATECALL"
	CallTypeStaticCall   CallType = "STATICCALL"
	CallTypeCreate       CallType = "CREATE"
	CallTypeCreate2      CallType = "CREATE2"
	CallTypeSelfDestruct CallType = "SELFDESTRUCT"
)

// CallTreeNode is one call in a transaction's execution, rooted at the
// outermost call. A node owns its children exclusively; the tree is acyclic
// with exactly one root per traced transaction or simulated call.
type CallTreeNode struct {
	CallType CallType       `json:"callType"`
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Value    *big.Int       `json:"value,omitempty"`
	Input    hexutil.Bytes  `json:"input,omitempty"`
	Output   hexutil.Bytes  `json:"output,omitempty"`
	GasCost  uint64         `json:"gasCost"`
	Failed   bool           `json:"failed"`

	// TxnHash is empty for simulated calls, which have no real transaction.
	TxnHash string `json:"txnHash,omitempty"`

	// Enrichment output. Method is non-empty once a node has been enriched.
	Method    string   `json:"method,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Returns   []string `json:"returns,omitempty"`

	Children []*CallTreeNode `json:"calls,omitempty"`
}

// Copy returns a deep copy of the node and all of its children.
func (n *CallTreeNode) Copy() *CallTreeNode {
	if n == nil {
		return nil
	}

	out := *n

	if n.Value != nil {
		out.Value = new(big.Int).Set(n.Value)
	}

	out.Input = append(hexutil.Bytes(nil), n.Input...)
	out.Output = append(hexutil.Bytes(nil), n.Output...)
	out.Arguments = append([]string(nil), n.Arguments...)
	out.Returns = append([]string(nil), n.Returns...)

	if n.Children != nil {
		out.Children = make([]*CallTreeNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Copy()
		}
	}

	return &out
}

// CallCount returns the total number of calls in the tree, including the
// receiver.
func (n *CallTreeNode) CallCount() int {
	count := 1
	for _, c := range n.Children {
		count += c.CallCount()
	}

	return count
}

// TraceFrame is one per-opcode execution step from debug_traceTransaction.
// Stack, memory and storage snapshots are only present when explicitly
// requested. Frames are produced lazily, consumed in order and never mutated.
type TraceFrame struct {
	PC      uint64            `json:"pc"`
	Op      string            `json:"op"`
	Gas     uint64            `json:"gas"`
	GasCost uint64            `json:"gasCost"`
	Depth   int               `json:"depth"`
	Stack   []string          `json:"stack,omitempty"`
	Memory  []string          `json:"memory,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// FrameReader yields trace frames in execution order. ReadFrame returns
// io.EOF once the trace is exhausted. Implementations are single-pass.
type FrameReader interface {
	ReadFrame() (*TraceFrame, error)
}

type frameSlice struct {
	frames []TraceFrame
	pos    int
}

// NewFrameReader wraps an in-memory frame slice as a FrameReader.
func NewFrameReader(frames []TraceFrame) FrameReader {
	return &frameSlice{frames: frames}
}

func (s *frameSlice) ReadFrame() (*TraceFrame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}

	f := &s.frames[s.pos]
	s.pos++

	return f, nil
}
