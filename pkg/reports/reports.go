// Package reports collects post-execution artifacts (gas usage, rendered call
// trees) from simulated and mined transactions.
package reports

import (
	"sync"

	"github.com/evmkit/node-provider/pkg/ethereum/tracing"
)

// Sink receives decorated call trees from the provider. Implementations
// decide presentation; the provider only asks which artifacts are wanted so
// it can skip trace acquisition entirely when none are.
type Sink interface {
	// ShowGas reports whether the sink wants per-call gas breakdowns.
	ShowGas() bool
	// ShowTrace reports whether the sink wants the full call tree.
	ShowTrace() bool
	// Emit hands the sink a decorated call tree. The tree must not be
	// mutated after Emit returns.
	Emit(tree *tracing.CallTreeNode)
}

// GasTracker accumulates gas usage across calls for later reporting.
type GasTracker interface {
	// Enabled reports whether the tracker is collecting.
	Enabled() bool
	// AppendGas folds one call tree's gas usage into the tracker.
	AppendGas(tree *tracing.CallTreeNode)
}

// MemoryGasTracker aggregates gas per method name in memory.
type MemoryGasTracker struct {
	mu     sync.Mutex
	active bool
	usage  map[string][]uint64
}

// NewMemoryGasTracker returns an enabled in-memory tracker.
func NewMemoryGasTracker() *MemoryGasTracker {
	return &MemoryGasTracker{
		active: true,
		usage:  make(map[string][]uint64),
	}
}

func (t *MemoryGasTracker) Enabled() bool {
	return t.active
}

// AppendGas records the gas cost of every call in the tree, keyed by the
// decoded method name when present and the call type otherwise.
func (t *MemoryGasTracker) AppendGas(tree *tracing.CallTreeNode) {
	if tree == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.appendNode(tree)
}

func (t *MemoryGasTracker) appendNode(node *tracing.CallTreeNode) {
	key := node.Method
	if key == "" {
		key = string(node.CallType)
	}

	t.usage[key] = append(t.usage[key], node.GasCost)

	for _, child := range node.Children {
		t.appendNode(child)
	}
}

// Usage returns a copy of the recorded gas samples keyed by method.
func (t *MemoryGasTracker) Usage() map[string][]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string][]uint64, len(t.usage))
	for k, v := range t.usage {
		out[k] = append([]uint64(nil), v...)
	}

	return out
}
