package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/evmkit/node-provider/pkg/ethereum/tracing"
	"github.com/evmkit/node-provider/pkg/reports"
)

// CallMsg describes a transaction to simulate without mining it.
type CallMsg struct {
	From     common.Address
	To       *common.Address // nil targets contract creation
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

func (m *CallMsg) toArgs() map[string]interface{} {
	args := map[string]interface{}{
		"from": m.From,
	}

	if m.To != nil {
		args["to"] = *m.To
	}

	if m.Gas != 0 {
		args["gas"] = hexutil.Uint64(m.Gas)
	}

	if m.GasPrice != nil {
		args["gasPrice"] = (*hexutil.Big)(m.GasPrice)
	}

	if m.Value != nil {
		args["value"] = (*hexutil.Big)(m.Value)
	}

	if len(m.Data) > 0 {
		args["data"] = hexutil.Bytes(m.Data)
	}

	return args
}

// CallOptions selects which execution artifacts a simulation produces.
// Zero-value options request the return data alone, which keeps the
// simulation on the cheap non-tracing path.
type CallOptions struct {
	// SkipTrace forces the plain path even when consumers are configured.
	SkipTrace bool
	// Sinks receive the decorated call tree.
	Sinks []reports.Sink
	// GasTracker accumulates per-call gas usage.
	GasTracker reports.GasTracker
	// Enricher decodes call data before the tree reaches any consumer.
	Enricher *tracing.Enricher
}

// traceWanted reports whether any consumer needs execution frames.
func (o *CallOptions) traceWanted() bool {
	if o == nil || o.SkipTrace {
		return false
	}

	if o.GasTracker != nil && o.GasTracker.Enabled() {
		return true
	}

	for _, sink := range o.Sinks {
		if sink.ShowGas() || sink.ShowTrace() {
			return true
		}
	}

	return false
}

// VMError is a simulated execution that reverted. When the failing call was
// traced, the call tree at the point of failure is attached.
type VMError struct {
	Message         string
	ContractAddress *common.Address
	Tree            *tracing.CallTreeNode
}

func (e *VMError) Error() string {
	return e.Message
}

// traceCallResult is the geth debug_traceCall response with the default
// struct-log tracer.
type traceCallResult struct {
	Gas         hexutil.Uint64       `json:"gas"`
	Failed      bool                 `json:"failed"`
	ReturnValue string               `json:"returnValue"`
	StructLogs  []tracing.TraceFrame `json:"structLogs"`
}

// SendCall simulates msg against the given block. With no trace consumer
// active a single eth_call is issued; otherwise the call runs under the
// struct-log tracer once, and the resulting tree is fanned out to every
// consumer. A revert surfaces as *VMError either way.
func (p *Provider) SendCall(ctx context.Context, msg *CallMsg, block string, opts *CallOptions) ([]byte, error) {
	if block == "" {
		block = "latest"
	}

	if !opts.traceWanted() {
		var ret hexutil.Bytes

		callErr := p.call(ctx, &ret, "eth_call", msg.toArgs(), block)
		if callErr == nil {
			return ret, nil
		}

		// Re-run under the tracer so the failure report carries the call
		// tree. The plain call already failed; the traced pass only
		// decorates that failure and never turns it back into a success.
		_, tree, err := p.tracedCall(ctx, msg, block, opts)

		var vmErr *VMError
		if errors.As(err, &vmErr) {
			return nil, vmErr
		}

		return nil, &VMError{
			Message:         callErr.Error(),
			ContractAddress: msg.To,
			Tree:            tree,
		}
	}

	ret, _, err := p.tracedCall(ctx, msg, block, opts)

	return ret, err
}

func (p *Provider) tracedCall(ctx context.Context, msg *CallMsg, block string, opts *CallOptions) ([]byte, *tracing.CallTreeNode, error) {
	var result traceCallResult
	if err := p.call(ctx, &result, "debug_traceCall", msg.toArgs(), block, map[string]interface{}{
		"enableMemory": true,
	}); err != nil {
		return nil, nil, err
	}

	ret := hexutil.Bytes(common.FromHex(result.ReturnValue))

	tree, err := p.treeFromCallResult(msg, &result, ret)
	if err != nil {
		p.log.WithError(err).Debug("Could not reconstruct simulated call tree")
	} else {
		p.dispatchTree(tree, opts)
	}

	if result.Failed {
		return nil, tree, &VMError{
			Message:         revertMessage(&result),
			ContractAddress: msg.To,
			Tree:            tree,
		}
	}

	return ret, tree, nil
}

func (p *Provider) treeFromCallResult(msg *CallMsg, result *traceCallResult, ret []byte) (*tracing.CallTreeNode, error) {
	root := tracing.RootCall{
		CallType: tracing.CallTypeCall,
		From:     msg.From,
		Input:    msg.Data,
		Output:   ret,
		GasCost:  uint64(result.Gas),
		Failed:   result.Failed,
	}

	if msg.To != nil {
		root.To = *msg.To
	} else {
		root.CallType = tracing.CallTypeCreate
	}

	if msg.Value != nil {
		root.Value = msg.Value
	}

	return tracing.TreeFromStructLogs(root, tracing.NewFrameReader(result.StructLogs))
}

// dispatchTree fans the tree out to every consumer. When exactly one consumer
// exists the enrichment mutates the tree directly; with several, each gets an
// independently enriched copy so one consumer's view never aliases another's.
func (p *Provider) dispatchTree(tree *tracing.CallTreeNode, opts *CallOptions) {
	if opts == nil {
		return
	}

	consumers := len(opts.Sinks)
	if opts.GasTracker != nil && opts.GasTracker.Enabled() {
		consumers++
	}

	inPlace := consumers <= 1

	deliver := func(t *tracing.CallTreeNode) *tracing.CallTreeNode {
		if opts.Enricher == nil {
			if inPlace {
				return t
			}

			return t.Copy()
		}

		return opts.Enricher.Enrich(t, inPlace)
	}

	if opts.GasTracker != nil && opts.GasTracker.Enabled() {
		opts.GasTracker.AppendGas(deliver(tree))
	}

	for _, sink := range opts.Sinks {
		if !sink.ShowGas() && !sink.ShowTrace() {
			continue
		}

		sink.Emit(deliver(tree))
	}
}

func revertMessage(result *traceCallResult) string {
	if len(result.StructLogs) > 0 {
		if last := result.StructLogs[len(result.StructLogs)-1]; last.Error != "" {
			return last.Error
		}
	}

	if result.ReturnValue != "" {
		return fmt.Sprintf("execution reverted: 0x%s", common.Bytes2Hex(common.FromHex(result.ReturnValue)))
	}

	return "execution reverted"
}
