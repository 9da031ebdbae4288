package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/evmkit/node-provider/pkg/ethereum"
	"github.com/evmkit/node-provider/pkg/ethereum/stream"
	"github.com/evmkit/node-provider/pkg/ethereum/tracing"
)

// CallTree reconstructs the call tree of a mined transaction. Encodings are
// tried in the profile's preference order; a strategy that the node does not
// support, or that yields no usable trace, falls through to the next. An
// error outside that set aborts immediately. CallTree never fabricates an
// empty tree: exhausting every strategy is an error.
func (p *Provider) CallTree(ctx context.Context, txnHash common.Hash) (*tracing.CallTreeNode, error) {
	if p.profile == nil {
		return nil, ethereum.ErrNotConnected
	}

	var lastErr error

	for _, format := range p.profile.TraceOrder {
		var (
			node *tracing.CallTreeNode
			err  error
		)

		switch format {
		case TraceFormatParity:
			node, err = p.parityCallTree(ctx, txnHash)
		case TraceFormatCallTracer:
			node, err = p.callTracerTree(ctx, txnHash)
		default:
			return nil, fmt.Errorf("unknown trace format %q", format)
		}

		if err == nil {
			return node, nil
		}

		if ethereum.IsNotImplemented(err) ||
			errors.Is(err, tracing.ErrNoTraces) ||
			errors.Is(err, tracing.ErrMalformedTrace) {
			p.log.WithError(err).WithField("format", format).Debug("Trace strategy unavailable, trying next")

			lastErr = err

			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("no trace encoding available for %s: %w", txnHash, lastErr)
}

func (p *Provider) parityCallTree(ctx context.Context, txnHash common.Hash) (*tracing.CallTreeNode, error) {
	var traces []tracing.ParityTrace
	if err := p.call(ctx, &traces, "trace_transaction", txnHash); err != nil {
		return nil, err
	}

	return tracing.TreeFromParityTraces(traces)
}

func (p *Provider) callTracerTree(ctx context.Context, txnHash common.Hash) (*tracing.CallTreeNode, error) {
	var frame tracing.CallFrame
	if err := p.call(ctx, &frame, "debug_traceTransaction", txnHash, map[string]interface{}{
		"tracer": "callTracer",
	}); err != nil {
		return nil, err
	}

	return tracing.TreeFromCallTrace(&frame, txnHash.Hex())
}

// TraceIterator yields the frames of one transaction trace incrementally,
// decoding each element as it arrives instead of buffering the full response.
type TraceIterator struct {
	stream *stream.Stream
	node   string
}

var _ tracing.FrameReader = (*TraceIterator)(nil)

// TransactionTrace opens a streaming read of a transaction's low-level
// execution frames. The caller must Close the iterator; abandoning it early
// tears down the underlying response without draining it.
func (p *Provider) TransactionTrace(ctx context.Context, txnHash common.Hash) (*TraceIterator, error) {
	if p.profile == nil {
		return nil, ethereum.ErrNotConnected
	}

	s, err := stream.Request(ctx, p.streamEndpoint(), "debug_traceTransaction",
		[]any{txnHash, map[string]interface{}{"enableMemory": true}},
		"result.structLogs",
		&stream.Options{HTTPClient: p.httpClient, Headers: p.config.NodeHeaders},
	)
	if err != nil {
		return nil, fmt.Errorf("opening trace stream for %s: %w", txnHash, err)
	}

	return &TraceIterator{stream: s, node: p.config.Name}, nil
}

// ReadFrame returns the next frame, or io.EOF when the trace is exhausted.
func (it *TraceIterator) ReadFrame() (*tracing.TraceFrame, error) {
	var frame tracing.TraceFrame

	ok, err := it.stream.Next(&frame)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, io.EOF
	}

	ethereum.TraceRecordsStreamed.WithLabelValues(it.node, "debug_traceTransaction").Inc()
	tracing.SanitizeGasCost(&frame)

	return &frame, nil
}

// Close releases the underlying stream. Safe to call after exhaustion.
func (it *TraceIterator) Close() error {
	return it.stream.Close()
}
