package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/evmkit/node-provider/pkg/ethereum"
)

// call issues a JSON-RPC request over the active transport, recording metrics
// and mapping method-availability failures to NotImplementedError. The client
// handle is read under the provider lock because the sync monitor calls in
// from a background goroutine while Disconnect may drop the handle.
func (p *Provider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil {
		return ethereum.ErrNotConnected
	}

	start := time.Now()
	err := client.CallContext(ctx, result, method, args...)

	status := ethereum.StatusSuccess
	if err != nil {
		status = ethereum.StatusError
	}

	ethereum.RPCCallsTotal.WithLabelValues(p.config.Name, method, status).Inc()
	ethereum.RPCCallDuration.WithLabelValues(p.config.Name, method, status).Observe(time.Since(start).Seconds())

	if err != nil {
		return classifyRPCError(method, err)
	}

	return nil
}

// classifyRPCError detects a node that lacks the requested method. Nodes
// disagree on how they report this: some use the standard method-not-found
// code, others (notably pruned or restricted deployments) return a generic
// error whose message mentions availability.
func classifyRPCError(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == -32601 {
		return &ethereum.NotImplementedError{Method: method}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "does not exist") || strings.Contains(msg, "is not available") {
		return &ethereum.NotImplementedError{Method: method}
	}

	return err
}

// BlockNumber returns the node's current head block number.
func (p *Provider) BlockNumber(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := p.call(ctx, &head, "eth_blockNumber"); err != nil {
		return 0, err
	}

	return uint64(head), nil
}

// ChainID returns the chain id negotiated at connect time.
func (p *Provider) ChainID() uint64 {
	if p.profile == nil {
		return 0
	}

	return p.profile.ChainID.Uint64()
}
