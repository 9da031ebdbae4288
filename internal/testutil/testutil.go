// Package testutil provides test helper utilities for unit and integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RPCError is a JSON-RPC error payload returned by a fake node handler.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MethodNotFound is the standard JSON-RPC error for an unsupported method.
func MethodNotFound(method string) *RPCError {
	return &RPCError{Code: -32601, Message: "the method " + method + " does not exist/is not available"}
}

// Handler produces the result (or error) for one JSON-RPC method call.
type Handler func(params json.RawMessage) (interface{}, *RPCError)

// FakeNode is an in-process JSON-RPC endpoint for provider tests. Handlers
// are registered per method; every request is counted so tests can assert
// which RPCs were (and were not) issued.
type FakeNode struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
}

// NewFakeNode starts a fake node pre-wired with the handshake methods every
// provider connection needs. The server is cleaned up with the test.
func NewFakeNode(t *testing.T) *FakeNode {
	t.Helper()

	n := &FakeNode{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}

	n.Handle("web3_clientVersion", func(json.RawMessage) (interface{}, *RPCError) {
		return "Geth/v1.15.0-stable/linux-amd64/go1.24.0", nil
	})
	n.Handle("eth_chainId", func(json.RawMessage) (interface{}, *RPCError) {
		return "0x539", nil
	})
	n.Handle("eth_syncing", func(json.RawMessage) (interface{}, *RPCError) {
		return false, nil
	})
	n.Handle("eth_getBlockByNumber", func(json.RawMessage) (interface{}, *RPCError) {
		return map[string]interface{}{
			"number":    "0x1",
			"hash":      "0x00000000000000000000000000000000000000000000000000000000000000aa",
			"extraData": "0x",
		}, nil
	})

	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Server.Close)

	return n
}

// URL returns the node's HTTP endpoint.
func (n *FakeNode) URL() string {
	return n.Server.URL
}

// Handle registers (or replaces) the handler for a method.
func (n *FakeNode) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.handlers[method] = h
}

// Calls returns how many times a method has been requested.
func (n *FakeNode) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[method]
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (n *FakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	handler, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	if !ok {
		resp.Error = MethodNotFound(req.Method)
	} else if result, rpcErr := handler(req.Params); rpcErr != nil {
		resp.Error = rpcErr
	} else if result == nil {
		// A success response must carry a result member, even when null.
		resp.Result = json.RawMessage("null")
	} else {
		resp.Result = result
	}

	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(resp)
}
