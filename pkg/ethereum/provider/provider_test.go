package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmkit/node-provider/internal/testutil"
	"github.com/evmkit/node-provider/pkg/ethereum"
	"github.com/evmkit/node-provider/pkg/ethereum/devnode"
)

func newTestProvider(t *testing.T, node *testutil.FakeNode) *Provider {
	t.Helper()

	p, err := New(logrus.New(), &ethereum.Config{
		Name: "test",
		URI:  node.URL(),
	})
	require.NoError(t, err)

	require.NoError(t, p.Connect(context.Background()))
	t.Cleanup(p.Disconnect)

	return p
}

func TestProvider_Connect(t *testing.T) {
	node := testutil.NewFakeNode(t)
	p := newTestProvider(t, node)

	profile := p.Profile()
	require.NotNil(t, profile)

	assert.Equal(t, ClientGeth, profile.Client)
	assert.Equal(t, uint64(1337), profile.ChainID.Uint64())
	assert.False(t, profile.RequiresPoAShim)
	assert.True(t, p.Connected())
}

func TestProvider_ConnectChainIDMismatch(t *testing.T) {
	node := testutil.NewFakeNode(t)

	p, err := New(logrus.New(), &ethereum.Config{
		Name:    "test",
		URI:     node.URL(),
		ChainID: 1, // the fake node reports 1337
	})
	require.NoError(t, err)

	err = p.Connect(context.Background())
	require.Error(t, err)

	var mismatch *ethereum.ChainIDMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint64(1), mismatch.Expected.Uint64())
	assert.Equal(t, uint64(1337), mismatch.Actual.Uint64())
	assert.False(t, p.Connected())
}

func TestProvider_ConnectRefused(t *testing.T) {
	p, err := New(logrus.New(), &ethereum.Config{
		Name: "test",
		URI:  "http://127.0.0.1:1", // nothing listens here
	})
	require.NoError(t, err)

	err = p.Connect(context.Background())
	require.Error(t, err)

	var connErr *ethereum.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ethereum.ConnRefused, connErr.Kind)
}

func TestProvider_DisconnectConcurrentWithCalls(t *testing.T) {
	node := testutil.NewFakeNode(t)
	node.Handle("eth_blockNumber", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return "0x10", nil
	})

	p := newTestProvider(t, node)

	// Hammer the RPC path from background goroutines while Disconnect drops
	// the client handle, the way the sync monitor can overlap a shutdown.
	// Calls racing the teardown may fail, but must never follow a dangling
	// handle.
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 50; j++ {
				if _, err := p.BlockNumber(context.Background()); err != nil {
					return
				}
			}
		}()
	}

	p.Disconnect()
	wg.Wait()

	assert.False(t, p.Connected())

	_, err := p.BlockNumber(context.Background())
	assert.ErrorIs(t, err, ethereum.ErrNotConnected)
}

func TestProvider_PoAProbe(t *testing.T) {
	node := testutil.NewFakeNode(t)
	node.Handle("eth_getBlockByNumber", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return map[string]interface{}{
			"number":    "0x1",
			"extraData": "0x" + strings.Repeat("00", 97), // clique-style seal
		}, nil
	})

	p := newTestProvider(t, node)

	require.True(t, p.Profile().RequiresPoAShim)

	block, err := p.BlockByNumber(context.Background(), "latest")
	require.NoError(t, err)

	assert.Empty(t, block.ExtraData)
	assert.Len(t, []byte(block.ProofOfAuthorityData), 97)
}

func TestCallTree_ParityPreferred(t *testing.T) {
	node := testutil.NewFakeNode(t)
	node.Handle("trace_transaction", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return []map[string]interface{}{
			{
				"type":         "call",
				"traceAddress": []int{},
				"action": map[string]interface{}{
					"from":     "0x1111111111111111111111111111111111111111",
					"to":       "0x2222222222222222222222222222222222222222",
					"callType": "call",
					"value":    "0x0",
				},
				"result": map[string]interface{}{"gasUsed": "0x5208"},
			},
		}, nil
	})

	p := newTestProvider(t, node)

	tree, err := p.CallTree(context.Background(), common.HexToHash("0xaa"))
	require.NoError(t, err)

	assert.Equal(t, uint64(21000), tree.GasCost)
	assert.Equal(t, 0, node.Calls("debug_traceTransaction"))
}

func TestCallTree_FallsBackToCallTracer(t *testing.T) {
	node := testutil.NewFakeNode(t)
	// trace_transaction is unregistered: the fake node answers with the
	// standard method-not-found error.
	node.Handle("debug_traceTransaction", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return map[string]interface{}{
			"type": "CALL",
			"from": "0x1111111111111111111111111111111111111111",
			"to":   "0x2222222222222222222222222222222222222222",
			"calls": []map[string]interface{}{
				{
					"type": "STATICCALL",
					"from": "0x2222222222222222222222222222222222222222",
					"to":   "0x3333333333333333333333333333333333333333",
				},
			},
		}, nil
	})

	p := newTestProvider(t, node)

	tree, err := p.CallTree(context.Background(), common.HexToHash("0xaa"))
	require.NoError(t, err)

	assert.Equal(t, 2, tree.CallCount())
	assert.Equal(t, 1, node.Calls("trace_transaction"))
	assert.Equal(t, 1, node.Calls("debug_traceTransaction"))
}

func TestCallTree_AllStrategiesExhausted(t *testing.T) {
	node := testutil.NewFakeNode(t)
	// neither trace RPC is served

	p := newTestProvider(t, node)

	_, err := p.CallTree(context.Background(), common.HexToHash("0xaa"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trace encoding available")
}

func TestCallTree_UnexpectedErrorPropagates(t *testing.T) {
	node := testutil.NewFakeNode(t)
	node.Handle("trace_transaction", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return nil, &testutil.RPCError{Code: -32000, Message: "boom"}
	})

	p := newTestProvider(t, node)

	_, err := p.CallTree(context.Background(), common.HexToHash("0xaa"))
	require.Error(t, err)

	// a real node failure must not silently fall through to the next format
	assert.Equal(t, 0, node.Calls("debug_traceTransaction"))
	assert.Contains(t, err.Error(), "boom")
}

func devProviderFor(t *testing.T, node *testutil.FakeNode) *DevProvider {
	t.Helper()

	u, err := url.Parse(node.URL())
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	p, err := NewDev(logrus.New(), &devnode.Spec{
		DataDir:        t.TempDir(),
		Hostname:       u.Hostname(),
		Port:           port,
		Mnemonic:       devnode.DefaultMnemonic,
		AccountCount:   3,
		ChainID:        1337,
		InitialBalance: devnode.DefaultBalance,
	})
	require.NoError(t, err)

	require.NoError(t, p.Connect(context.Background()))
	t.Cleanup(p.Disconnect)

	return p
}

func TestDevProvider_SnapshotRevert(t *testing.T) {
	node := testutil.NewFakeNode(t)

	head := uint64(10)
	node.Handle("eth_blockNumber", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return "0xa", nil
	})
	node.Handle("debug_setHead", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return nil, nil
	})

	p := devProviderFor(t, node)

	// dev chains never serve parity traces
	assert.Equal(t, []TraceFormat{TraceFormatCallTracer}, p.Profile().TraceOrder)

	snapshot, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SnapshotID(head), snapshot)

	// reverting to the current head is a no-op
	require.NoError(t, p.Revert(context.Background(), snapshot))
	assert.Equal(t, 0, node.Calls("debug_setHead"))

	// a snapshot ahead of the head is logged and skipped, not an error
	require.NoError(t, p.Revert(context.Background(), snapshot+5))
	assert.Equal(t, 0, node.Calls("debug_setHead"))

	// a snapshot behind the head rewinds
	require.NoError(t, p.Revert(context.Background(), snapshot-3))
	assert.Equal(t, 1, node.Calls("debug_setHead"))
}

func TestDevProvider_MineAndSetTimestampUnsupported(t *testing.T) {
	node := testutil.NewFakeNode(t)
	p := devProviderFor(t, node)

	assert.True(t, ethereum.IsNotImplemented(p.Mine(context.Background(), 1)))
	assert.True(t, ethereum.IsNotImplemented(p.SetTimestamp(context.Background(), 0)))
}
