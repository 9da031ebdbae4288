package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmkit/node-provider/internal/testutil"
	"github.com/evmkit/node-provider/pkg/ethereum"
)

func TestIsIPCEndpoint(t *testing.T) {
	assert.True(t, isIPCEndpoint("/var/run/geth.ipc"))
	assert.True(t, isIPCEndpoint("./geth.ipc"))
	assert.False(t, isIPCEndpoint("http://localhost:8545"))
	assert.False(t, isIPCEndpoint(""))
}

// An externally injected endpoint wins even when the configured URI is dead,
// and a dead injected endpoint never falls through to it.
func TestConnect_EnvOverrideWins(t *testing.T) {
	node := testutil.NewFakeNode(t)

	t.Setenv(ethereum.EnvProviderURI, node.URL())

	p, err := New(logrus.New(), &ethereum.Config{
		Name: "test",
		URI:  "http://127.0.0.1:1", // dead; must never be tried
	})
	require.NoError(t, err)

	require.NoError(t, p.Connect(context.Background()))
	defer p.Disconnect()

	assert.True(t, p.Connected())
}

func TestConnect_DeadEnvOverrideDoesNotFallThrough(t *testing.T) {
	node := testutil.NewFakeNode(t)

	t.Setenv(ethereum.EnvProviderURI, "http://127.0.0.1:1")

	p, err := New(logrus.New(), &ethereum.Config{
		Name: "test",
		URI:  node.URL(), // reachable, but the override is authoritative
	})
	require.NoError(t, err)

	err = p.Connect(context.Background())
	require.Error(t, err)

	var connErr *ethereum.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 0, node.Calls("web3_clientVersion"))
}

func TestTransactionTrace_StreamsFrames(t *testing.T) {
	node := testutil.NewFakeNode(t)
	node.Handle("debug_traceTransaction", func(json.RawMessage) (interface{}, *testutil.RPCError) {
		return map[string]interface{}{
			"gas":    21000,
			"failed": false,
			"structLogs": []map[string]interface{}{
				{"pc": 0, "op": "PUSH1", "gas": 100000, "gasCost": 3, "depth": 1},
				{"pc": 2, "op": "CALL", "gas": 99000, "gasCost": 99999999, "depth": 1},
				{"pc": 4, "op": "STOP", "gas": 98000, "gasCost": 0, "depth": 1},
			},
		}, nil
	})

	p := newTestProvider(t, node)

	it, err := p.TransactionTrace(context.Background(), common.HexToHash("0xaa"))
	require.NoError(t, err)

	defer it.Close()

	var ops []string

	for {
		frame, err := it.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}

		require.NoError(t, err)

		ops = append(ops, frame.Op)

		// corrupted gas costs are sanitized as frames are yielded
		assert.LessOrEqual(t, frame.GasCost, frame.Gas)
	}

	assert.Equal(t, []string{"PUSH1", "CALL", "STOP"}, ops)
}
