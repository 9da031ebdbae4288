package tracing

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeFromCallTrace_Nested(t *testing.T) {
	frame := &CallFrame{
		Type:    "CALL",
		From:    "0x1111111111111111111111111111111111111111",
		To:      "0x2222222222222222222222222222222222222222",
		Value:   "0x0",
		GasUsed: "0x5208",
		Input:   "0xabcdef01",
		Calls: []CallFrame{
			{
				Type:    "delegatecall",
				From:    "0x2222222222222222222222222222222222222222",
				To:      "0x3333333333333333333333333333333333333333",
				GasUsed: "0x100",
				Error:   "execution reverted",
			},
		},
	}

	tree, err := TreeFromCallTrace(frame, "0xabc")
	require.NoError(t, err)

	assert.Equal(t, 2, tree.CallCount())
	assert.Equal(t, CallTypeCall, tree.CallType)
	assert.Equal(t, uint64(21000), tree.GasCost)
	assert.Equal(t, "0xabc", tree.TxnHash)
	assert.False(t, tree.Failed)

	require.Len(t, tree.Children, 1)
	assert.Equal(t, CallTypeDelegateCall, tree.Children[0].CallType)
	assert.True(t, tree.Children[0].Failed)
	assert.Equal(t, "0xabc", tree.Children[0].TxnHash)
}

func TestTreeFromCallTrace_Empty(t *testing.T) {
	_, err := TreeFromCallTrace(nil, "0xabc")
	assert.ErrorIs(t, err, ErrNoTraces)

	_, err = TreeFromCallTrace(&CallFrame{}, "0xabc")
	assert.ErrorIs(t, err, ErrNoTraces)
}

// The three encodings of one transaction must decode to the same tree shape:
// same call types, targets, and parent/child structure.
func TestTraceEncodings_SameShape(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	outer := common.HexToAddress("0x2222222222222222222222222222222222222222")
	inner := "3333333333333333333333333333333333333333"

	fromParity, err := TreeFromParityTraces([]ParityTrace{
		{
			Type:         "call",
			TraceAddress: []uint32{},
			Action: ParityTraceAction{
				From: from.Hex(), To: strPtr(outer.Hex()),
				CallType: strPtr("call"), Value: "0x0",
			},
			Result: &ParityTraceResult{GasUsed: "0x0"},
		},
		{
			Type:         "call",
			TraceAddress: []uint32{0},
			Action: ParityTraceAction{
				From: outer.Hex(), To: strPtr("0x" + inner),
				CallType: strPtr("staticcall"), Value: "0x0",
			},
			Result: &ParityTraceResult{GasUsed: "0x0"},
		},
	})
	require.NoError(t, err)

	fromCallTracer, err := TreeFromCallTrace(&CallFrame{
		Type: "CALL", From: from.Hex(), To: outer.Hex(),
		Calls: []CallFrame{
			{Type: "STATICCALL", From: outer.Hex(), To: "0x" + inner},
		},
	}, "")
	require.NoError(t, err)

	fromStructLogs, err := TreeFromStructLogs(
		RootCall{CallType: CallTypeCall, From: from, To: outer, GasCost: 1},
		NewFrameReader([]TraceFrame{
			{Op: "STATICCALL", Gas: 90000, GasCost: 700, Depth: 1, Stack: []string{
				word(0), word(0), word(0), word(0), inner, word(30000),
			}},
			{Op: "STOP", Gas: 30000, GasCost: 0, Depth: 2},
			{Op: "STOP", Gas: 29000, GasCost: 0, Depth: 1},
		}),
	)
	require.NoError(t, err)

	for _, tree := range []*CallTreeNode{fromParity, fromCallTracer, fromStructLogs} {
		assert.Equal(t, 2, tree.CallCount())
		assert.Equal(t, CallTypeCall, tree.CallType)
		assert.Equal(t, from, tree.From)
		assert.Equal(t, outer, tree.To)

		require.Len(t, tree.Children, 1)
		assert.Equal(t, CallTypeStaticCall, tree.Children[0].CallType)
		assert.Equal(t, outer, tree.Children[0].From)
		assert.Equal(t, common.HexToAddress("0x"+inner), tree.Children[0].To)
	}
}
