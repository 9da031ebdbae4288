package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmkit/node-provider/pkg/ethereum/tracing"
)

func TestMemoryGasTracker(t *testing.T) {
	tracker := NewMemoryGasTracker()
	require.True(t, tracker.Enabled())

	tree := &tracing.CallTreeNode{
		CallType: tracing.CallTypeCall,
		Method:   "transfer",
		GasCost:  21000,
		Children: []*tracing.CallTreeNode{
			{CallType: tracing.CallTypeStaticCall, GasCost: 400},
			{CallType: tracing.CallTypeCall, Method: "transfer", GasCost: 700},
		},
	}

	tracker.AppendGas(tree)
	tracker.AppendGas(nil) // ignored

	usage := tracker.Usage()

	assert.Equal(t, []uint64{21000, 700}, usage["transfer"])
	assert.Equal(t, []uint64{400}, usage["STATICCALL"])
}

func TestMemoryGasTracker_UsageReturnsCopy(t *testing.T) {
	tracker := NewMemoryGasTracker()
	tracker.AppendGas(&tracing.CallTreeNode{Method: "mint", GasCost: 100})

	usage := tracker.Usage()
	usage["mint"][0] = 0
	delete(usage, "mint")

	again := tracker.Usage()
	assert.Equal(t, []uint64{100}, again["mint"])
}
